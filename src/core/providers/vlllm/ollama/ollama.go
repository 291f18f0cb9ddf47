package ollama

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"

	"github.com/go-resty/resty/v2"
)

const (
	providerName   = "ollama"
	defaultBaseURL = "http://localhost:11434"
)

// ChatRequest Ollama /api/chat 请求结构
type ChatRequest struct {
	Model    string                 `json:"model"`
	Messages []ChatMessage          `json:"messages"`
	Stream   bool                   `json:"stream"`
	Format   string                 `json:"format,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ChatMessage Ollama消息结构
type ChatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"` // 纯base64，不带data URL前缀
}

// ChatResponse Ollama非流式响应结构
type ChatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Provider Ollama类型的VLLLM提供者
type Provider struct {
	config *vlllm.Config
	logger *utils.Logger
	client *resty.Client
}

// NewProvider 创建Ollama VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (*Provider, error) {
	return &Provider{config: config, logger: logger}, nil
}

// Initialize Ollama不需要API key，只需要确保有BaseURL
func (p *Provider) Initialize() error {
	if p.config.BaseURL == "" {
		p.config.BaseURL = defaultBaseURL
	}
	if p.config.ModelName == "" {
		return fmt.Errorf("Ollama model_name is required")
	}
	p.client = resty.New().
		SetBaseURL(strings.TrimSuffix(p.config.BaseURL, "/")).
		SetHeader("Content-Type", "application/json")

	p.logger.Debug("Ollama VLLLM初始化成功", map[string]interface{}{
		"base_url": p.config.BaseURL,
		"model":    p.config.ModelName,
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Describe 非流式调用 /api/chat，要求模型以JSON格式输出
func (p *Provider) Describe(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	request := ChatRequest{
		Model: p.config.ModelName,
		Messages: []ChatMessage{{
			Role:    "user",
			Content: prompt,
			Images:  []string{img.Data},
		}},
		Stream: false,
		Format: "json",
		Options: map[string]interface{}{
			"temperature": p.config.Temperature,
			"top_k":       p.config.TopK,
			"top_p":       p.config.TopP,
			"num_predict": p.config.MaxTokens,
		},
	}

	var result ChatResponse
	var apiErr errorResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(request).
		SetResult(&result).
		SetError(&apiErr).
		Post("/api/chat")
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", &vlllm.UpstreamError{Provider: providerName, Err: err}
	}
	if resp.IsError() {
		msg := apiErr.Error
		if msg == "" {
			msg = resp.Status()
		}
		return "", &vlllm.UpstreamError{Provider: providerName, StatusCode: resp.StatusCode(), Err: errors.New(msg)}
	}

	if result.Message.Content == "" {
		return "", vlllm.ErrEmptyResponse
	}
	return result.Message.Content, nil
}

// init 注册Ollama VLLLM提供者
func init() {
	vlllm.Register(providerName, func(config *vlllm.Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		return NewProvider(config, logger)
	})
}
