package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"

	"google.golang.org/genai"
)

const providerName = "gemini"

// ErrBlocked 提示词或候选回复被安全策略拦截
var ErrBlocked = errors.New("gemini response blocked")

// Provider Gemini API 提供者
type Provider struct {
	config        *vlllm.Config
	logger        *utils.Logger
	client        *genai.Client
	contentConfig *genai.GenerateContentConfig
}

// NewProvider 创建Gemini VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("Gemini API key is required")
	}
	return &Provider{config: config, logger: logger}, nil
}

// Initialize 创建Gemini客户端，url非空时替换官方地址
func (p *Provider) Initialize() error {
	clientConfig := &genai.ClientConfig{
		APIKey:  p.config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if p.config.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: p.config.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientConfig)
	if err != nil {
		return fmt.Errorf("创建Gemini客户端失败: %w", err)
	}
	p.client = client
	p.contentConfig = p.generateConfig()

	p.logger.Debug("Gemini VLLLM初始化成功", map[string]interface{}{
		"model":           p.config.ModelName,
		"safety_settings": len(p.contentConfig.SafetySettings),
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

func (p *Provider) generateConfig() *genai.GenerateContentConfig {
	safety := make([]*genai.SafetySetting, 0, len(p.config.SafetySettings))
	for _, s := range p.config.SafetySettings {
		safety = append(safety, &genai.SafetySetting{
			Category:  genai.HarmCategory(s.Category),
			Threshold: genai.HarmBlockThreshold(s.Threshold),
		})
	}

	return &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(p.config.Temperature)),
		TopK:            genai.Ptr(float32(p.config.TopK)),
		TopP:            genai.Ptr(float32(p.config.TopP)),
		MaxOutputTokens: int32(p.config.MaxTokens),
		SafetySettings:  safety,
	}
}

// Describe 发送提示词与图片，返回第一个候选回复的文本
func (p *Provider) Describe(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	data, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return "", fmt.Errorf("图片base64解码失败: %w", err)
	}

	contents := []*genai.Content{
		{
			Role: genai.RoleUser,
			Parts: []*genai.Part{
				{Text: prompt},
				{InlineData: &genai.Blob{MIMEType: img.MimeType, Data: data}},
			},
		},
	}

	model := strings.TrimPrefix(p.config.ModelName, "models/")
	resp, err := p.client.Models.GenerateContent(ctx, model, contents, p.contentConfig)
	if err != nil {
		return "", wrapError(err)
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("%w: prompt %s", ErrBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", vlllm.ErrEmptyResponse
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: candidate %s", ErrBlocked, candidate.FinishReason)
	}
	if candidate.Content == nil {
		return "", vlllm.ErrEmptyResponse
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if text.Len() == 0 {
		return "", vlllm.ErrEmptyResponse
	}
	return text.String(), nil
}

// 上下文取消或超时不属于上游故障
func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &vlllm.UpstreamError{Provider: providerName, StatusCode: apiErr.Code, Err: err}
	}
	var apiErrPtr *genai.APIError
	if errors.As(err, &apiErrPtr) {
		return &vlllm.UpstreamError{Provider: providerName, StatusCode: apiErrPtr.Code, Err: err}
	}
	return &vlllm.UpstreamError{Provider: providerName, Err: err}
}

func init() {
	vlllm.Register(providerName, func(config *vlllm.Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		return NewProvider(config, logger)
	})
}
