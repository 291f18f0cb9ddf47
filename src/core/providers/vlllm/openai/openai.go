package openai

import (
	"context"
	"errors"
	"fmt"

	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"

	"github.com/sashabaranov/go-openai"
)

const providerName = "openai"

// Provider OpenAI兼容接口的VLLLM提供者
// top_k与安全阈值在该接口中没有对应参数，会被忽略
type Provider struct {
	config *vlllm.Config
	logger *utils.Logger
	client *openai.Client
}

// NewProvider 创建OpenAI VLLLM提供者实例
func NewProvider(config *vlllm.Config, logger *utils.Logger) (*Provider, error) {
	return &Provider{config: config, logger: logger}, nil
}

// Initialize 初始化OpenAI客户端
func (p *Provider) Initialize() error {
	if p.config.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required")
	}

	clientConfig := openai.DefaultConfig(p.config.APIKey)
	if p.config.BaseURL != "" {
		clientConfig.BaseURL = p.config.BaseURL
	}
	p.client = openai.NewClientWithConfig(clientConfig)

	p.logger.Debug("OpenAI VLLLM Provider创建成功", map[string]interface{}{
		"model_name": p.config.ModelName,
		"base_url":   p.config.BaseURL,
	})
	return nil
}

// Cleanup 清理资源
func (p *Provider) Cleanup() error {
	return nil
}

// Describe 以data URL形式发送图片，非流式读取完整回复
func (p *Provider) Describe(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	visionMessage := openai.ChatCompletionMessage{
		Role: openai.ChatMessageRoleUser,
		MultiContent: []openai.ChatMessagePart{
			{
				Type: openai.ChatMessagePartTypeText,
				Text: prompt,
			},
			{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL: fmt.Sprintf("data:%s;base64,%s", img.MimeType, img.Data),
				},
			},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       p.config.ModelName,
		Messages:    []openai.ChatCompletionMessage{visionMessage},
		Temperature: float32(p.config.Temperature),
		TopP:        float32(p.config.TopP),
		MaxTokens:   p.config.MaxTokens,
	})
	if err != nil {
		return "", wrapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", vlllm.ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

func wrapError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &vlllm.UpstreamError{Provider: providerName, StatusCode: apiErr.HTTPStatusCode, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &vlllm.UpstreamError{Provider: providerName, StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	// 其余错误来自HTTP传输层
	return &vlllm.UpstreamError{Provider: providerName, Err: err}
}

// init 注册OpenAI VLLLM提供者
func init() {
	vlllm.Register(providerName, func(config *vlllm.Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		return NewProvider(config, logger)
	})
}
