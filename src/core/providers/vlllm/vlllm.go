package vlllm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/utils"
)

// Config VLLLM配置结构
type Config struct {
	Type           string
	ModelName      string
	BaseURL        string
	APIKey         string
	Temperature    float64
	TopK           int
	TopP           float64
	MaxTokens      int
	SafetySettings []configs.SafetySetting
}

// UpstreamError 上游模型服务本身的调用失败（HTTP错误或网络错误）
type UpstreamError struct {
	Provider   string
	StatusCode int // 0 表示请求未得到响应
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s upstream error (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s upstream error: %v", e.Provider, e.Err)
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// IsUpstreamError 判断错误是否来自上游服务
func IsUpstreamError(err error) bool {
	var ue *UpstreamError
	return errors.As(err, &ue)
}

// ErrEmptyResponse 上游返回成功但没有任何可用文本
var ErrEmptyResponse = errors.New("model returned no text")

// Client 车辆识别的推理客户端：调用选中的provider并清理回复文本
type Client struct {
	provider providers.VLLMProvider
	prompt   string
	timeout  time.Duration
	logger   *utils.Logger
}

// NewClient timeout为0时不设置超时
func NewClient(provider providers.VLLMProvider, prompt string, timeout time.Duration, logger *utils.Logger) *Client {
	return &Client{
		provider: provider,
		prompt:   prompt,
		timeout:  timeout,
		logger:   logger,
	}
}

// Describe 返回去除markdown代码块标记后的模型回复
func (c *Client) Describe(ctx context.Context, img image.ImageData) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := c.provider.Describe(ctx, c.prompt, img)
	if err != nil {
		return "", err
	}
	c.logger.Debug("VLLLM调用完成", map[string]interface{}{
		"mime_type": img.MimeType,
		"elapsed":   time.Since(start).String(),
		"length":    len(text),
	})

	return utils.StripCodeFences(text), nil
}

// Cleanup 释放provider资源
func (c *Client) Cleanup() error {
	return c.provider.Cleanup()
}
