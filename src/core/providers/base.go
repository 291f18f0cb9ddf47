package providers

import (
	"context"

	"carlens-server-go/src/core/image"
)

// Provider 所有提供者的基础接口
type Provider interface {
	Initialize() error
	Cleanup() error
}

// VLLMProvider 视觉语言大模型提供者接口
type VLLMProvider interface {
	Provider
	// Describe 发送一条包含文本指令和图片的用户消息，返回模型回复的原始文本
	Describe(ctx context.Context, prompt string, img image.ImageData) (string, error)
}
