package vlllm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"
	"time"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/utils"
)

type fakeProvider struct {
	reply       string
	err         error
	delay       time.Duration
	initialized bool
	gotPrompt   string
}

func (f *fakeProvider) Initialize() error { f.initialized = true; return nil }
func (f *fakeProvider) Cleanup() error    { return nil }

func (f *fakeProvider) Describe(ctx context.Context, prompt string, img image.ImageData) (string, error) {
	f.gotPrompt = prompt
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.reply, f.err
}

func discardLogger() *utils.Logger {
	return utils.NewConsoleLogger(io.Discard, utils.DebugLevel)
}

func TestClientDescribeStripsFences(t *testing.T) {
	fake := &fakeProvider{reply: "```json\n{\"vehicle\":{}}\n```"}
	client := NewClient(fake, "identify", 0, discardLogger())

	text, err := client.Describe(context.Background(), image.ImageData{MimeType: "image/jpeg"})
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if text != "\n{\"vehicle\":{}}\n" {
		t.Errorf("text = %q", text)
	}
	if fake.gotPrompt != "identify" {
		t.Errorf("prompt = %q", fake.gotPrompt)
	}
}

func TestClientDescribeTimeout(t *testing.T) {
	fake := &fakeProvider{reply: "{}", delay: time.Second}
	client := NewClient(fake, "identify", 10*time.Millisecond, discardLogger())

	_, err := client.Describe(context.Background(), image.ImageData{})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, 期望 DeadlineExceeded", err)
	}
	if IsUpstreamError(err) {
		t.Error("超时不应视为上游错误")
	}
}

func TestUpstreamError(t *testing.T) {
	base := errors.New("connection reset")
	err := fmt.Errorf("调用失败: %w", &UpstreamError{Provider: "gemini", StatusCode: 503, Err: base})

	if !IsUpstreamError(err) {
		t.Error("包装后的UpstreamError应能被识别")
	}
	if !errors.Is(err, base) {
		t.Error("UpstreamError应能Unwrap出原始错误")
	}
	if IsUpstreamError(base) {
		t.Error("普通错误不应被识别为UpstreamError")
	}
	if got := (&UpstreamError{Provider: "ollama", Err: base}).Error(); got != "ollama upstream error: connection reset" {
		t.Errorf("Error() = %q", got)
	}
}

func TestCreate(t *testing.T) {
	fake := &fakeProvider{}
	Register("fake", func(config *Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		if config.TopK != 32 {
			return nil, fmt.Errorf("TopK = %d", config.TopK)
		}
		return fake, nil
	})

	provider, err := Create(configs.VLLMConfig{Type: "FAKE", TopK: 32}, discardLogger())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if provider != fake || !fake.initialized {
		t.Error("Create应返回已初始化的provider")
	}

	_, err = Create(configs.VLLMConfig{Type: "missing"}, discardLogger())
	if err == nil {
		t.Fatal("未注册的类型应返回错误")
	}
	if !strings.Contains(err.Error(), "missing") || !strings.Contains(err.Error(), "fake") {
		t.Errorf("错误信息应列出可用的提供者: %v", err)
	}
}

func TestGetRegisteredProviders(t *testing.T) {
	Register("zeta", func(config *Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		return &fakeProvider{}, nil
	})
	Register("alpha", func(config *Config, logger *utils.Logger) (providers.VLLMProvider, error) {
		return &fakeProvider{}, nil
	})

	names := GetRegisteredProviders()
	if !sort.StringsAreSorted(names) {
		t.Errorf("提供者列表未排序: %v", names)
	}
	found := 0
	for _, name := range names {
		if name == "alpha" || name == "zeta" {
			found++
		}
	}
	if found != 2 {
		t.Errorf("GetRegisteredProviders() = %v", names)
	}
}
