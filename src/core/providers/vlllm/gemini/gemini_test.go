package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/image"
	"carlens-server-go/src/core/providers/vlllm"
	"carlens-server-go/src/core/utils"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *Provider {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	config := &vlllm.Config{
		Type:           "gemini",
		ModelName:      "gemini-1.5-pro",
		BaseURL:        ts.URL + "/",
		APIKey:         "test-key",
		Temperature:    0.9,
		TopK:           32,
		TopP:           0.95,
		MaxTokens:      1024,
		SafetySettings: configs.DefaultSafetySettings(),
	}
	p, err := NewProvider(config, utils.NewConsoleLogger(io.Discard, utils.InfoLevel))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return p
}

func testImage() image.ImageData {
	return image.ImageData{Data: "aGVsbG8=", Format: "jpeg", MimeType: "image/jpeg"}
}

func TestDescribeBuildsRequest(t *testing.T) {
	var got map[string]interface{}
	var path, key string

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		key = r.Header.Get("x-goog-api-key")
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"candidates":[{"content":{"role":"model","parts":[{"text":"`+"```json"+`\n{\"error\":\"x\"}"},{"text":"\n`+"```"+`"}]},"finishReason":"STOP"}]}`)
	})

	text, err := p.Describe(context.Background(), "identify", testImage())
	if err != nil {
		t.Fatalf("Describe() error = %v", err)
	}
	if text != "```json\n{\"error\":\"x\"}\n```" {
		t.Errorf("text = %q", text)
	}
	if !strings.HasSuffix(path, "/v1beta/models/gemini-1.5-pro:generateContent") {
		t.Errorf("path = %s", path)
	}
	if key != "test-key" {
		t.Errorf("key = %q", key)
	}

	gen := got["generationConfig"].(map[string]interface{})
	if gen["topK"].(float64) != 32 || gen["maxOutputTokens"].(float64) != 1024 || gen["temperature"].(float64) != 0.9 || gen["topP"].(float64) != 0.95 {
		t.Errorf("generationConfig = %v", gen)
	}

	safety := got["safetySettings"].([]interface{})
	if len(safety) != 4 {
		t.Fatalf("safetySettings数量 = %d", len(safety))
	}
	for _, s := range safety {
		if s.(map[string]interface{})["threshold"] != "BLOCK_MEDIUM_AND_ABOVE" {
			t.Errorf("safety setting = %v", s)
		}
	}

	parts := got["contents"].([]interface{})[0].(map[string]interface{})["parts"].([]interface{})
	if parts[0].(map[string]interface{})["text"] != "identify" {
		t.Errorf("第一个part应为提示词: %v", parts[0])
	}
	inline := parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})
	if inline["mimeType"] != "image/jpeg" || inline["data"] != "aGVsbG8=" {
		t.Errorf("inlineData = %v", inline)
	}
}

func TestNewProviderRequiresKey(t *testing.T) {
	if _, err := NewProvider(&vlllm.Config{ModelName: "gemini-1.5-pro"}, utils.NewConsoleLogger(io.Discard, utils.InfoLevel)); err == nil {
		t.Error("缺少API key时应返回错误")
	}
}

func TestDescribeTransportError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := ts.URL + "/"
	ts.Close()

	p, err := NewProvider(&vlllm.Config{ModelName: "gemini-1.5-pro", BaseURL: url, APIKey: "test-key"}, utils.NewConsoleLogger(io.Discard, utils.InfoLevel))
	if err != nil {
		t.Fatal(err)
	}
	if err := p.Initialize(); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}

	_, err = p.Describe(context.Background(), "identify", testImage())
	var ue *vlllm.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, 期望UpstreamError", err)
	}
	if ue.StatusCode != 0 {
		t.Errorf("StatusCode = %d, 网络错误应为0", ue.StatusCode)
	}
}

func TestDescribeCanceled(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Describe(ctx, "identify", testImage())
	if err == nil {
		t.Fatal("取消的上下文应返回错误")
	}
	if vlllm.IsUpstreamError(err) {
		t.Errorf("上下文取消不应视为上游错误: %v", err)
	}
}

func TestDescribeInvalidImageData(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("图片无效时不应调用上游")
	})

	_, err := p.Describe(context.Background(), "identify", image.ImageData{Data: "%%%", MimeType: "image/jpeg"})
	if err == nil || vlllm.IsUpstreamError(err) {
		t.Errorf("err = %v, 期望非上游错误", err)
	}
}

func TestDescribeUpstreamError(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error":{"code":503,"message":"The model is overloaded.","status":"UNAVAILABLE"}}`)
	})

	_, err := p.Describe(context.Background(), "identify", testImage())
	var ue *vlllm.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("err = %v, 期望UpstreamError", err)
	}
	if ue.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d", ue.StatusCode)
	}
}

func TestDescribeBlocked(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{
			name:    "提示词被拦截",
			body:    `{"promptFeedback":{"blockReason":"SAFETY"}}`,
			wantErr: ErrBlocked,
		},
		{
			name:    "候选回复被拦截",
			body:    `{"candidates":[{"content":{"parts":[]},"finishReason":"SAFETY"}]}`,
			wantErr: ErrBlocked,
		},
		{
			name:    "无候选回复",
			body:    `{"candidates":[]}`,
			wantErr: vlllm.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				io.WriteString(w, tt.body)
			})
			_, err := p.Describe(context.Background(), "identify", testImage())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, 期望 %v", err, tt.wantErr)
			}
			if vlllm.IsUpstreamError(err) {
				t.Error("拦截不应视为上游错误")
			}
		})
	}
}
