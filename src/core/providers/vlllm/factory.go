package vlllm

import (
	"fmt"
	"sort"
	"strings"

	"carlens-server-go/src/configs"
	"carlens-server-go/src/core/providers"
	"carlens-server-go/src/core/utils"
)

// Factory VLLLM工厂函数类型
type Factory func(config *Config, logger *utils.Logger) (providers.VLLMProvider, error)

var (
	factories = make(map[string]Factory)
)

// Register 注册VLLLM提供者工厂
func Register(name string, factory Factory) {
	factories[name] = factory
}

// Create 根据配置类型创建并初始化VLLLM提供者实例
func Create(vlllmConfig configs.VLLMConfig, logger *utils.Logger) (providers.VLLMProvider, error) {
	typ := strings.ToLower(vlllmConfig.Type)
	factory, ok := factories[typ]
	if !ok {
		return nil, fmt.Errorf("未知的VLLLM提供者: %s, 可用: %v", vlllmConfig.Type, GetRegisteredProviders())
	}

	// 转换配置格式
	config := &Config{
		Type:           typ,
		ModelName:      vlllmConfig.ModelName,
		BaseURL:        vlllmConfig.BaseURL,
		APIKey:         vlllmConfig.APIKey,
		Temperature:    vlllmConfig.Temperature,
		TopK:           vlllmConfig.TopK,
		TopP:           vlllmConfig.TopP,
		MaxTokens:      vlllmConfig.MaxTokens,
		SafetySettings: vlllmConfig.SafetySettings,
	}

	provider, err := factory(config, logger)
	if err != nil {
		return nil, fmt.Errorf("创建VLLLM提供者失败: %v", err)
	}

	if err := provider.Initialize(); err != nil {
		return nil, fmt.Errorf("初始化VLLLM提供者失败: %v", err)
	}

	logger.Debug("VLLLM提供者创建成功", map[string]interface{}{
		"type":       config.Type,
		"model_name": config.ModelName,
	})

	return provider, nil
}

// GetRegisteredProviders 获取已注册的提供者列表
func GetRegisteredProviders() []string {
	var names []string
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
