package configs

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	DefaultPort          = 3000
	DefaultModelName     = "gemini-1.5-pro"
	DefaultMaxUploadSize = 32 << 20
	DefaultProvider      = "gemini"
)

// Config 主配置结构
type Config struct {
	Server struct {
		IP   string `yaml:"ip"`
		Port int    `yaml:"port"`
		Auth struct {
			Enabled bool   `yaml:"enabled"`
			Secret  string `yaml:"secret"`
		} `yaml:"auth"`
	} `yaml:"server"`

	Log struct {
		LogFormat string `yaml:"log_format"` // text或json，作用于控制台输出
		LogLevel  string `yaml:"log_level"`
		LogDir    string `yaml:"log_dir"`
		LogFile   string `yaml:"log_file"`
	} `yaml:"log"`

	Web struct {
		StaticDir      string `yaml:"static_dir"`
		MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	} `yaml:"web"`

	SelectedModule map[string]string     `yaml:"selected_module"`
	VLLLM          map[string]VLLMConfig `yaml:"VLLLM"`
}

// SafetySetting 单个危害类别的拦截阈值
type SafetySetting struct {
	Category  string `yaml:"category"`
	Threshold string `yaml:"threshold"`
}

// VLLMConfig VLLLM配置结构（视觉语言大模型）
type VLLMConfig struct {
	Type           string          `yaml:"type"`            // API类型: gemini, openai, ollama
	ModelName      string          `yaml:"model_name"`      // 模型名称
	BaseURL        string          `yaml:"url"`             // API地址，为空时使用官方地址
	APIKey         string          `yaml:"api_key"`         // API密钥
	Temperature    float64         `yaml:"temperature"`     // 温度参数
	TopK           int             `yaml:"top_k"`           // TopK参数
	TopP           float64         `yaml:"top_p"`           // TopP参数
	MaxTokens      int             `yaml:"max_tokens"`      // 最大输出令牌数
	SafetySettings []SafetySetting `yaml:"safety_settings"` // 内容安全阈值
	RequestTimeout string          `yaml:"request_timeout"` // 上游调用超时，为空表示不限制
}

// DefaultSafetySettings 四个危害类别均在中等及以上拦截
func DefaultSafetySettings() []SafetySetting {
	categories := []string{
		"HARM_CATEGORY_HARASSMENT",
		"HARM_CATEGORY_HATE_SPEECH",
		"HARM_CATEGORY_SEXUALLY_EXPLICIT",
		"HARM_CATEGORY_DANGEROUS_CONTENT",
	}
	settings := make([]SafetySetting, 0, len(categories))
	for _, c := range categories {
		settings = append(settings, SafetySetting{Category: c, Threshold: "BLOCK_MEDIUM_AND_ABOVE"})
	}
	return settings
}

// Default 返回内置默认配置
func Default() *Config {
	config := &Config{}
	config.Server.IP = "0.0.0.0"
	config.Server.Port = DefaultPort
	config.Log.LogFormat = "text"
	config.Log.LogLevel = "info"
	config.Log.LogFile = "server.log"
	config.Web.MaxUploadBytes = DefaultMaxUploadSize
	config.SelectedModule = map[string]string{"VLLLM": DefaultProvider}
	config.VLLLM = map[string]VLLMConfig{
		DefaultProvider: {
			Type:           "gemini",
			ModelName:      DefaultModelName,
			Temperature:    0.9,
			TopK:           32,
			TopP:           0.95,
			MaxTokens:      1024,
			SafetySettings: DefaultSafetySettings(),
		},
	}
	return config
}

// LoadConfig 加载配置：默认值 -> yaml文件 -> .env与环境变量
// path为空时依次尝试 CONFIG_PATH、.config.yaml、config.yaml，文件都不存在时只使用默认值
func LoadConfig(path string) (*Config, string, error) {
	// .env 不存在不是错误
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, "", fmt.Errorf("加载.env失败: %w", err)
	}

	config := Default()

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, path, err
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, path, fmt.Errorf("解析配置文件失败: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, path, err
	}
	config.fillProviderDefaults()

	return config, path, nil
}

func findConfigFile() string {
	candidates := []string{os.Getenv("CONFIG_PATH"), ".config.yaml", "config.yaml"}
	for _, p := range candidates {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		n, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("PORT环境变量无效 %q: %w", port, err)
		}
		c.Server.Port = n
	}
	if format := os.Getenv("LOG_FORMAT"); format != "" {
		c.Log.LogFormat = format
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Log.LogLevel = level
	}
	if secret := os.Getenv("AUTH_SECRET"); secret != "" {
		c.Server.Auth.Secret = secret
	}

	// 环境变量中的密钥优先于配置文件
	keys := map[string]string{
		"gemini": os.Getenv("GOOGLE_API_KEY"),
		"openai": os.Getenv("OPENAI_API_KEY"),
	}
	for name, vc := range c.VLLLM {
		if key := keys[strings.ToLower(vc.Type)]; key != "" {
			vc.APIKey = key
			c.VLLLM[name] = vc
		}
	}
	return nil
}

// 用户配置文件中未填写的生成参数沿用内置默认值
func (c *Config) fillProviderDefaults() {
	def := Default().VLLLM[DefaultProvider]
	for name, vc := range c.VLLLM {
		if vc.ModelName == "" && strings.EqualFold(vc.Type, "gemini") {
			vc.ModelName = def.ModelName
		}
		if vc.Temperature == 0 {
			vc.Temperature = def.Temperature
		}
		if vc.TopK == 0 {
			vc.TopK = def.TopK
		}
		if vc.TopP == 0 {
			vc.TopP = def.TopP
		}
		if vc.MaxTokens == 0 {
			vc.MaxTokens = def.MaxTokens
		}
		if len(vc.SafetySettings) == 0 {
			vc.SafetySettings = def.SafetySettings
		}
		c.VLLLM[name] = vc
	}
}

// SelectedVLLM 返回当前选中的VLLLM名称与配置
func (c *Config) SelectedVLLM() (string, VLLMConfig, error) {
	name := c.SelectedModule["VLLLM"]
	if name == "" {
		return "", VLLMConfig{}, errors.New("未设置 selected_module.VLLLM")
	}
	vc, ok := c.VLLLM[name]
	if !ok {
		return name, VLLMConfig{}, fmt.Errorf("VLLLM配置 %s 不存在", name)
	}
	return name, vc, nil
}

// Validate 启动前检查配置
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("端口无效: %d", c.Server.Port)
	}
	if c.Web.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes必须大于0: %d", c.Web.MaxUploadBytes)
	}
	switch strings.ToLower(c.Log.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("不支持的日志格式: %s", c.Log.LogFormat)
	}
	if c.Server.Auth.Enabled && c.Server.Auth.Secret == "" {
		return errors.New("启用认证时必须配置 server.auth.secret")
	}

	_, vc, err := c.SelectedVLLM()
	if err != nil {
		return err
	}
	switch strings.ToLower(vc.Type) {
	case "gemini":
		if vc.APIKey == "" {
			return errors.New("缺少 GOOGLE_API_KEY")
		}
	case "openai":
		if vc.APIKey == "" {
			return errors.New("缺少 OPENAI_API_KEY")
		}
	case "ollama":
	default:
		return fmt.Errorf("不支持的VLLLM类型: %s", vc.Type)
	}
	return nil
}
