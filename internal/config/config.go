package config

import (
	"context"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Storage StorageConfig
	Bus     BusConfig
	Widget  WidgetConfig
	Sizer   SizerConfig
	Log     LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.Server.validate(); err != nil {
		return nil, err
	}

	if cfg.AI.LevelHistoryLimit < 1 {
		cfg.AI.LevelHistoryLimit = 1
	}

	if err := cfg.Sizer.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port         string `env:"PORT"`
	FallbackPort string `env:"VCAP_APP_PORT"`
}

// Addr 解析服务器监听地址，PORT 优先，其次 VCAP_APP_PORT，默认 4000。
func (c ServerConfig) Addr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = strings.TrimSpace(c.FallbackPort)
	}
	if port == "" {
		port = "4000"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":4000" 或 "127.0.0.1:4000"。
		return port
	}
	return ":" + port
}

func (c ServerConfig) validate() error {
	for _, raw := range []string{c.Port, c.FallbackPort} {
		if strings.Contains(strings.TrimSpace(raw), " ") {
			return fmt.Errorf("invalid PORT value: %q", raw)
		}
	}
	return nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey            string   `env:"ARK_API_KEY"`
	AccessKey         string   `env:"ARK_ACCESS_KEY"`
	SecretKey         string   `env:"ARK_SECRET_KEY"`
	Model             string   `env:"ARK_MODEL"`
	BaseURL           string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region            string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature       *float64 `env:"ARK_TEMPERATURE"`
	TopP              *float64 `env:"ARK_TOP_P"`
	MaxTokens         *int     `env:"ARK_MAX_TOKENS"`
	LevelLLMEnabled   bool     `env:"AI_LEVEL_LLM_ENABLED" envDefault:"false"`
	LevelHistoryLimit int      `env:"AI_LEVEL_HISTORY_LIMIT" envDefault:"6"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// StorageConfig 描述会话日志存储。
type StorageConfig struct {
	Driver string `env:"SESSION_LOG_DRIVER" envDefault:"sqlite"`
	Path   string `env:"SESSION_LOG_PATH" envDefault:"session_log.db"`
}

// BusConfig 描述 payload 总线，默认进程内，可选 Redis Streams。
type BusConfig struct {
	RedisEnabled bool   `env:"BUS_REDIS_ENABLED" envDefault:"false"`
	RedisAddr    string `env:"BUS_REDIS_ADDR" envDefault:"localhost:6379"`
	Group        string `env:"BUS_REDIS_GROUP" envDefault:"chat-widget"`
	Consumer     string `env:"BUS_REDIS_CONSUMER" envDefault:"widget-1"`
}

// WidgetConfig 描述聊天组件的行为。
type WidgetConfig struct {
	ProfileID      string `env:"WIDGET_PROFILE" envDefault:"scrum-assistant"`
	ProfileFile    string `env:"WIDGET_PROFILE_FILE"`
	RenderMarkdown bool   `env:"WIDGET_RENDER_MARKDOWN" envDefault:"false"`
}

// SizerConfig 控制输入框宽度的内边距插值。
type SizerConfig struct {
	MinFontSize float64 `env:"SIZER_MIN_FONT_SIZE" envDefault:"14"`
	MaxFontSize float64 `env:"SIZER_MAX_FONT_SIZE" envDefault:"16"`
	MinPadding  float64 `env:"SIZER_MIN_PADDING" envDefault:"4"`
	MaxPadding  float64 `env:"SIZER_MAX_PADDING" envDefault:"6"`
}

func (c SizerConfig) validate() error {
	if c.MaxFontSize <= c.MinFontSize {
		return fmt.Errorf("invalid sizer font bounds: min=%v max=%v", c.MinFontSize, c.MaxFontSize)
	}
	return nil
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}
