package config

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/hashicorp/go-multierror"
)

// 支持的大模型提供方。
const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	AI      AIConfig
	Log     LogConfig
	Session SessionConfig
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port            string        `env:"PORT" envDefault:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	// Addr 由 Port 归一化得到。
	Addr string `env:"-"`
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider  string        `env:"LLM_PROVIDER" envDefault:"groq"`
	APIKey    string        `env:"GROQ_API_KEY"`
	BaseURL   string        `env:"LLM_BASE_URL" envDefault:"https://api.groq.com/openai/v1"`
	FastModel string        `env:"LLM_FAST_MODEL" envDefault:"llama3-8b-8192"`
	FullModel string        `env:"LLM_FULL_MODEL" envDefault:"llama3-70b-8192"`
	Timeout   time.Duration `env:"LLM_TIMEOUT" envDefault:"60s"`

	ArkAPIKey    string `env:"ARK_API_KEY"`
	ArkAccessKey string `env:"ARK_ACCESS_KEY"`
	ArkSecretKey string `env:"ARK_SECRET_KEY"`
	ArkBaseURL   string `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	ArkRegion    string `env:"ARK_REGION" envDefault:"cn-beijing"`
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// SessionConfig 描述浏览器工作区 cookie。
type SessionConfig struct {
	CookieName   string `env:"SESSION_COOKIE" envDefault:"techbot_session"`
	CookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`

	// IdleTTL 工作区闲置超过该时长即被回收，0 表示不回收。
	IdleTTL time.Duration `env:"SESSION_IDLE_TTL" envDefault:"24h"`
	// MaxWorkspaces 同时保留的工作区上限，0 表示不限制。
	MaxWorkspaces int `env:"SESSION_MAX_WORKSPACES" envDefault:"10000"`
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom 从给定的键值对加载配置，不读取进程环境。
func LoadFrom(environment map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environment})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing env config: %w", err)
	}

	cfg.AI.Provider = strings.ToLower(strings.TrimSpace(cfg.AI.Provider))
	cfg.AI.APIKey = strings.TrimSpace(cfg.AI.APIKey)
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var result error

	addr, err := normalizeAddr(c.Server.Port)
	if err != nil {
		result = multierror.Append(result, err)
	}
	c.Server.Addr = addr

	switch c.AI.Provider {
	case ProviderGroq, ProviderOpenAI, ProviderArk:
	default:
		result = multierror.Append(result, fmt.Errorf("invalid LLM_PROVIDER value: %q", c.AI.Provider))
	}

	if strings.TrimSpace(c.AI.FastModel) == "" {
		result = multierror.Append(result, fmt.Errorf("LLM_FAST_MODEL must not be empty"))
	}
	if strings.TrimSpace(c.AI.FullModel) == "" {
		result = multierror.Append(result, fmt.Errorf("LLM_FULL_MODEL must not be empty"))
	}
	if c.AI.Timeout < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid LLM_TIMEOUT value: %s", c.AI.Timeout))
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		result = multierror.Append(result, err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		result = multierror.Append(result, fmt.Errorf("invalid LOG_FORMAT value: %q", c.Log.Format))
	}

	if strings.TrimSpace(c.Session.CookieName) == "" {
		result = multierror.Append(result, fmt.Errorf("SESSION_COOKIE must not be empty"))
	}
	if c.Session.IdleTTL < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid SESSION_IDLE_TTL value: %s", c.Session.IdleTTL))
	}
	if c.Session.MaxWorkspaces < 0 {
		result = multierror.Append(result, fmt.Errorf("invalid SESSION_MAX_WORKSPACES value: %d", c.Session.MaxWorkspaces))
	}

	return result
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	return ":" + port, nil
}

// SlogLevel 将 LOG_LEVEL 转换为 slog 等级。
func (c LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL value %q: %w", c.Level, err)
	}
	return level, nil
}

// HasCredentials 表示当前提供方的密钥是否已配置。缺失时不会阻止启动，请求时才会失败。
func (c AIConfig) HasCredentials() bool {
	if c.Provider == ProviderArk {
		return c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != "")
	}
	return c.APIKey != ""
}

// NewArkChatModel 使用配置为指定模型创建一个 Ark 模型实例。
func (c AIConfig) NewArkChatModel(ctx context.Context, modelName string) (*ark.ChatModel, error) {
	if !c.HasCredentials() {
		return nil, fmt.Errorf("Ark 凭证缺失，至少提供 ARK_API_KEY 或 AK/SK 组合")
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:   c.ArkBaseURL,
		Region:    c.ArkRegion,
		APIKey:    c.ArkAPIKey,
		AccessKey: c.ArkAccessKey,
		SecretKey: c.ArkSecretKey,
		Model:     modelName,
	}
	if c.Timeout > 0 {
		timeout := c.Timeout
		cfg.Timeout = &timeout
	}

	return ark.NewChatModel(ctx, cfg)
}
