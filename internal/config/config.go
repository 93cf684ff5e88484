package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/beacon/pkg/provider/groq"
)

// Provider names accepted by LLM_PROVIDER.
const (
	ProviderGroq = "groq"
	ProviderArk  = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	AI       AIConfig
	Session  SessionConfig
	Personas PersonaConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		AI:      ai,
		Session: session,
		Personas: PersonaConfig{
			File: strings.TrimSpace(os.Getenv("PERSONAS_FILE")),
		},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	MetricsEnabled bool
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	metrics, err := parseBoolEnv("METRICS_ENABLED", true)
	if err != nil {
		return ServerConfig{}, err
	}

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, MetricsEnabled: metrics}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, MetricsEnabled: metrics}, nil
}

// SessionConfig controls conversation behaviour.
type SessionConfig struct {
	DefaultPersona string
	TypingDelay    time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	delay, err := parseDurationEnv("TYPING_DELAY", 15*time.Millisecond)
	if err != nil {
		return SessionConfig{}, err
	}
	if delay < 0 {
		return SessionConfig{}, fmt.Errorf("invalid TYPING_DELAY value %q: must not be negative", delay)
	}

	return SessionConfig{
		DefaultPersona: getEnvOrDefault("DEFAULT_PERSONA", "ARK"),
		TypingDelay:    delay,
	}, nil
}

// PersonaConfig points at an optional persona table replacing the built-in one.
type PersonaConfig struct {
	File string
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	Temperature float64
	Timeout     time.Duration

	// Groq
	BaseURL       string
	Model         string
	CredentialEnv string

	// Ark
	ArkAPIKey    string
	ArkAccessKey string
	ArkSecretKey string
	ArkModel     string
	ArkBaseURL   string
	ArkRegion    string
}

// Credential reads the Groq key from the environment on every call so a key
// exported after startup is picked up without a restart.
func (c AIConfig) Credential() string {
	return strings.TrimSpace(os.Getenv(c.CredentialEnv))
}

// ArkEnabled 表示 Ark 是否提供了必需的密钥。
func (c AIConfig) ArkEnabled() bool {
	return c.ArkModel != "" && (c.ArkAPIKey != "" || (c.ArkAccessKey != "" && c.ArkSecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	switch c.Provider {
	case ProviderGroq:
		return groq.New(groq.Config{
			BaseURL:     c.BaseURL,
			Model:       c.Model,
			Temperature: c.Temperature,
			Timeout:     c.Timeout,
			Credential:  c.Credential,
		})
	case ProviderArk:
		return c.newArkChatModel(ctx)
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q", c.Provider)
	}
}

func (c AIConfig) newArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.ArkEnabled() {
		return nil, fmt.Errorf("Ark 凭证或模型配置缺失，至少提供 ARK_API_KEY + ARK_MODEL 或 AK/SK 组合")
	}

	temperature := float32(c.Temperature)
	timeout := c.Timeout

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.ArkBaseURL,
		Region:      c.ArkRegion,
		APIKey:      c.ArkAPIKey,
		AccessKey:   c.ArkAccessKey,
		SecretKey:   c.ArkSecretKey,
		Model:       c.ArkModel,
		Temperature: &temperature,
		Timeout:     &timeout,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("LLM_PROVIDER", ProviderGroq))
	if provider != ProviderGroq && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid LLM_PROVIDER value %q", provider)
	}

	temperature := groq.DefaultTemperature
	if override, err := parseOptionalFloatEnv("LLM_TEMPERATURE"); err != nil {
		return AIConfig{}, err
	} else if override != nil {
		if *override < 0 || *override > 2 {
			return AIConfig{}, fmt.Errorf("invalid LLM_TEMPERATURE value %v: must be between 0 and 2", *override)
		}
		temperature = *override
	}

	timeout := groq.DefaultTimeout
	if seconds, err := parseOptionalIntEnv("LLM_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if seconds != nil {
		if *seconds < 1 {
			return AIConfig{}, fmt.Errorf("invalid LLM_TIMEOUT_SECONDS value %d: must be positive", *seconds)
		}
		timeout = time.Duration(*seconds) * time.Second
	}

	return AIConfig{
		Provider:      provider,
		Temperature:   temperature,
		Timeout:       timeout,
		BaseURL:       getEnvOrDefault("GROQ_BASE_URL", groq.DefaultBaseURL),
		Model:         getEnvOrDefault("GROQ_MODEL", groq.DefaultModel),
		CredentialEnv: getEnvOrDefault("GROQ_API_KEY_ENV", "GROQ_API_KEY"),
		ArkAPIKey:     strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		ArkAccessKey:  strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		ArkSecretKey:  strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		ArkModel:      strings.TrimSpace(os.Getenv("ARK_MODEL")),
		ArkBaseURL:    getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		ArkRegion:     getEnvOrDefault("ARK_REGION", "cn-beijing"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
