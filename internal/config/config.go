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
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Log     LogConfig
	AI      AIConfig
	Persona PersonaConfig
	Store   StoreConfig
	Chat    ChatConfig
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

	persona, err := loadPersonaConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:  server,
		Log:     loadLogConfig(),
		AI:      ai,
		Persona: persona,
		Store:   store,
		Chat:    chat,
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	CORSOrigins []string
}

// loadServerConfig 解析服务器监听地址与跨域白名单。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8000"
	}

	origins := splitList(getEnvOrDefault("CORS_ORIGINS", "http://localhost:3000"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8000" 或 "127.0.0.1:8000"。
		return ServerConfig{Addr: port, CORSOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, CORSOrigins: origins}, nil
}

// LogConfig 描述日志级别与输出格式。
type LogConfig struct {
	Level  string
	Format string
}

func loadLogConfig() LogConfig {
	return LogConfig{
		Level:  getEnvOrDefault("LOG_LEVEL", "info"),
		Format: getEnvOrDefault("LOG_FORMAT", "json"),
	}
}

// Provider names accepted by AI_PROVIDER.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
	ProviderGemini = "gemini"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration

	OpenAI OpenAIConfig
	Ark    ArkConfig
	Gemini GeminiConfig
}

// OpenAIConfig 描述 OpenAI 兼容接口的凭证。
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// ArkConfig 描述火山方舟模型的凭证。
type ArkConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// GeminiConfig 描述 Gemini 模型的凭证。
type GeminiConfig struct {
	APIKey string
	Model  string
}

// Enabled 表示所选 provider 是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderOpenAI:
		return c.OpenAI.Model != "" && (c.OpenAI.APIKey != "" || c.OpenAI.BaseURL != "")
	case ProviderArk:
		return c.Ark.Model != "" && (c.Ark.APIKey != "" || (c.Ark.AccessKey != "" && c.Ark.SecretKey != ""))
	case ProviderGemini:
		return c.Gemini.Model != "" && c.Gemini.APIKey != ""
	default:
		return false
	}
}

// NewArkChatModel 使用配置创建一个方舟模型实例。
func (c AIConfig) NewArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if c.Ark.Model == "" || (c.Ark.APIKey == "" && (c.Ark.AccessKey == "" || c.Ark.SecretKey == "")) {
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

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	var timeout *time.Duration
	if c.Timeout > 0 {
		val := c.Timeout
		timeout = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.Ark.BaseURL,
		Region:      c.Ark.Region,
		APIKey:      c.Ark.APIKey,
		AccessKey:   c.Ark.AccessKey,
		SecretKey:   c.Ark.SecretKey,
		Model:       c.Ark.Model,
		Timeout:     timeout,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	switch provider {
	case ProviderOpenAI, ProviderArk, ProviderGemini:
	default:
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value: %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeoutSeconds := 60
	if override, err := parseOptionalIntEnv("AI_TIMEOUT_SECONDS"); err != nil {
		return AIConfig{}, err
	} else if override != nil && *override > 0 {
		timeoutSeconds = *override
	}

	return AIConfig{
		Provider:    provider,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     time.Duration(timeoutSeconds) * time.Second,
		OpenAI: OpenAIConfig{
			APIKey:  strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL: strings.TrimSpace(os.Getenv("OPENAI_BASE_URL")),
			Model:   getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		},
		Ark: ArkConfig{
			APIKey:    strings.TrimSpace(os.Getenv("ARK_API_KEY")),
			AccessKey: strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
			SecretKey: strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
			Model:     strings.TrimSpace(os.Getenv("ARK_MODEL")),
			BaseURL:   getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
			Region:    getEnvOrDefault("ARK_REGION", "cn-beijing"),
		},
		Gemini: GeminiConfig{
			APIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
			Model:  getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		},
	}, nil
}

// Persona prompt modes accepted by PERSONA_MODE.
const (
	PersonaModeDynamic = "dynamic"
	PersonaModeStatic  = "static"
)

// PersonaConfig 描述人设资源的位置。
type PersonaConfig struct {
	Mode            string
	Dir             string
	PersonalityFile string
}

func loadPersonaConfig() (PersonaConfig, error) {
	mode := strings.ToLower(getEnvOrDefault("PERSONA_MODE", PersonaModeDynamic))
	if mode != PersonaModeDynamic && mode != PersonaModeStatic {
		return PersonaConfig{}, fmt.Errorf("invalid PERSONA_MODE value: %q", mode)
	}

	return PersonaConfig{
		Mode:            mode,
		Dir:             getEnvOrDefault("PERSONA_DIR", "data"),
		PersonalityFile: getEnvOrDefault("PERSONALITY_FILE", "me.txt"),
	}, nil
}

// Store backends accepted by STORE_BACKEND.
const (
	StoreFile     = "file"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// StoreConfig 描述会话存储后端。
type StoreConfig struct {
	Backend     string
	MemoryDir   string
	Format      string
	SQLitePath  string
	DatabaseURL string
}

func loadStoreConfig() (StoreConfig, error) {
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", StoreFile))
	format := strings.ToLower(getEnvOrDefault("MEMORY_FORMAT", "json"))

	cfg := StoreConfig{
		Backend:     backend,
		MemoryDir:   getEnvOrDefault("MEMORY_DIR", "../memory"),
		Format:      format,
		SQLitePath:  getEnvOrDefault("SQLITE_PATH", "../memory/conversations.db"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
	}

	switch backend {
	case StoreFile:
		if format != "json" && format != "yaml" {
			return StoreConfig{}, fmt.Errorf("invalid MEMORY_FORMAT value: %q", format)
		}
	case StoreSQLite, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return StoreConfig{}, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value: %q", backend)
	}

	return cfg, nil
}

// ChatConfig 控制会话编排行为。
type ChatConfig struct {
	SerializeSessions bool
}

func loadChatConfig() (ChatConfig, error) {
	serialize, err := parseBoolEnv("CHAT_SERIALIZE_SESSIONS", false)
	if err != nil {
		return ChatConfig{}, err
	}
	return ChatConfig{SerializeSessions: serialize}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
