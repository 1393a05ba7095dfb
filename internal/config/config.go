package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Store  StoreConfig
	Mail   MailConfig
	NATS   NATSConfig
	Chat   ChatConfig
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

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	mail, err := loadMailConfig()
	if err != nil {
		return nil, err
	}

	nats, err := loadNATSConfig()
	if err != nil {
		return nil, err
	}

	chat, err := loadChatConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Store: store, Mail: mail, NATS: nats, Chat: chat}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := splitList(getEnvOrDefault("CORS_ALLOWED_ORIGINS", "*"))

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port, AllowedOrigins: origins}, nil
}

// AI providers.
const (
	ProviderOpenAI = "openai"
	ProviderArk    = "ark"
)

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	APIKey      string
	AccessKey   string
	SecretKey   string
	Model       string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	if c.Model == "" {
		return false
	}
	if c.Provider == ProviderArk {
		return c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != "")
	}
	return c.APIKey != ""
}

// NewChatModel 使用配置创建一个 Ark 模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if c.Provider != ProviderArk || !c.Enabled() {
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

func loadAIConfig() (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("AI_PROVIDER", ProviderOpenAI))
	if provider != ProviderOpenAI && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid AI_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("AI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}
	if temperature == nil {
		def := 0.7
		temperature = &def
	}

	topP, err := parseOptionalFloatEnv("AI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:    provider,
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
	}

	if provider == ProviderArk {
		cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Model = strings.TrimSpace(os.Getenv("ARK_MODEL"))
		cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
		return cfg, nil
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
	cfg.Model = getEnvOrDefault("OPENAI_MODEL", "gpt-4o-mini")
	cfg.BaseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
	return cfg, nil
}

// StoreConfig 描述会话存储后端。
type StoreConfig struct {
	Backend          string
	Collection       string
	DialTimeout      time.Duration
	MongoURI         string
	MongoDatabase    string
	RedisURL         string
	RedisKeyPrefix   string
	RedisSessionTTL  time.Duration
	FirestoreProject string
}

func loadStoreConfig() (StoreConfig, error) {
	mongoURI := strings.TrimSpace(os.Getenv("MONGODB_URI"))

	defaultBackend := "memory"
	if mongoURI != "" {
		defaultBackend = "mongo"
	}
	backend := strings.ToLower(getEnvOrDefault("STORE_BACKEND", defaultBackend))

	dialTimeout, err := parseDurationEnv("STORE_DIAL_TIMEOUT", 10*time.Second)
	if err != nil {
		return StoreConfig{}, err
	}

	ttl, err := parseDurationEnv("REDIS_SESSION_TTL", 0)
	if err != nil {
		return StoreConfig{}, err
	}

	cfg := StoreConfig{
		Backend:          backend,
		Collection:       getEnvOrDefault("MONGODB_COLLECTION", "sessions"),
		DialTimeout:      dialTimeout,
		MongoURI:         mongoURI,
		MongoDatabase:    getEnvOrDefault("MONGODB_DATABASE", "celeste"),
		RedisURL:         getEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		RedisKeyPrefix:   getEnvOrDefault("REDIS_KEY_PREFIX", "celeste"),
		RedisSessionTTL:  ttl,
		FirestoreProject: strings.TrimSpace(os.Getenv("FIRESTORE_PROJECT")),
	}

	switch backend {
	case "memory", "redis":
	case "mongo":
		if cfg.MongoURI == "" {
			return StoreConfig{}, fmt.Errorf("STORE_BACKEND=mongo requires MONGODB_URI")
		}
	case "firestore":
		if cfg.FirestoreProject == "" {
			return StoreConfig{}, fmt.Errorf("STORE_BACKEND=firestore requires FIRESTORE_PROJECT")
		}
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_BACKEND value %q", backend)
	}

	return cfg, nil
}

// MailConfig 描述 SMTP 发信配置。
type MailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	FromName string
	Subject  string
}

// Enabled 表示是否可以发送邮件。
func (c MailConfig) Enabled() bool {
	return c.Host != "" && c.Username != "" && c.Password != ""
}

func loadMailConfig() (MailConfig, error) {
	port := 587
	if override, err := parseOptionalIntEnv("EMAIL_PORT"); err != nil {
		return MailConfig{}, err
	} else if override != nil {
		port = *override
	}

	return MailConfig{
		Host:     getEnvOrDefault("EMAIL_HOST", "smtp.gmail.com"),
		Port:     port,
		Username: strings.TrimSpace(os.Getenv("EMAIL_USER")),
		Password: strings.TrimSpace(os.Getenv("EMAIL_PASS")),
		FromName: getEnvOrDefault("EMAIL_FROM_NAME", "Celeste 🌱"),
		Subject:  getEnvOrDefault("EMAIL_SUBJECT", "📝 Historial de tu sesión con Celeste"),
	}, nil
}

// NATSConfig 描述可选的 NATS 请求/应答入口。
type NATSConfig struct {
	URL           string
	SubjectPrefix string
	Timeout       time.Duration
}

// Enabled 表示是否配置了 NATS。
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

func loadNATSConfig() (NATSConfig, error) {
	timeout, err := parseDurationEnv("NATS_TIMEOUT", 60*time.Second)
	if err != nil {
		return NATSConfig{}, err
	}

	return NATSConfig{
		URL:           strings.TrimSpace(os.Getenv("NATS_URL")),
		SubjectPrefix: getEnvOrDefault("NATS_SUBJECT_PREFIX", "celeste"),
		Timeout:       timeout,
	}, nil
}

// ChatConfig 描述对话相关设置。
type ChatConfig struct {
	Location  *time.Location
	PersonaID string
}

func loadChatConfig() (ChatConfig, error) {
	name := getEnvOrDefault("CHAT_TIMEZONE", "America/Bogota")
	loc, err := time.LoadLocation(name)
	if err != nil {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_TIMEZONE value %q: %w", name, err)
	}

	return ChatConfig{
		Location:  loc,
		PersonaID: getEnvOrDefault("CHAT_PERSONA", "celeste"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
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
