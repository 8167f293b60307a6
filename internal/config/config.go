package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/supportbot/finassist-go/internal/model"
	"gopkg.in/yaml.v3"
)

// EnvPrefix 环境变量前缀，例如 FINASSIST_DASHSCOPE_APIKEY
const EnvPrefix = "FINASSIST"

// Config 应用配置
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Log         LogConfig         `yaml:"log"`
	Redis       RedisConfig       `yaml:"redis"`
	DashScope   DashScopeConfig   `yaml:"dashscope"`
	Gemini      GeminiConfig      `yaml:"gemini"`
	Generation  GenerationConfig  `yaml:"generation"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	VectorStore VectorStoreConfig `yaml:"vectorStore"`
	Knowledge   KnowledgeConfig   `yaml:"knowledge"`
	Fallback    FallbackConfig    `yaml:"fallback"`
	Dialogue    DialogueConfig    `yaml:"dialogue"`
	Session     SessionConfig     `yaml:"session"`
	Events      EventsConfig      `yaml:"events"`
	Tracing     TracingConfig     `yaml:"tracing"`
	Services    ServicesConfig    `yaml:"services"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port int    `yaml:"port"`
	Name string `yaml:"name"`
}

// LogConfig 日志配置
type LogConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
	File  string `yaml:"file"`  // 为空时只输出到控制台
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// DashScopeConfig 通义千问配置
type DashScopeConfig struct {
	APIKey         string `yaml:"apiKey"`
	Model          string `yaml:"model"`
	EmbeddingModel string `yaml:"embeddingModel"`
	BaseURL        string `yaml:"baseURL"`
}

// GeminiConfig Gemini 配置
type GeminiConfig struct {
	APIKey string `yaml:"apiKey"`
	Model  string `yaml:"model"`
}

// GenerationConfig 文本生成配置
type GenerationConfig struct {
	Backend        string        `yaml:"backend"` // dashscope, gemini
	AttemptTimeout time.Duration `yaml:"attemptTimeout"`
	Retry          RetryConfig   `yaml:"retry"`
}

// RetryConfig 限流重试策略
type RetryConfig struct {
	MaxAttempts int           `yaml:"maxAttempts"`
	InitialWait time.Duration `yaml:"initialWait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// EmbeddingConfig 向量化配置
type EmbeddingConfig struct {
	Provider    string        `yaml:"provider"` // dashscope, local
	Dimension   int           `yaml:"dimension"`
	CacheTTL    time.Duration `yaml:"cacheTTL"`
	BatchSize   int           `yaml:"batchSize"`
	Concurrency int           `yaml:"concurrency"`
}

// VectorStoreConfig 向量索引配置
type VectorStoreConfig struct {
	Driver   string  `yaml:"driver"` // memory, pgvector
	DSN      string  `yaml:"dsn"`
	Table    string  `yaml:"table"`
	MinScore float64 `yaml:"minScore"`
}

// KnowledgeConfig 知识库文件
type KnowledgeConfig struct {
	Files []string `yaml:"files"`
}

// FallbackConfig 兜底回答配置
type FallbackConfig struct {
	Disabled            bool                             `yaml:"disabled"`
	Strategy            string                           `yaml:"strategy"`
	ConfidenceThreshold float64                          `yaml:"confidenceThreshold"`
	FallbackIntents     []string                         `yaml:"fallbackIntents"`
	Blocklist           []string                         `yaml:"blocklist"`
	BrandName           string                           `yaml:"brandName"`
	Messages            MessagesConfig                   `yaml:"messages"`
	Strategies          map[string]StrategyProfileConfig `yaml:"strategies" ignored:"true"`
}

// MessagesConfig 固定回复文案
type MessagesConfig struct {
	Decline      string `yaml:"decline"`
	Disabled     string `yaml:"disabled"`
	Insufficient string `yaml:"insufficient"`
	Unavailable  string `yaml:"unavailable"`
}

// StrategyProfileConfig 单个策略的检索与生成参数
type StrategyProfileConfig struct {
	K           int     `yaml:"k"`
	PerDocChars int     `yaml:"perDocChars"`
	MaxTokens   int     `yaml:"maxTokens"`
	Temperature float64 `yaml:"temperature"`
	MaxChars    int     `yaml:"maxChars"`
}

// DialogueConfig 对话状态配置
type DialogueConfig struct {
	TemplatesFile  string              `yaml:"templatesFile"`
	TypoCorrection bool                `yaml:"typoCorrection"`
	DeclarePrefix  string              `yaml:"declarePrefix"`
	ResetIntent    string              `yaml:"resetIntent"`
	PhaseMap       map[string]string   `yaml:"phaseMap" ignored:"true"`
	ProductRules   []ProductRuleConfig `yaml:"productRules" ignored:"true"`
}

// ProductRuleConfig 产品关键词规则，列表顺序即平局时的优先顺序
type ProductRuleConfig struct {
	Product  string   `yaml:"product"`
	Keywords []string `yaml:"keywords"`
}

// SessionConfig 会话状态存储配置
type SessionConfig struct {
	Store string        `yaml:"store"` // memory, redis
	TTL   time.Duration `yaml:"ttl"`
}

// EventsConfig 回答事件配置
type EventsConfig struct {
	NATSURL string `yaml:"natsURL"`
	Subject string `yaml:"subject"`
	Stream  string `yaml:"stream"`
}

// TracingConfig 链路追踪配置
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"serviceName"`
}

// ServicesConfig 服务地址配置
type ServicesConfig struct {
	Fallback string `yaml:"fallback"` // 为空时在进程内调用兜底服务
}

// LoadConfig 加载配置文件，并用 .env 与环境变量覆盖
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("加载 .env 失败: %w", err)
	}
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("读取环境变量失败: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ApplyDefaults 填充未配置项
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.Name == "" {
		c.Server.Name = "finassist"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Redis.Host == "" {
		c.Redis.Host = "localhost"
	}
	if c.Redis.Port == 0 {
		c.Redis.Port = 6379
	}
	if c.DashScope.Model == "" {
		c.DashScope.Model = "qwen-turbo"
	}
	if c.DashScope.EmbeddingModel == "" {
		c.DashScope.EmbeddingModel = "text-embedding-v2"
	}
	if c.Gemini.Model == "" {
		c.Gemini.Model = "gemini-2.0-flash"
	}

	if c.Generation.Backend == "" {
		c.Generation.Backend = "dashscope"
	}
	if c.Generation.AttemptTimeout == 0 {
		c.Generation.AttemptTimeout = 30 * time.Second
	}
	if c.Generation.Retry.MaxAttempts == 0 {
		c.Generation.Retry.MaxAttempts = 5
	}
	if c.Generation.Retry.InitialWait == 0 {
		c.Generation.Retry.InitialWait = 15 * time.Second
	}
	if c.Generation.Retry.Multiplier == 0 {
		c.Generation.Retry.Multiplier = 4
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "dashscope"
	}
	if c.Embedding.Dimension == 0 {
		c.Embedding.Dimension = 256
	}
	if c.Embedding.CacheTTL == 0 {
		c.Embedding.CacheTTL = 10 * time.Minute
	}
	if c.Embedding.BatchSize == 0 {
		c.Embedding.BatchSize = 25
	}
	if c.Embedding.Concurrency == 0 {
		c.Embedding.Concurrency = 4
	}

	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = "memory"
	}
	if c.VectorStore.Table == "" {
		c.VectorStore.Table = "knowledge_documents"
	}

	if c.Fallback.Strategy == "" {
		c.Fallback.Strategy = string(model.StrategyStaticRAG)
	}
	if c.Fallback.ConfidenceThreshold == 0 {
		c.Fallback.ConfidenceThreshold = 0.6
	}
	if len(c.Fallback.FallbackIntents) == 0 {
		c.Fallback.FallbackIntents = []string{"nlu_fallback", "out_of_scope"}
	}
	if c.Fallback.BrandName == "" {
		c.Fallback.BrandName = "BillMart"
	}

	if c.Dialogue.DeclarePrefix == "" {
		c.Dialogue.DeclarePrefix = "declare_"
	}
	if c.Dialogue.ResetIntent == "" {
		c.Dialogue.ResetIntent = "ask_loan_need"
	}

	if c.Session.Store == "" {
		c.Session.Store = "memory"
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = 24 * time.Hour
	}

	if c.Events.Subject == "" {
		c.Events.Subject = "finassist.answers"
	}
	if c.Events.Stream == "" {
		c.Events.Stream = "FINASSIST"
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = c.Server.Name
	}
}

// Validate 校验配置
func (c *Config) Validate() error {
	if _, ok := model.ParseStrategy(c.Fallback.Strategy); !ok {
		return fmt.Errorf("未知的兜底策略: %s", c.Fallback.Strategy)
	}
	for name := range c.Fallback.Strategies {
		if _, ok := model.ParseStrategy(name); !ok {
			return fmt.Errorf("未知的策略配置: %s", name)
		}
	}
	if c.Generation.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.maxAttempts 必须大于 0")
	}
	if c.Generation.Retry.Multiplier < 1 {
		return fmt.Errorf("retry.multiplier 不能小于 1")
	}
	switch c.Generation.Backend {
	case "dashscope", "gemini":
	default:
		return fmt.Errorf("未知的生成后端: %s", c.Generation.Backend)
	}
	switch c.Embedding.Provider {
	case "dashscope", "local":
	default:
		return fmt.Errorf("未知的向量化提供方: %s", c.Embedding.Provider)
	}
	switch c.VectorStore.Driver {
	case "memory":
	case "pgvector":
		if c.VectorStore.DSN == "" {
			return fmt.Errorf("pgvector 需要配置 vectorStore.dsn")
		}
	default:
		return fmt.Errorf("未知的向量索引: %s", c.VectorStore.Driver)
	}
	switch c.Session.Store {
	case "memory", "redis":
	default:
		return fmt.Errorf("未知的会话存储: %s", c.Session.Store)
	}
	return nil
}
