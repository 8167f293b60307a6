// Package bootstrap 按配置组装各服务依赖。
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/internal/events"
	"github.com/supportbot/finassist-go/internal/knowledge"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/retry"
	"github.com/supportbot/finassist-go/internal/service"
	"github.com/supportbot/finassist-go/internal/store"
	"github.com/supportbot/finassist-go/internal/vectorstore"
	"github.com/supportbot/finassist-go/pkg/database"
	"github.com/supportbot/finassist-go/pkg/redis"
	"github.com/supportbot/finassist-go/pkg/tracing"
	"go.uber.org/zap"
)

// remoteFallbackTimeout 调用远程兜底服务的超时，需覆盖生成重试的等待
const remoteFallbackTimeout = 5 * time.Minute

// Container 服务依赖
type Container struct {
	Config *config.Config
	Logger *zap.Logger

	Knowledge *service.KnowledgeService
	Fallback  *service.FallbackService
	Answerer  service.Answerer

	Turns    *service.TurnService
	States   store.StateStore
	Sessions *service.SessionService

	closers []func(context.Context) error
}

// New 创建容器并初始化链路追踪
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Container, error) {
	c := &Container{Config: cfg, Logger: logger}

	shutdown, err := tracing.Init(ctx, cfg.Tracing, logger)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, shutdown)
	return c, nil
}

// BuildFallback 组装知识库与兜底回答服务
func (c *Container) BuildFallback(ctx context.Context) error {
	if c.Fallback != nil {
		return nil
	}
	cfg := c.Config

	st, err := c.vectorStore(ctx)
	if err != nil {
		return err
	}
	c.Knowledge = service.NewKnowledgeService(c.embedder(), st, service.NewRegulatorySource(time.Now), service.KnowledgeOptions{
		MinScore:    cfg.VectorStore.MinScore,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Embedding.Concurrency,
	}, c.Logger)

	backend, err := c.backend(ctx)
	if err != nil {
		return err
	}
	policy := retry.NewPolicy(cfg.Generation.Retry.MaxAttempts, cfg.Generation.Retry.InitialWait, cfg.Generation.Retry.Multiplier, client.IsRateLimited)
	generator := service.NewResponseGenerator(backend, policy, cfg.Generation.AttemptTimeout, c.Logger)

	var recorder service.AnswerRecorder
	if r := c.answerRecorder(ctx); r != nil {
		recorder = r
	}

	c.Fallback = service.NewFallbackService(c.Knowledge, generator, recorder, FallbackOptions(cfg.Fallback), c.Logger)
	return nil
}

// LoadKnowledge 导入配置中的知识库文件
func (c *Container) LoadKnowledge(ctx context.Context) error {
	if len(c.Config.Knowledge.Files) == 0 {
		c.Logger.Warn("未配置知识库文件，检索策略将返回固定文案")
		return nil
	}
	docs, err := knowledge.LoadFiles(c.Config.Knowledge.Files, c.Logger)
	if err != nil {
		return err
	}
	if err := c.Knowledge.Ingest(ctx, docs); err != nil {
		return err
	}
	c.Logger.Info("知识库加载完成", zap.Int("documents", len(docs)))
	return nil
}

// BuildDialogue 组装对话服务，配置了远程兜底地址时通过 HTTP 调用兜底服务
func (c *Container) BuildDialogue(ctx context.Context) error {
	cfg := c.Config

	if cfg.Services.Fallback != "" {
		c.Answerer = client.NewFallbackClient(cfg.Services.Fallback, FallbackOptions(cfg.Fallback).Messages.Unavailable, remoteFallbackTimeout, c.Logger)
		c.Logger.Info("使用远程兜底服务", zap.String("url", cfg.Services.Fallback))
	} else {
		if err := c.BuildFallback(ctx); err != nil {
			return err
		}
		if err := c.LoadKnowledge(ctx); err != nil {
			return err
		}
		c.Answerer = c.Fallback
	}

	var templates *service.TemplateResponder
	if cfg.Dialogue.TemplatesFile != "" {
		t, err := service.LoadTemplateResponder(cfg.Dialogue.TemplatesFile)
		if err != nil {
			return err
		}
		templates = t
		c.Logger.Info("脚本回复加载完成", zap.Int("templates", t.Len()))
	}

	strategy, _ := model.ParseStrategy(cfg.Fallback.Strategy)
	c.Turns = service.NewTurnService(service.NewStateManager(StateManagerOptions(cfg.Dialogue)), templates, c.Answerer, service.TurnOptions{
		Strategy:            strategy,
		Disabled:            cfg.Fallback.Disabled,
		ConfidenceThreshold: cfg.Fallback.ConfidenceThreshold,
		FallbackIntents:     cfg.Fallback.FallbackIntents,
	}, c.Logger)

	states, err := c.stateStore(ctx)
	if err != nil {
		return err
	}
	c.States = states
	c.Sessions = service.NewSessionService(service.DefaultHeartbeatOptions(), c.Logger)
	return nil
}

// Close 按创建的逆序释放资源
func (c *Container) Close(ctx context.Context) {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			c.Logger.Warn("释放资源失败", zap.Error(err))
		}
	}
	c.closers = nil
}

func (c *Container) embedder() client.Embedder {
	cfg := c.Config
	var inner client.Embedder
	switch cfg.Embedding.Provider {
	case "local":
		inner = client.NewHashEmbedder(cfg.Embedding.Dimension)
	default:
		inner = client.NewEmbeddingClient(cfg.DashScope.APIKey, cfg.DashScope.EmbeddingModel, c.Logger, dashScopeOptions(cfg.DashScope)...)
	}
	return client.NewCachedEmbedder(inner, cfg.Embedding.CacheTTL, c.Logger)
}

func (c *Container) vectorStore(ctx context.Context) (vectorstore.Store, error) {
	cfg := c.Config.VectorStore
	if cfg.Driver != "pgvector" {
		return vectorstore.NewMemoryVectorStore(c.Logger), nil
	}

	db, err := database.NewPostgres(cfg.DSN)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})

	st := vectorstore.NewPGVectorStore(db, cfg.Table, c.Logger)
	if err := st.Migrate(ctx); err != nil {
		return nil, err
	}
	c.Logger.Info("使用 pgvector 向量索引", zap.String("table", cfg.Table))
	return st, nil
}

func (c *Container) backend(ctx context.Context) (client.Backend, error) {
	cfg := c.Config
	switch cfg.Generation.Backend {
	case "gemini":
		return client.NewGeminiClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model, c.Logger)
	case "dashscope":
		return client.NewDashScopeClient(cfg.DashScope.APIKey, cfg.DashScope.Model, c.Logger, dashScopeOptions(cfg.DashScope)...), nil
	default:
		return nil, fmt.Errorf("未知的生成后端: %s", cfg.Generation.Backend)
	}
}

// answerRecorder 未配置 NATS 或连接失败时返回 nil，不影响回答
func (c *Container) answerRecorder(ctx context.Context) *events.AnswerRecorder {
	cfg := c.Config.Events
	if cfg.NATSURL == "" {
		return nil
	}
	pub, err := events.NewNATSPublisher(ctx, cfg.NATSURL, cfg.Stream, cfg.Subject, c.Logger)
	if err != nil {
		c.Logger.Warn("连接 NATS 失败，回答事件不再发布", zap.Error(err))
		return nil
	}
	recorder := events.NewAnswerRecorder(pub, cfg.Subject, c.Logger)
	c.closers = append(c.closers, func(context.Context) error {
		recorder.Close()
		return nil
	})
	return recorder
}

func (c *Container) stateStore(ctx context.Context) (store.StateStore, error) {
	cfg := c.Config
	if cfg.Session.Store != "redis" {
		return store.NewMemoryStateStore(cfg.Session.TTL), nil
	}

	rdb, err := redis.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, func(context.Context) error { return rdb.Close() })
	return store.NewRedisStateStore(rdb, cfg.Session.TTL, c.Logger), nil
}

func dashScopeOptions(cfg config.DashScopeConfig) []client.Option {
	if cfg.BaseURL == "" {
		return nil
	}
	return []client.Option{client.WithBaseURL(cfg.BaseURL)}
}
