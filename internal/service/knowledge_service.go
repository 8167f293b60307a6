package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/vectorstore"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// KnowledgeOptions 检索参数
type KnowledgeOptions struct {
	MinScore    float64 // <= 0 表示不过滤
	BatchSize   int
	Concurrency int
}

// KnowledgeService 知识库服务：入库、向量检索与混合检索
type KnowledgeService struct {
	embedder client.Embedder
	store    vectorstore.Store
	live     LiveSource
	opts     KnowledgeOptions
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewKnowledgeService 创建知识库服务，live 为 nil 时混合检索只使用静态索引
func NewKnowledgeService(embedder client.Embedder, store vectorstore.Store, live LiveSource, opts KnowledgeOptions, logger *zap.Logger) *KnowledgeService {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 25
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	return &KnowledgeService{
		embedder: embedder,
		store:    store,
		live:     live,
		opts:     opts,
		logger:   logger,
		tracer:   otel.Tracer("finassist/knowledge"),
	}
}

// Ingest 分批向量化并写入索引，相同 ID 覆盖旧文档
func (s *KnowledgeService) Ingest(ctx context.Context, raws []model.RawDocument) error {
	ctx, span := s.tracer.Start(ctx, "knowledge.ingest", trace.WithAttributes(attribute.Int("docs", len(raws))))
	defer span.End()

	if len(raws) == 0 {
		return nil
	}
	for _, raw := range raws {
		if raw.ID == "" {
			return fmt.Errorf("document ID cannot be empty")
		}
	}

	s.logger.Info("开始入库", zap.Int("count", len(raws)), zap.Int("batchSize", s.opts.BatchSize))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for start := 0; start < len(raws); start += s.opts.BatchSize {
		end := min(start+s.opts.BatchSize, len(raws))
		batch := raws[start:end]
		g.Go(func() error {
			return s.ingestBatch(gctx, batch)
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ingest failed")
		return &RetrievalError{Op: "ingest", Err: err}
	}

	s.logger.Info("入库完成", zap.Int("count", len(raws)))
	return nil
}

func (s *KnowledgeService) ingestBatch(ctx context.Context, batch []model.RawDocument) error {
	texts := make([]string, len(batch))
	for i, raw := range batch {
		texts[i] = raw.Content
	}

	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("批量向量化失败: %w", err)
	}
	if len(vectors) != len(batch) {
		return fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(batch), len(vectors))
	}

	docs := make([]model.Document, len(batch))
	for i, raw := range batch {
		docs[i] = toDocument(raw, vectors[i])
	}
	if err := s.store.Upsert(ctx, docs); err != nil {
		return fmt.Errorf("批量存储失败: %w", err)
	}
	return nil
}

func toDocument(raw model.RawDocument, vector []float32) model.Document {
	sourceType := raw.SourceType
	if sourceType == "" {
		sourceType = model.SourceInternal
	}
	return model.Document{
		ID:         raw.ID,
		Content:    raw.Content,
		Title:      raw.Title,
		SourceURL:  raw.SourceURL,
		SourceType: sourceType,
		Page:       raw.Page,
		Date:       raw.Date,
		Metadata:   raw.Metadata,
		Embedding:  vector,
	}
}

// Search 向量检索，索引为空时返回空结果
func (s *KnowledgeService) Search(ctx context.Context, query string, k int) (model.RetrievalResult, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.search", trace.WithAttributes(attribute.Int("k", k)))
	defer span.End()

	if k <= 0 || strings.TrimSpace(query) == "" {
		return model.RetrievalResult{}, nil
	}

	vector, err := client.EmbedOne(ctx, s.embedder, query)
	if err != nil {
		span.RecordError(err)
		return nil, &RetrievalError{Op: "embed", Err: err}
	}

	results, err := s.store.Search(ctx, vector, k, s.opts.MinScore)
	if err != nil {
		span.RecordError(err)
		return nil, &RetrievalError{Op: "search", Err: err}
	}

	span.SetAttributes(attribute.Int("results", len(results)))
	s.logger.Debug("检索知识", zap.String("query", query), zap.Int("k", k), zap.Int("results", len(results)))
	return results, nil
}

// LiveSearch 只查询实时来源
func (s *KnowledgeService) LiveSearch(ctx context.Context, query string, k int) (model.RetrievalResult, error) {
	if s.live == nil || k <= 0 {
		return model.RetrievalResult{}, nil
	}
	results, err := s.live.Lookup(ctx, query, k)
	if err != nil {
		return nil, &RetrievalError{Op: "live", Err: err}
	}
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// HybridSearch 静态索引取 k/2 条，实时来源补足到 k 条，不做去重
func (s *KnowledgeService) HybridSearch(ctx context.Context, query string, k int) (model.RetrievalResult, error) {
	ctx, span := s.tracer.Start(ctx, "knowledge.hybrid_search", trace.WithAttributes(attribute.Int("k", k)))
	defer span.End()

	if k <= 0 {
		return model.RetrievalResult{}, nil
	}

	static, err := s.Search(ctx, query, k/2)
	if err != nil {
		// 静态索引失败时仍使用实时来源
		s.logger.Warn("静态检索失败", zap.Error(err))
		static = model.RetrievalResult{}
	}

	live, liveErr := s.LiveSearch(ctx, query, k-len(static))
	if liveErr != nil {
		s.logger.Warn("实时来源查询失败", zap.Error(liveErr))
		if err != nil {
			return nil, errors.Join(err, liveErr)
		}
		return static, nil
	}

	merged := make(model.RetrievalResult, 0, len(static)+len(live))
	merged = append(merged, static...)
	for _, item := range live {
		item.Score = 0
		merged = append(merged, item)
	}

	span.SetAttributes(attribute.Int("static", len(static)), attribute.Int("live", len(live)))
	return merged, nil
}

// Delete 删除文档
func (s *KnowledgeService) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Count 获取文档数量
func (s *KnowledgeService) Count(ctx context.Context) (int, error) {
	return s.store.Count(ctx)
}

// Ready 索引中至少有一篇文档
func (s *KnowledgeService) Ready(ctx context.Context) bool {
	n, err := s.store.Count(ctx)
	return err == nil && n > 0
}
