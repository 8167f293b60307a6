package client

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// CachedEmbedder 为任意 Embedder 增加进程内缓存，重复查询不再请求远端
type CachedEmbedder struct {
	inner  Embedder
	cache  *cache.Cache
	logger *zap.Logger
}

// NewCachedEmbedder 创建带缓存的向量化器
func NewCachedEmbedder(inner Embedder, ttl time.Duration, logger *zap.Logger) *CachedEmbedder {
	return &CachedEmbedder{
		inner:  inner,
		cache:  cache.New(ttl, 2*ttl),
		logger: logger,
	}
}

// Embed 先查缓存，未命中的文本合并为一次请求
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missTexts []string
	var missIdx []int

	for i, text := range texts {
		if v, ok := e.cache.Get(text); ok {
			out[i] = v.([]float32)
			continue
		}
		missTexts = append(missTexts, text)
		missIdx = append(missIdx, i)
	}

	if len(missTexts) == 0 {
		e.logger.Debug("向量缓存全部命中", zap.Int("count", len(texts)))
		return out, nil
	}

	vectors, err := e.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vectors) != len(missTexts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(missTexts), len(vectors))
	}
	for j, vec := range vectors {
		out[missIdx[j]] = vec
		e.cache.SetDefault(missTexts[j], vec)
	}
	return out, nil
}

// ItemCount 缓存条目数
func (e *CachedEmbedder) ItemCount() int {
	return e.cache.ItemCount()
}
