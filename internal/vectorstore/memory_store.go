package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// MemoryVectorStore 内存向量存储
type MemoryVectorStore struct {
	documents map[string]model.Document
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewMemoryVectorStore 创建内存向量存储
func NewMemoryVectorStore(logger *zap.Logger) *MemoryVectorStore {
	return &MemoryVectorStore{
		documents: make(map[string]model.Document),
		logger:    logger,
	}
}

// Upsert 批量写入文档
func (s *MemoryVectorStore) Upsert(_ context.Context, docs []model.Document) error {
	for _, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document ID cannot be empty")
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has empty embedding", doc.ID)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, doc := range docs {
		s.documents[doc.ID] = doc
	}
	s.logger.Debug("文档已写入", zap.Int("count", len(docs)), zap.Int("total", len(s.documents)))
	return nil
}

// Search 向量检索（返回 Top-K 最相似的文档）
func (s *MemoryVectorStore) Search(_ context.Context, vector []float32, topK int, minScore float64) (model.RetrievalResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		return model.RetrievalResult{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(model.RetrievalResult, 0, len(s.documents))
	for _, doc := range s.documents {
		score := cosineSimilarity(vector, doc.Embedding)
		if minScore > 0 && score < minScore {
			continue
		}
		results = append(results, model.ScoredDocument{Document: doc, Score: score})
	}

	// 得分降序，得分相同按 ID 升序，保证结果稳定
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})

	if len(results) > topK {
		results = results[:topK]
	}

	s.logger.Debug("检索完成",
		zap.Int("docCount", len(s.documents)),
		zap.Int("resultCount", len(results)),
		zap.Float64("topScore", topScore(results)))

	return results, nil
}

// Get 获取文档
func (s *MemoryVectorStore) Get(id string) (model.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[id]
	if !ok {
		return model.Document{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return doc, nil
}

// Delete 删除文档
func (s *MemoryVectorStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.documents[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.documents, id)
	s.logger.Info("文档已删除", zap.String("id", id))
	return nil
}

// Count 获取文档数量
func (s *MemoryVectorStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

// cosineSimilarity 计算余弦相似度
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func topScore(results model.RetrievalResult) float64 {
	if len(results) == 0 {
		return 0
	}
	return results[0].Score
}
