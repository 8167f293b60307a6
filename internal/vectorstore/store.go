package vectorstore

import (
	"context"
	"errors"

	"github.com/supportbot/finassist-go/internal/model"
)

// ErrNotFound 文档不存在
var ErrNotFound = errors.New("document not found")

// Store 向量索引。入库完成后只读，可被多个会话并发查询
type Store interface {
	// Upsert 按 ID 写入，相同 ID 覆盖
	Upsert(ctx context.Context, docs []model.Document) error
	// Search 返回最相似的 topK 个文档，按得分降序；minScore <= 0 表示不过滤
	Search(ctx context.Context, vector []float32, topK int, minScore float64) (model.RetrievalResult, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}
