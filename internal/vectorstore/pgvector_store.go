package vectorstore

import (
	"context"
	"fmt"
	"time"

	"github.com/pgvector/pgvector-go"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// documentRow 知识文档表结构
type documentRow struct {
	ID         string            `gorm:"primaryKey;type:varchar(255)"`
	Content    string            `gorm:"type:text;not null"`
	Title      string            `gorm:"type:varchar(512)"`
	SourceURL  string            `gorm:"type:varchar(1024)"`
	SourceType string            `gorm:"type:varchar(16);index"`
	Page       int
	DocDate    string            `gorm:"type:varchar(32)"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb"`
	Embedding  pgvector.Vector   `gorm:"type:vector"`
	UpdatedAt  time.Time
}

type scoredRow struct {
	ID         string
	Content    string
	Title      string
	SourceURL  string
	SourceType string
	Page       int
	DocDate    string
	Metadata   datatypes.JSONMap
	Embedding  pgvector.Vector
	Score      float64
}

// PGVectorStore 基于 PostgreSQL + pgvector 的持久化向量索引
type PGVectorStore struct {
	db     *gorm.DB
	table  string
	logger *zap.Logger
}

// NewPGVectorStore 创建 pgvector 向量索引
func NewPGVectorStore(db *gorm.DB, table string, logger *zap.Logger) *PGVectorStore {
	return &PGVectorStore{db: db, table: table, logger: logger}
}

// Migrate 创建扩展与数据表
func (s *PGVectorStore) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
		return fmt.Errorf("创建 vector 扩展失败: %w", err)
	}
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&documentRow{}); err != nil {
		return fmt.Errorf("迁移知识表失败: %w", err)
	}
	return nil
}

// Upsert 按 ID 写入，冲突时整行覆盖
func (s *PGVectorStore) Upsert(ctx context.Context, docs []model.Document) error {
	if len(docs) == 0 {
		return nil
	}

	rows := make([]documentRow, len(docs))
	for i, doc := range docs {
		if doc.ID == "" {
			return fmt.Errorf("document ID cannot be empty")
		}
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has empty embedding", doc.ID)
		}
		rows[i] = toRow(doc)
	}

	err := s.db.WithContext(ctx).Table(s.table).
		Clauses(clause.OnConflict{UpdateAll: true}).
		Create(&rows).Error
	if err != nil {
		return fmt.Errorf("写入知识表失败: %w", err)
	}

	s.logger.Debug("文档已写入 pgvector", zap.Int("count", len(rows)))
	return nil
}

// Search 按余弦距离检索
func (s *PGVectorStore) Search(ctx context.Context, vector []float32, topK int, minScore float64) (model.RetrievalResult, error) {
	if len(vector) == 0 {
		return nil, fmt.Errorf("query vector cannot be empty")
	}
	if topK <= 0 {
		return model.RetrievalResult{}, nil
	}

	vec := pgvector.NewVector(vector)
	q := s.db.WithContext(ctx).Table(s.table).
		Select("id, content, title, source_url, source_type, page, doc_date, metadata, embedding, 1 - (embedding <=> ?) AS score", vec)
	if minScore > 0 {
		q = q.Where("1 - (embedding <=> ?) >= ?", vec, minScore)
	}

	var rows []scoredRow
	if err := q.Order("score DESC").Order("id ASC").Limit(topK).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("pgvector 检索失败: %w", err)
	}

	results := make(model.RetrievalResult, len(rows))
	for i, row := range rows {
		results[i] = model.ScoredDocument{
			Document: fromRow(documentRow{
				ID:         row.ID,
				Content:    row.Content,
				Title:      row.Title,
				SourceURL:  row.SourceURL,
				SourceType: row.SourceType,
				Page:       row.Page,
				DocDate:    row.DocDate,
				Metadata:   row.Metadata,
				Embedding:  row.Embedding,
			}),
			Score: row.Score,
		}
	}
	return results, nil
}

// Delete 删除文档
func (s *PGVectorStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Table(s.table).Where("id = ?", id).Delete(&documentRow{})
	if res.Error != nil {
		return fmt.Errorf("删除文档失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Count 获取文档数量
func (s *PGVectorStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.db.WithContext(ctx).Table(s.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("统计文档失败: %w", err)
	}
	return int(n), nil
}

func toRow(doc model.Document) documentRow {
	var meta datatypes.JSONMap
	if len(doc.Metadata) > 0 {
		meta = make(datatypes.JSONMap, len(doc.Metadata))
		for k, v := range doc.Metadata {
			meta[k] = v
		}
	}
	return documentRow{
		ID:         doc.ID,
		Content:    doc.Content,
		Title:      doc.Title,
		SourceURL:  doc.SourceURL,
		SourceType: string(doc.SourceType),
		Page:       doc.Page,
		DocDate:    doc.Date,
		Metadata:   meta,
		Embedding:  pgvector.NewVector(doc.Embedding),
	}
}

func fromRow(row documentRow) model.Document {
	var meta map[string]string
	if len(row.Metadata) > 0 {
		meta = make(map[string]string, len(row.Metadata))
		for k, v := range row.Metadata {
			meta[k] = fmt.Sprint(v)
		}
	}
	return model.Document{
		ID:         row.ID,
		Content:    row.Content,
		Title:      row.Title,
		SourceURL:  row.SourceURL,
		SourceType: model.ParseSourceType(row.SourceType),
		Page:       row.Page,
		Date:       row.DocDate,
		Metadata:   meta,
		Embedding:  row.Embedding.Slice(),
	}
}
