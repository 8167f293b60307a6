package model

import "strings"

// SourceType 文档来源类型
type SourceType string

const (
	SourceStatic   SourceType = "static"
	SourceLive     SourceType = "live"
	SourceInternal SourceType = "internal"
)

// SourceTypes 所有来源类型（用于统计来源分布）
var SourceTypes = []SourceType{SourceStatic, SourceLive, SourceInternal}

// ParseSourceType 解析来源类型，未知值视为 static
func ParseSourceType(s string) SourceType {
	switch SourceType(strings.ToLower(strings.TrimSpace(s))) {
	case SourceLive:
		return SourceLive
	case SourceInternal:
		return SourceInternal
	default:
		return SourceStatic
	}
}

// RawDocument 待入库的原始文档
type RawDocument struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Title      string            `json:"title,omitempty"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
	SourceType SourceType        `json:"sourceType,omitempty"`
	Page       int               `json:"page,omitempty"`
	Date       string            `json:"date,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Document 已入库的知识单元，入库后不再修改
type Document struct {
	ID         string            `json:"id"`
	Content    string            `json:"content"`
	Title      string            `json:"title,omitempty"`
	SourceURL  string            `json:"sourceUrl,omitempty"`
	SourceType SourceType        `json:"sourceType"`
	Page       int               `json:"page,omitempty"`
	Date       string            `json:"date,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Embedding  []float32         `json:"-"`
}

// ScoredDocument 带相似度得分的文档
type ScoredDocument struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// RetrievalResult 检索结果，按得分降序
type RetrievalResult []ScoredDocument

// Citation 引用信息，Index 与上下文中的 [Source i] 编号一致
type Citation struct {
	Index        int        `json:"index"`
	Title        string     `json:"title"`
	URL          string     `json:"url"`
	SourceType   SourceType `json:"sourceType"`
	Label        string     `json:"label"`
	DateAccessed string     `json:"dateAccessed,omitempty"`
}
