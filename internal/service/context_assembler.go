package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/supportbot/finassist-go/internal/model"
)

// 来源标签
const (
	LabelKnowledgeBase = "BillMart Knowledge Base"
	LabelRegulator     = "Regulatory Authority"
)

// DefaultDomainLabels 监管机构域名到标签的映射
func DefaultDomainLabels() map[string]string {
	return map[string]string{
		"rbi.org.in":  "RBI",
		"sebi.gov.in": "SEBI",
		"mca.gov.in":  "MCA",
	}
}

const ellipsis = "..."

// ContextAssembler 将检索结果拼成带编号的上下文与引用列表
type ContextAssembler struct {
	labels map[string]string
}

// NewContextAssembler 创建上下文组装器，labels 为空时使用默认映射
func NewContextAssembler(labels map[string]string) *ContextAssembler {
	if len(labels) == 0 {
		labels = DefaultDomainLabels()
	}
	return &ContextAssembler{labels: labels}
}

// Assemble 每篇文档截断到 perDocChars 个字符，按结果顺序编号为 [Source i]
func (a *ContextAssembler) Assemble(results model.RetrievalResult, perDocChars int) (string, []model.Citation) {
	if len(results) == 0 {
		return "", []model.Citation{}
	}

	parts := make([]string, 0, len(results))
	citations := make([]model.Citation, 0, len(results))
	for i, r := range results {
		doc := r.Document
		index := i + 1

		label := a.Label(doc)
		header := fmt.Sprintf("[Source %d] %s", index, label)
		if doc.Title != "" {
			header += " - " + doc.Title
		}
		parts = append(parts, header+"\n"+truncateRunes(doc.Content, perDocChars))

		citations = append(citations, model.Citation{
			Index:        index,
			Title:        doc.Title,
			URL:          doc.SourceURL,
			SourceType:   doc.SourceType,
			Label:        label,
			DateAccessed: doc.Date,
		})
	}
	return strings.Join(parts, "\n\n"), citations
}

// Label 根据来源域名生成标签，未收录的域名给通用标签
func (a *ContextAssembler) Label(doc model.Document) string {
	if host := hostOf(doc.SourceURL); host != "" {
		if label, ok := a.labels[host]; ok {
			return label
		}
	}
	if doc.SourceType == model.SourceInternal {
		return LabelKnowledgeBase
	}
	return LabelRegulator
}

func hostOf(raw string) string {
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// truncateRunes 超出 limit 个字符时截断并追加省略号，limit <= 0 不截断
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + ellipsis
}
