package service

import (
	"context"
	"strings"
	"time"

	"github.com/supportbot/finassist-go/internal/model"
)

// LiveSource 实时补充资料来源，结果按来源自身顺序返回
type LiveSource interface {
	Lookup(ctx context.Context, query string, limit int) (model.RetrievalResult, error)
}

type regulatorySnippet struct {
	id       string
	title    string
	url      string
	content  string
	triggers []string // 为空表示始终返回
}

var regulatorySnippets = []regulatorySnippet{
	{
		id:      "live_rbi_digital_lending",
		title:   "RBI Digital Lending Guidelines",
		url:     "https://www.rbi.org.in/Scripts/NotificationUser.aspx?Id=12382",
		content: "RBI digital lending guidelines require loan disbursals and repayments to flow directly between the borrower and the regulated entity, a Key Fact Statement before the contract is signed, and a cooling-off period for exiting digital loans.",
	},
	{
		id:      "live_mca_compliance",
		title:   "MCA Compliance Requirements",
		url:     "https://www.mca.gov.in/content/mca/global/en/acts-rules/ebooks/acts.html",
		content: "Companies must file annual returns and financial statements with the Ministry of Corporate Affairs, maintain statutory registers and keep director KYC current to remain in active status.",
	},
	{
		id:       "live_rbi_nbfc_master_direction",
		title:    "RBI Master Direction for NBFCs",
		url:      "https://www.rbi.org.in/Scripts/BS_ViewMasDirections.aspx?id=12550",
		content:  "The scale-based regulation framework classifies NBFCs into base, middle, upper and top layers. NBFCs must follow KYC master directions, fair practices code and prudential norms for invoice and supply chain financing.",
		triggers: []string{"nbfc", "supply chain", "scf", "kyc", "invoice"},
	},
	{
		id:       "live_sebi_circular",
		title:    "SEBI Circular on Listed Entities",
		url:      "https://www.sebi.gov.in/legal/circulars.html",
		content:  "SEBI circulars require listed entities to disclose material events to stock exchanges, follow LODR obligations and meet disclosure norms for securities offerings.",
		triggers: []string{"securities", "listed", "stock exchange", "ipo"},
	},
}

// MaxRegulatorySnippets 单次查询最多返回的监管资料数
const MaxRegulatorySnippets = 3

// RegulatorySource 按查询关键词返回固定监管资料
type RegulatorySource struct {
	now func() time.Time
}

// NewRegulatorySource 创建监管资料来源，now 为 nil 时使用当前时间
func NewRegulatorySource(now func() time.Time) *RegulatorySource {
	if now == nil {
		now = time.Now
	}
	return &RegulatorySource{now: now}
}

// Lookup 返回与查询相关的监管资料，得分均为 0
func (s *RegulatorySource) Lookup(ctx context.Context, query string, limit int) (model.RetrievalResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit > MaxRegulatorySnippets {
		limit = MaxRegulatorySnippets
	}
	if limit <= 0 {
		return model.RetrievalResult{}, nil
	}

	q := strings.ToLower(query)
	accessed := s.now().Format("2006-01-02")

	results := make(model.RetrievalResult, 0, limit)
	for _, snip := range regulatorySnippets {
		if len(results) == limit {
			break
		}
		if !matchesAny(q, snip.triggers) {
			continue
		}
		results = append(results, model.ScoredDocument{Document: model.Document{
			ID:         snip.id,
			Content:    snip.content,
			Title:      snip.title,
			SourceURL:  snip.url,
			SourceType: model.SourceLive,
			Date:       accessed,
		}})
	}
	return results, nil
}

func matchesAny(text string, triggers []string) bool {
	if len(triggers) == 0 {
		return true
	}
	for _, t := range triggers {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
