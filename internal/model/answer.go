package model

import "strings"

// Strategy 兜底回答策略
type Strategy string

const (
	StrategyLLMOnly    Strategy = "llm_only"
	StrategyStaticRAG  Strategy = "static_rag"
	StrategyDynamicRAG Strategy = "dynamic_rag"
	StrategyDynamicLLM Strategy = "dynamic_llm"
	StrategyNone       Strategy = "none"
)

// ParseStrategy 解析策略名称（不区分大小写）
func ParseStrategy(s string) (Strategy, bool) {
	switch Strategy(strings.ToLower(strings.TrimSpace(s))) {
	case StrategyLLMOnly:
		return StrategyLLMOnly, true
	case StrategyStaticRAG:
		return StrategyStaticRAG, true
	case StrategyDynamicRAG:
		return StrategyDynamicRAG, true
	case StrategyDynamicLLM:
		return StrategyDynamicLLM, true
	case StrategyNone:
		return StrategyNone, true
	default:
		return "", false
	}
}

// Outcome 兜底回答的结果类型
type Outcome string

const (
	OutcomeAnswered     Outcome = "answered"
	OutcomeRejected     Outcome = "rejected"
	OutcomeDisabled     Outcome = "disabled"
	OutcomeInsufficient Outcome = "insufficient"
	OutcomeUnavailable  Outcome = "unavailable"
)

// FallbackAnswer 兜底回答结果
type FallbackAnswer struct {
	Text                  string             `json:"text"`
	Outcome               Outcome            `json:"outcome"`
	Citations             []Citation         `json:"citations"`
	RejectedAsOutOfDomain bool               `json:"rejectedAsOutOfDomain"`
	Disabled              bool               `json:"disabled,omitempty"`
	Strategy              Strategy           `json:"strategy"`
	SourceBreakdown       map[SourceType]int `json:"sourceBreakdown,omitempty"`
	Error                 string             `json:"error,omitempty"`
}
