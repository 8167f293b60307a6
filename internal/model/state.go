package model

import "strings"

// UserCategory 用户类别
type UserCategory string

const (
	CategoryIndividual UserCategory = "INDIVIDUAL"
	CategoryBusiness   UserCategory = "BUSINESS"
	CategoryLender     UserCategory = "LENDER"
	CategoryUnknown    UserCategory = "UNKNOWN"
)

// Phase 会话阶段
type Phase string

const (
	PhaseInitial   Phase = "INITIAL"
	PhaseExploring Phase = "EXPLORING"
	PhaseFocused   Phase = "FOCUSED"
	PhaseProcess   Phase = "PROCESS"
	PhaseApplying  Phase = "APPLYING"
)

// 产品类别
const (
	ProductGigCash        = "gigcash"
	ProductEmpCash        = "empcash"
	ProductSCF            = "scf"
	ProductICF            = "icf"
	ProductIMark          = "imark"
	ProductShortTermLoan  = "short_term_loan"
	ProductTermLoan       = "term_loan"
	ProductLRD            = "lrd"
	ProductLenderServices = "lender_services"
)

// ProductOrder 产品类别的固定顺序，得分相同时取靠前者
var ProductOrder = []string{
	ProductGigCash,
	ProductEmpCash,
	ProductSCF,
	ProductICF,
	ProductIMark,
	ProductShortTermLoan,
	ProductTermLoan,
	ProductLRD,
	ProductLenderServices,
}

// ParseUserCategory 解析用户类别，无法识别时返回 UNKNOWN
func ParseUserCategory(s string) UserCategory {
	switch UserCategory(strings.ToUpper(strings.TrimSpace(s))) {
	case CategoryIndividual:
		return CategoryIndividual
	case CategoryBusiness:
		return CategoryBusiness
	case CategoryLender:
		return CategoryLender
	default:
		return CategoryUnknown
	}
}

// ParsePhase 解析会话阶段，无法识别时返回 INITIAL
func ParsePhase(s string) Phase {
	switch Phase(strings.ToUpper(strings.TrimSpace(s))) {
	case PhaseExploring:
		return PhaseExploring
	case PhaseFocused:
		return PhaseFocused
	case PhaseProcess:
		return PhaseProcess
	case PhaseApplying:
		return PhaseApplying
	default:
		return PhaseInitial
	}
}

// ParseProduct 解析产品类别，未知产品返回空字符串
func ParseProduct(s string) string {
	p := strings.ToLower(strings.TrimSpace(s))
	for _, known := range ProductOrder {
		if p == known {
			return known
		}
	}
	return ""
}

// ConversationState 会话状态，每个会话独占一份，按值传递
type ConversationState struct {
	UserCategory UserCategory
	ProductFocus string // 空表示尚未确定
	Phase        Phase
	LastIntent   string
}

// NewConversationState 创建默认会话状态
func NewConversationState() ConversationState {
	return ConversationState{
		UserCategory: CategoryUnknown,
		Phase:        PhaseInitial,
	}
}

// SerializedState 会话状态的持久化形式，由调用方负责存储
type SerializedState struct {
	UserCategory string  `json:"userCategory"`
	ProductFocus *string `json:"productFocus"`
	Phase        string  `json:"phase"`
	LastIntent   *string `json:"lastIntent"`
}

// Serialize 序列化会话状态
func (s ConversationState) Serialize() SerializedState {
	out := SerializedState{
		UserCategory: string(ParseUserCategory(string(s.UserCategory))),
		Phase:        string(ParsePhase(string(s.Phase))),
	}
	if p := ParseProduct(s.ProductFocus); p != "" {
		out.ProductFocus = &p
	}
	if s.LastIntent != "" {
		intent := s.LastIntent
		out.LastIntent = &intent
	}
	return out
}

// DeserializeState 反序列化会话状态，任何输入都不会失败。
// 空字符串的 productFocus 与 lastIntent 等同于 null，再次序列化时输出 null
func DeserializeState(s SerializedState) ConversationState {
	state := ConversationState{
		UserCategory: ParseUserCategory(s.UserCategory),
		Phase:        ParsePhase(s.Phase),
	}
	if s.ProductFocus != nil {
		state.ProductFocus = ParseProduct(*s.ProductFocus)
	}
	if s.LastIntent != nil && strings.TrimSpace(*s.LastIntent) != "" {
		state.LastIntent = *s.LastIntent
	}
	return state
}
