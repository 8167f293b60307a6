package service

import (
	"strings"

	"github.com/supportbot/finassist-go/internal/model"
)

// ProductRule 产品关键词规则。规则表的顺序即得分相同时的优先顺序
type ProductRule struct {
	Product  string
	Keywords []string
}

// DefaultProductRules 默认产品关键词规则表
func DefaultProductRules() []ProductRule {
	return []ProductRule{
		{Product: model.ProductGigCash, Keywords: []string{
			"gigcash", "gig cash", "gig-cash", "gig", "gog",
			"freelancer", "contractor", "independent contractor",
			"zomato", "uber", "swiggy", "ola", "dunzo", "rapido",
			"delivery", "driver", "gig worker", "gig work",
		}},
		{Product: model.ProductEmpCash, Keywords: []string{
			"empcash", "emp cash", "emp-cash",
			"salary", "employee", "salaried", "payroll", "advance",
			"salary advance", "salary loan", "employee advance",
			"full time", "permanent", "company employee",
		}},
		{Product: model.ProductSCF, Keywords: []string{
			"scf", "supply chain finance", "supply chain financing",
			"business", "sme", "msme", "company", "corporate",
			"invoice", "bill", "vendor", "dealer", "supplier",
			"bill discounting", "invoice financing", "working capital",
		}},
		{Product: model.ProductICF, Keywords: []string{
			"icf", "insurance claim finance", "insurance claim financing",
			"hospital", "medical", "healthcare", "clinic", "nursing home",
			"insurance", "claim", "tpa", "cashless", "reimbursement",
		}},
		{Product: model.ProductIMark, Keywords: []string{
			"imark", "i-mark", "i mark",
			"credit rating", "credit score", "credit grading", "rating",
			"creditworthiness", "credit assessment", "financial rating",
			"business rating", "company rating", "msme rating",
		}},
		{Product: model.ProductShortTermLoan, Keywords: []string{
			"short term loan", "short-term loan", "best loan",
			"quick loan", "immediate loan", "urgent loan", "fast loan",
			"small loan", "emergency loan", "instant loan",
			"urgent money", "quick cash", "immediate funding",
		}},
		{Product: model.ProductTermLoan, Keywords: []string{
			"term loan", "long term loan", "long-term loan",
			"business loan", "expansion loan", "equipment loan",
			"machinery loan", "growth loan", "capital loan",
			"fixed term", "installment loan", "emi loan",
		}},
		{Product: model.ProductLRD, Keywords: []string{
			"lrd", "lease rental discounting", "lease rental financing",
			"lease", "rental", "rent", "property", "real estate",
			"commercial property", "office lease", "shop lease",
			"lease finance", "rental finance", "property finance",
		}},
		{Product: model.ProductLenderServices, Keywords: []string{
			"lender", "nbfc", "bank", "financial institution",
			"finance company", "lending partner",
			"invest", "investment", "funding partner", "capital",
			"finance partner", "loan provider", "funding opportunity",
			"partnership", "deal flow", "investment opportunity",
			"lending opportunity", "portfolio",
		}},
	}
}

// DefaultPhaseMap 默认意图到会话阶段的映射
func DefaultPhaseMap() map[string]model.Phase {
	return map[string]model.Phase{
		"ask_process":     model.PhaseProcess,
		"ask_eligibility": model.PhaseFocused,
		"ask_apply":       model.PhaseApplying,
		"ask_info":        model.PhaseExploring,
	}
}

// 默认的声明意图前缀与重置意图
const (
	DefaultDeclarePrefix = "declare_"
	DefaultResetIntent   = "ask_loan_need"
)

// StateManagerOptions 状态管理器配置，零值字段使用默认值
type StateManagerOptions struct {
	Rules         []ProductRule
	PhaseMap      map[string]model.Phase
	DeclarePrefix string
	ResetIntent   string
	Corrector     *TypoCorrector // 为 nil 时不做拼写纠正
}

// StateManager 会话状态转换。无副作用，只依赖入参
type StateManager struct {
	rules         []ProductRule
	phaseMap      map[string]model.Phase
	declarePrefix string
	resetIntent   string
	corrector     *TypoCorrector
}

// NewStateManager 创建状态管理器
func NewStateManager(opts StateManagerOptions) *StateManager {
	rules := opts.Rules
	if len(rules) == 0 {
		rules = DefaultProductRules()
	}
	phaseMap := opts.PhaseMap
	if len(phaseMap) == 0 {
		phaseMap = DefaultPhaseMap()
	}
	declarePrefix := opts.DeclarePrefix
	if declarePrefix == "" {
		declarePrefix = DefaultDeclarePrefix
	}
	resetIntent := opts.ResetIntent
	if resetIntent == "" {
		resetIntent = DefaultResetIntent
	}

	return &StateManager{
		rules:         normalizeRules(rules),
		phaseMap:      phaseMap,
		declarePrefix: declarePrefix,
		resetIntent:   resetIntent,
		corrector:     opts.Corrector,
	}
}

// normalizeRules 关键词统一转小写，去掉空关键词与未知产品
func normalizeRules(rules []ProductRule) []ProductRule {
	out := make([]ProductRule, 0, len(rules))
	for _, r := range rules {
		product := model.ParseProduct(r.Product)
		if product == "" {
			continue
		}
		keywords := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			if kw = strings.ToLower(strings.TrimSpace(kw)); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		out = append(out, ProductRule{Product: product, Keywords: keywords})
	}
	return out
}

// Update 根据本轮意图、实体与原文计算新的会话状态
func (m *StateManager) Update(intent string, entities []model.Entity, rawText string, state model.ConversationState) model.ConversationState {
	next := model.ConversationState{
		UserCategory: model.ParseUserCategory(string(state.UserCategory)),
		ProductFocus: model.ParseProduct(state.ProductFocus),
		Phase:        model.ParsePhase(string(state.Phase)),
		LastIntent:   state.LastIntent,
	}

	switch {
	case strings.HasPrefix(intent, m.declarePrefix):
		next.UserCategory = model.ParseUserCategory(strings.TrimPrefix(intent, m.declarePrefix))
	case intent == m.resetIntent:
		// 通用资金咨询会有意清空用户类别，触发重新确认身份
		next.UserCategory = model.CategoryUnknown
	}

	scores := m.scoreProducts(m.scoringText(rawText, entities))
	if best := pickBest(scores); best >= 0 {
		current := m.ruleIndex(next.ProductFocus)
		// 当前关注产品与最高分持平时保持不变，只有严格更高才切换
		if current < 0 || scores[best] > scores[current] {
			next.ProductFocus = m.rules[best].Product
		}
	}

	if phase, ok := m.phaseMap[intent]; ok {
		next.Phase = phase
	}
	next.LastIntent = intent
	return next
}

// DetectProduct 关键词打分识别产品，得分相同时取规则表中靠前者，未命中返回空
func (m *StateManager) DetectProduct(text string) string {
	best := pickBest(m.scoreProducts(strings.ToLower(text)))
	if best < 0 {
		return ""
	}
	return m.rules[best].Product
}

// NeedsClarification 用户类别未知或产品未确定时需要追问
func (m *StateManager) NeedsClarification(state model.ConversationState) bool {
	return model.ParseUserCategory(string(state.UserCategory)) == model.CategoryUnknown ||
		model.ParseProduct(state.ProductFocus) == ""
}

// ClarificationPrompt 按用户类别生成追问
func (m *StateManager) ClarificationPrompt(state model.ConversationState) string {
	category := model.ParseUserCategory(string(state.UserCategory))
	if category == model.CategoryUnknown {
		return "To help you better, are you an **individual**, **business**, or **lender**?"
	}

	if model.ParseProduct(state.ProductFocus) == "" {
		switch category {
		case model.CategoryIndividual:
			return "Which product interests you? **EmpCash** (salary advance) or **GigCash** (gig worker funding)?"
		case model.CategoryBusiness:
			return "Which service do you need? **Supply Chain Finance**, **Term Loan**, **iMark** credit rating, or something else?"
		case model.CategoryLender:
			return "Are you interested in our **lender partnership** opportunities or **deal flow** information?"
		}
	}
	return "How can I help you today?"
}

// scoringText 打分文本：原文加上产品类实体的值，可选拼写纠正
func (m *StateManager) scoringText(rawText string, entities []model.Entity) string {
	var b strings.Builder
	b.WriteString(rawText)
	for _, e := range entities {
		switch strings.ToLower(e.Type) {
		case "product", "product_name":
			b.WriteString(" ")
			b.WriteString(e.Value)
		}
	}

	text := strings.ToLower(b.String())
	if m.corrector != nil {
		text = m.corrector.Correct(text)
	}
	return text
}

// scoreProducts 每条规则命中的关键词数量（子串匹配），text 需已转小写
func (m *StateManager) scoreProducts(text string) []int {
	scores := make([]int, len(m.rules))
	for i, rule := range m.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				scores[i]++
			}
		}
	}
	return scores
}

func (m *StateManager) ruleIndex(product string) int {
	if product == "" {
		return -1
	}
	for i, rule := range m.rules {
		if rule.Product == product {
			return i
		}
	}
	return -1
}

// pickBest 返回最高分的下标，同分取最靠前者；全为 0 时返回 -1
func pickBest(scores []int) int {
	best := -1
	for i, s := range scores {
		if s > 0 && (best < 0 || s > scores[best]) {
			best = i
		}
	}
	return best
}
