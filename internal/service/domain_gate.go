package service

import "strings"

// DefaultBlocklist 默认的领域外关键词
func DefaultBlocklist() []string {
	return []string{
		"crypto", "bitcoin", "ethereum",
		"investment advice", "stock market", "share price", "mutual fund",
		"insurance policy", "life insurance",
		"travel",
	}
}

// DomainGate 领域过滤，命中黑名单的查询直接拒答
type DomainGate struct {
	blocklist []string
}

// NewDomainGate 创建领域过滤器，blocklist 为空时使用默认列表
func NewDomainGate(blocklist []string) *DomainGate {
	if len(blocklist) == 0 {
		blocklist = DefaultBlocklist()
	}
	terms := make([]string, 0, len(blocklist))
	for _, term := range blocklist {
		if term = strings.ToLower(strings.TrimSpace(term)); term != "" {
			terms = append(terms, term)
		}
	}
	return &DomainGate{blocklist: terms}
}

// Check 返回命中的黑名单词
func (g *DomainGate) Check(query string) (string, bool) {
	q := strings.ToLower(query)
	for _, term := range g.blocklist {
		if strings.Contains(q, term) {
			return term, true
		}
	}
	return "", false
}
