package service

import (
	"strings"
	"unicode"
)

// DefaultKnownTerms 拼写纠正的目标词表
var DefaultKnownTerms = []string{
	"gigcash", "empcash", "scf", "icf", "imark",
	"eligibility", "process", "fees",
	"individual", "business", "lender", "freelancer",
}

// DefaultTypoCutoff 相似度阈值
const DefaultTypoCutoff = 0.7

// TypoCorrector 将拼错的单词纠正为最接近的已知词
type TypoCorrector struct {
	terms  []string
	known  map[string]struct{}
	cutoff float64
}

// NewTypoCorrector 创建拼写纠正器
func NewTypoCorrector(terms []string, cutoff float64) *TypoCorrector {
	c := &TypoCorrector{
		terms:  make([]string, 0, len(terms)),
		known:  make(map[string]struct{}, len(terms)),
		cutoff: cutoff,
	}
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := c.known[t]; dup {
			continue
		}
		c.terms = append(c.terms, t)
		c.known[t] = struct{}{}
	}
	return c
}

// DefaultTypoCorrector 使用默认词表与阈值
func DefaultTypoCorrector() *TypoCorrector {
	return NewTypoCorrector(DefaultKnownTerms, DefaultTypoCutoff)
}

// Correct 逐词纠正，返回小写文本。两个字符以内的词和已知词保持不变
func (c *TypoCorrector) Correct(text string) string {
	words := strings.Fields(strings.ToLower(text))
	for i, w := range words {
		core := strings.TrimFunc(w, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		if len([]rune(core)) <= 2 {
			continue
		}
		if _, ok := c.known[core]; ok {
			continue
		}
		if best, ok := c.closest(core); ok {
			words[i] = strings.Replace(w, core, best, 1)
		}
	}
	return strings.Join(words, " ")
}

// closest 返回相似度最高且不低于阈值的已知词，同分取词表靠前者
func (c *TypoCorrector) closest(word string) (string, bool) {
	best, bestScore := "", 0.0
	for _, t := range c.terms {
		if s := similarity(word, t); s >= c.cutoff && s > bestScore {
			best, bestScore = t, s
		}
	}
	return best, best != ""
}

// similarity Ratcliff/Obershelp 相似度：2*匹配字符数/总长度
func similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

// matchingRunes 递归累计最长公共子串两侧的匹配字符数
func matchingRunes(a, b []rune) int {
	i, j, n := longestCommon(a, b)
	if n == 0 {
		return 0
	}
	return n + matchingRunes(a[:i], b[:j]) + matchingRunes(a[i+n:], b[j+n:])
}

// longestCommon 最长公共子串，长度相同时取 a 中最靠前者
func longestCommon(a, b []rune) (int, int, int) {
	bestI, bestJ, bestN := 0, 0, 0
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > bestN {
					bestI, bestJ, bestN = i-cur[j], j-cur[j], cur[j]
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestN
}
