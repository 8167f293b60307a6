package client

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashEmbedder 本地特征哈希向量化，无需外部服务，用于离线环境与测试
type HashEmbedder struct {
	dimension int
}

// NewHashEmbedder 创建本地向量化器
func NewHashEmbedder(dimension int) *HashEmbedder {
	if dimension <= 0 {
		dimension = 256
	}
	return &HashEmbedder{dimension: dimension}
}

// Embed 对每个词及相邻词对做哈希累加，再做 L2 归一化
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e *HashEmbedder) embed(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := tokenize(text)
	for i, tok := range tokens {
		e.add(vec, tok, 1)
		if i > 0 {
			e.add(vec, tokens[i-1]+" "+tok, 0.5)
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}

func (e *HashEmbedder) add(vec []float32, token string, weight float32) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	vec[h.Sum32()%uint32(e.dimension)] += weight
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
