package client

import "context"

// Prompt 一次生成调用的提示词
type Prompt struct {
	System string
	User   string
}

// GenerationParams 生成参数
type GenerationParams struct {
	MaxTokens   int
	Temperature float64
}

// Backend 文本生成后端
type Backend interface {
	Complete(ctx context.Context, prompt Prompt, params GenerationParams) (string, error)
}

// Embedder 文本向量化，入库与查询必须使用同一个实现
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// EmbedOne 向量化单条文本
func EmbedOne(ctx context.Context, e Embedder, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, errNoEmbedding
	}
	return vectors[0], nil
}
