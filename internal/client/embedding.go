package client

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// EmbeddingClient 通义千问 Embedding 客户端
type EmbeddingClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// EmbeddingRequest 请求结构
type EmbeddingRequest struct {
	Model      string                 `json:"model"`
	Input      EmbeddingInput         `json:"input"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// EmbeddingInput 输入结构
type EmbeddingInput struct {
	Texts []string `json:"texts"`
}

// EmbeddingResponse 响应结构
type EmbeddingResponse struct {
	Output struct {
		Embeddings []struct {
			TextIndex int       `json:"text_index"`
			Embedding []float32 `json:"embedding"`
		} `json:"embeddings"`
	} `json:"output"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// NewEmbeddingClient 创建 Embedding 客户端
func NewEmbeddingClient(apiKey, model string, logger *zap.Logger, opts ...Option) *EmbeddingClient {
	o := buildOptions(opts)
	if model == "" {
		model = "text-embedding-v2"
	}
	return &EmbeddingClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    o.baseURL,
		httpClient: o.httpClient,
		logger:     logger,
	}
}

// Embed 批量获取文本向量。文档与查询使用同一种 text_type，保证向量空间一致
func (c *EmbeddingClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	reqBody := EmbeddingRequest{
		Model: c.model,
		Input: EmbeddingInput{Texts: texts},
		Parameters: map[string]interface{}{
			"text_type": "document",
		},
	}

	var embResp EmbeddingResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+dashScopeEmbeddingPath, c.apiKey, reqBody, &embResp); err != nil {
		return nil, fmt.Errorf("获取文本向量失败: %w", err)
	}

	if len(embResp.Output.Embeddings) != len(texts) {
		return nil, fmt.Errorf("向量数量不匹配: 期望 %d, 实际 %d", len(texts), len(embResp.Output.Embeddings))
	}

	embeddings := make([][]float32, len(texts))
	for _, emb := range embResp.Output.Embeddings {
		if emb.TextIndex < 0 || emb.TextIndex >= len(texts) {
			return nil, fmt.Errorf("非法的 text_index: %d", emb.TextIndex)
		}
		embeddings[emb.TextIndex] = emb.Embedding
	}

	c.logger.Debug("向量获取成功",
		zap.Int("count", len(embeddings)),
		zap.Int("dimension", len(embeddings[0])),
		zap.Int("tokens", embResp.Usage.TotalTokens))

	return embeddings, nil
}
