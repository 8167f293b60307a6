package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// GeminiClient Gemini 生成后端
type GeminiClient struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewGeminiClient 创建 Gemini 客户端
func NewGeminiClient(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 Gemini 客户端失败: %w", err)
	}
	return &GeminiClient{client: client, model: model, logger: logger}, nil
}

// Complete 单轮生成，实现 Backend
func (c *GeminiClient) Complete(ctx context.Context, prompt Prompt, params GenerationParams) (string, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(params.Temperature)),
		MaxOutputTokens: int32(params.MaxTokens),
	}
	if prompt.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt.User), cfg)
	if err != nil {
		return "", classifyGeminiError(err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Kind: KindEmptyResponse, Backend: "gemini", Err: errors.New("empty candidate text")}
	}

	if resp.UsageMetadata != nil {
		c.logger.Debug("Gemini 调用完成",
			zap.Int32("promptTokens", resp.UsageMetadata.PromptTokenCount),
			zap.Int32("outputTokens", resp.UsageMetadata.CandidatesTokenCount))
	}
	return text, nil
}

func classifyGeminiError(err error) error {
	code := 0
	var apiErr genai.APIError
	var apiErrPtr *genai.APIError
	switch {
	case errors.As(err, &apiErr):
		code = apiErr.Code
	case errors.As(err, &apiErrPtr):
		code = apiErrPtr.Code
	}

	switch {
	case code == http.StatusTooManyRequests:
		return &GenerationError{Kind: KindRateLimited, Backend: "gemini", StatusCode: code, Err: err}
	case code != 0:
		return &GenerationError{Kind: KindUpstream, Backend: "gemini", StatusCode: code, Err: err}
	default:
		return classifyError("gemini", err)
	}
}
