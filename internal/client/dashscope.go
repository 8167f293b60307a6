package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

const (
	defaultDashScopeBaseURL = "https://dashscope.aliyuncs.com/api/v1"
	dashScopeGenerationPath = "/services/aigc/text-generation/generation"
	dashScopeEmbeddingPath  = "/services/embeddings/text-embedding/text-embedding"
)

// Option DashScope 客户端选项
type Option func(*dashScopeOptions)

type dashScopeOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL 覆盖 API 地址（测试或代理）
func WithBaseURL(baseURL string) Option {
	return func(o *dashScopeOptions) {
		if baseURL != "" {
			o.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithHTTPClient 使用自定义 HTTP 客户端
func WithHTTPClient(httpClient *http.Client) Option {
	return func(o *dashScopeOptions) {
		if httpClient != nil {
			o.httpClient = httpClient
		}
	}
}

func buildOptions(opts []Option) dashScopeOptions {
	o := dashScopeOptions{
		baseURL:    defaultDashScopeBaseURL,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// DashScopeClient 通义千问客户端
type DashScopeClient struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDashScopeClient 创建通义千问客户端
func NewDashScopeClient(apiKey, model string, logger *zap.Logger, opts ...Option) *DashScopeClient {
	o := buildOptions(opts)
	return &DashScopeClient{
		apiKey:     apiKey,
		model:      model,
		baseURL:    o.baseURL,
		httpClient: o.httpClient,
		logger:     logger,
	}
}

// Message 消息
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest 聊天请求
type ChatRequest struct {
	Model      string     `json:"model"`
	Input      Input      `json:"input"`
	Parameters Parameters `json:"parameters,omitempty"`
}

// Input 输入
type Input struct {
	Messages []Message `json:"messages"`
}

// Parameters 参数
type Parameters struct {
	Temperature float64 `json:"temperature,omitempty"`
	TopP        float64 `json:"top_p,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ChatResponse 聊天响应
type ChatResponse struct {
	Output struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"output"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
	RequestID string `json:"request_id"`
}

// Chat 调用通义千问聊天接口
func (c *DashScopeClient) Chat(ctx context.Context, messages []Message, params GenerationParams) (string, error) {
	reqBody := ChatRequest{
		Model: c.model,
		Input: Input{Messages: messages},
		Parameters: Parameters{
			Temperature: params.Temperature,
			MaxTokens:   params.MaxTokens,
		},
	}

	var chatResp ChatResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+dashScopeGenerationPath, c.apiKey, reqBody, &chatResp); err != nil {
		return "", classifyError("dashscope", err)
	}

	c.logger.Debug("通义千问调用完成",
		zap.String("requestId", chatResp.RequestID),
		zap.Int("inputTokens", chatResp.Usage.InputTokens),
		zap.Int("outputTokens", chatResp.Usage.OutputTokens))

	return chatResp.Output.Text, nil
}

// Complete 单轮生成，实现 Backend
func (c *DashScopeClient) Complete(ctx context.Context, prompt Prompt, params GenerationParams) (string, error) {
	messages := make([]Message, 0, 2)
	if prompt.System != "" {
		messages = append(messages, Message{Role: "system", Content: prompt.System})
	}
	messages = append(messages, Message{Role: "user", Content: prompt.User})

	text, err := c.Chat(ctx, messages, params)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", &GenerationError{Kind: KindEmptyResponse, Backend: "dashscope", Err: errors.New("empty output text")}
	}
	return text, nil
}
