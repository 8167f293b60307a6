package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// FallbackClient 远程兜底服务客户端（POST /generate）
type FallbackClient struct {
	baseURL     string
	httpClient  *http.Client
	unavailable string
	logger      *zap.Logger
}

// NewFallbackClient 创建远程兜底客户端，unavailable 为调用失败时返回的固定文案
func NewFallbackClient(baseURL, unavailable string, timeout time.Duration, logger *zap.Logger) *FallbackClient {
	return &FallbackClient{
		baseURL:     strings.TrimRight(baseURL, "/"),
		httpClient:  &http.Client{Timeout: timeout},
		unavailable: unavailable,
		logger:      logger,
	}
}

// Answer 调用远程兜底服务，任何失败都转换为固定文案
func (c *FallbackClient) Answer(ctx context.Context, query string, strategy model.Strategy) model.FallbackAnswer {
	reqBody := model.GenerateRequest{
		Query:    query,
		UseRAG:   strategy != model.StrategyLLMOnly,
		Strategy: string(strategy),
	}

	var resp model.GenerateResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/generate", "", reqBody, &resp); err != nil {
		c.logger.Error("调用兜底服务失败", zap.String("url", c.baseURL), zap.Error(err))
		return c.degraded(strategy, remoteUnavailable)
	}

	outcome := resp.Outcome
	if outcome == "" {
		outcome = model.OutcomeUnavailable
		if resp.Success {
			outcome = model.OutcomeAnswered
		}
	}
	if strings.TrimSpace(resp.Answer) == "" {
		c.logger.Warn("兜底服务返回空回答", zap.String("url", c.baseURL), zap.String("outcome", string(outcome)))
		return c.degraded(strategy, remoteUnavailable)
	}
	if outcome == model.OutcomeUnavailable {
		code := resp.Error
		if code == "" {
			code = remoteUnavailable
		}
		return model.FallbackAnswer{
			Text:      resp.Answer,
			Outcome:   outcome,
			Citations: []model.Citation{},
			Strategy:  strategy,
			Error:     code,
		}
	}

	citations := resp.Citations
	if citations == nil {
		citations = []model.Citation{}
	}
	// 只有生成失败才携带错误码，拒答、关闭、上下文不足与进程内调用一致
	return model.FallbackAnswer{
		Text:                  resp.Answer,
		Outcome:               outcome,
		Citations:             citations,
		RejectedAsOutOfDomain: resp.Rejected || outcome == model.OutcomeRejected,
		Disabled:              outcome == model.OutcomeDisabled,
		Strategy:              strategy,
	}
}

const remoteUnavailable = "remote_unavailable"

func (c *FallbackClient) degraded(strategy model.Strategy, code string) model.FallbackAnswer {
	return model.FallbackAnswer{
		Text:      c.unavailable,
		Outcome:   model.OutcomeUnavailable,
		Citations: []model.Citation{},
		Strategy:  strategy,
		Error:     code,
	}
}
