package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/retry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// GenerateParams 生成参数，MaxChars 为回答的硬上限（<= 0 不限制）
type GenerateParams struct {
	MaxTokens   int
	Temperature float64
	MaxChars    int
}

// ResponseGenerator 调用生成后端，只对限流错误按策略重试
type ResponseGenerator struct {
	backend        client.Backend
	policy         retry.Policy
	attemptTimeout time.Duration
	logger         *zap.Logger
	tracer         trace.Tracer
}

// NewResponseGenerator 创建生成器。policy.RetryIf 为空时只重试限流错误
func NewResponseGenerator(backend client.Backend, policy retry.Policy, attemptTimeout time.Duration, logger *zap.Logger) *ResponseGenerator {
	if policy.RetryIf == nil {
		policy.RetryIf = client.IsRateLimited
	}
	return &ResponseGenerator{
		backend:        backend,
		policy:         policy,
		attemptTimeout: attemptTimeout,
		logger:         logger,
		tracer:         otel.Tracer("finassist/generation"),
	}
}

// Policy 当前使用的重试策略
func (g *ResponseGenerator) Policy() retry.Policy {
	return g.policy
}

// Generate 生成回答。重试耗尽返回 ErrGenerationUnavailable，其他错误立即返回
func (g *ResponseGenerator) Generate(ctx context.Context, prompt client.Prompt, params GenerateParams) (string, error) {
	ctx, span := g.tracer.Start(ctx, "generation.generate", trace.WithAttributes(
		attribute.Int("max_tokens", params.MaxTokens),
		attribute.Float64("temperature", params.Temperature),
	))
	defer span.End()

	var text string
	attempts := 0
	err := g.policy.Do(ctx, func(ctx context.Context, attempt int) error {
		attempts = attempt
		out, err := g.complete(ctx, prompt, params)
		if err != nil {
			if client.IsRateLimited(err) {
				g.logger.Warn("生成后端限流",
					zap.Int("attempt", attempt),
					zap.Int("maxAttempts", g.policy.MaxAttempts),
					zap.Duration("backoff", g.policy.Backoff(attempt)))
			}
			return err
		}
		text = out
		return nil
	})
	span.SetAttributes(attribute.Int("attempts", attempts))

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generation failed")

		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			g.logger.Error("限流重试次数耗尽", zap.Int("attempts", exhausted.Attempts), zap.Error(err))
			return "", fmt.Errorf("%w: %w", ErrGenerationUnavailable, err)
		}
		g.logger.Error("生成失败", zap.String("kind", string(client.ErrorKindOf(err))), zap.Error(err))
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", &client.GenerationError{Kind: client.KindEmptyResponse, Err: errors.New("empty answer")}
	}
	return capChars(text, params.MaxChars), nil
}

func (g *ResponseGenerator) complete(ctx context.Context, prompt client.Prompt, params GenerateParams) (string, error) {
	if g.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.attemptTimeout)
		defer cancel()
	}
	return g.backend.Complete(ctx, prompt, client.GenerationParams{
		MaxTokens:   params.MaxTokens,
		Temperature: params.Temperature,
	})
}

// capChars 超出上限时截断并追加省略号
func capChars(s string, limit int) string {
	return truncateRunes(s, limit)
}
