package tracing

import (
	"context"
	"fmt"

	"github.com/supportbot/finassist-go/internal/config"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.uber.org/zap"
)

// ShutdownFunc 关闭追踪导出器
type ShutdownFunc func(context.Context) error

// Init 初始化 OpenTelemetry 追踪，未启用时返回空操作
func Init(ctx context.Context, cfg config.TracingConfig, logger *zap.Logger) (ShutdownFunc, error) {
	if !cfg.Enabled {
		logger.Info("链路追踪未启用")
		return func(context.Context) error { return nil }, nil
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = "localhost:4318"
	}

	exporter, err := otlptracehttp.New(ctx,
		otlptracehttp.WithEndpoint(endpoint),
		otlptracehttp.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("创建 OTLP 导出器失败: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(cfg.ServiceName),
		)),
	)
	otel.SetTracerProvider(tp)

	logger.Info("链路追踪已启用", zap.String("endpoint", endpoint))
	return tp.Shutdown, nil
}
