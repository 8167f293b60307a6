// Package events 发布兜底回答审计事件。
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// Publisher 消息发布
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close()
}

// NATSPublisher 基于 JetStream 的发布者
type NATSPublisher struct {
	nc *nats.Conn
	js jetstream.JetStream
}

// NewNATSPublisher 连接 NATS，并确保 stream 存在
func NewNATSPublisher(ctx context.Context, url, stream, subject string, logger *zap.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("连接 NATS 失败: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("创建 JetStream 失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      stream,
		Subjects:  []string{subject},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    7 * 24 * time.Hour,
	})
	if err != nil {
		// stream 可能已由运维创建
		logger.Warn("创建 stream 失败", zap.String("stream", stream), zap.Error(err))
	}

	return &NATSPublisher{nc: nc, js: js}, nil
}

// Publish 发布消息
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("发布到 %s 失败: %w", subject, err)
	}
	return nil
}

// Close 关闭连接
func (p *NATSPublisher) Close() {
	if p.nc != nil {
		p.nc.Close()
	}
}

// AnswerEvent 一次兜底回答的审计记录
type AnswerEvent struct {
	ID              string                   `json:"id"`
	Query           string                   `json:"query"`
	Strategy        model.Strategy           `json:"strategy"`
	Rejected        bool                     `json:"rejected"`
	Disabled        bool                     `json:"disabled"`
	Error           string                   `json:"error,omitempty"`
	Citations       int                      `json:"citations"`
	SourceBreakdown map[model.SourceType]int `json:"sourceBreakdown,omitempty"`
	Timestamp       time.Time                `json:"timestamp"`
}

// NewAnswerEvent 由回答生成审计事件
func NewAnswerEvent(query string, answer model.FallbackAnswer, now time.Time) AnswerEvent {
	return AnswerEvent{
		ID:              uuid.NewString(),
		Query:           query,
		Strategy:        answer.Strategy,
		Rejected:        answer.RejectedAsOutOfDomain,
		Disabled:        answer.Disabled,
		Error:           answer.Error,
		Citations:       len(answer.Citations),
		SourceBreakdown: answer.SourceBreakdown,
		Timestamp:       now,
	}
}

// AnswerRecorder 异步发布回答事件，发布失败只记录日志
type AnswerRecorder struct {
	pub     Publisher
	subject string
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time
	wg      sync.WaitGroup
}

// NewAnswerRecorder 创建回答事件记录器
func NewAnswerRecorder(pub Publisher, subject string, logger *zap.Logger) *AnswerRecorder {
	return &AnswerRecorder{
		pub:     pub,
		subject: subject,
		timeout: 5 * time.Second,
		logger:  logger,
		now:     time.Now,
	}
}

// RecordAnswer 在后台发布事件，不阻塞调用方
func (r *AnswerRecorder) RecordAnswer(query string, answer model.FallbackAnswer) {
	event := NewAnswerEvent(query, answer, r.now())
	data, err := json.Marshal(event)
	if err != nil {
		r.logger.Error("序列化回答事件失败", zap.Error(err))
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		if err := r.pub.Publish(ctx, r.subject, data); err != nil {
			r.logger.Warn("发布回答事件失败", zap.String("eventId", event.ID), zap.Error(err))
		}
	}()
}

// Close 等待未完成的发布后关闭连接
func (r *AnswerRecorder) Close() {
	r.wg.Wait()
	r.pub.Close()
}
