// Package store 保存对话服务的会话状态。
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// ErrStateNotFound 会话状态不存在
var ErrStateNotFound = errors.New("会话状态不存在")

// StateStore 会话状态存储，由调用方在每轮前后读写
type StateStore interface {
	Load(ctx context.Context, sessionID string) (model.SerializedState, error)
	Save(ctx context.Context, sessionID string, state model.SerializedState) error
	Delete(ctx context.Context, sessionID string) error
}

// stateKey Redis 键
func stateKey(sessionID string) string {
	return fmt.Sprintf("dialogue_state:%s", sessionID)
}

// RedisStateStore 基于 Redis 的会话状态存储，每次写入刷新过期时间
type RedisStateStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewRedisStateStore 创建 Redis 会话状态存储
func NewRedisStateStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *RedisStateStore {
	return &RedisStateStore{client: client, ttl: ttl, logger: logger}
}

// Load 读取会话状态
func (s *RedisStateStore) Load(ctx context.Context, sessionID string) (model.SerializedState, error) {
	data, err := s.client.Get(ctx, stateKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.SerializedState{}, ErrStateNotFound
	}
	if err != nil {
		return model.SerializedState{}, fmt.Errorf("读取会话状态失败: %w", err)
	}

	var state model.SerializedState
	if err := json.Unmarshal(data, &state); err != nil {
		return model.SerializedState{}, fmt.Errorf("解析会话状态失败: %w", err)
	}
	return state, nil
}

// Save 写入会话状态
func (s *RedisStateStore) Save(ctx context.Context, sessionID string, state model.SerializedState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("序列化会话状态失败: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(sessionID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("保存会话状态失败: %w", err)
	}
	s.logger.Debug("会话状态已保存", zap.String("sessionId", sessionID))
	return nil
}

// Delete 删除会话状态
func (s *RedisStateStore) Delete(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, stateKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("删除会话状态失败: %w", err)
	}
	return nil
}

// MemoryStateStore 进程内会话状态存储，单实例部署与测试使用
type MemoryStateStore struct {
	cache *cache.Cache
}

// NewMemoryStateStore 创建进程内会话状态存储
func NewMemoryStateStore(ttl time.Duration) *MemoryStateStore {
	return &MemoryStateStore{cache: cache.New(ttl, 2*ttl)}
}

// Load 读取会话状态
func (s *MemoryStateStore) Load(_ context.Context, sessionID string) (model.SerializedState, error) {
	v, ok := s.cache.Get(stateKey(sessionID))
	if !ok {
		return model.SerializedState{}, ErrStateNotFound
	}
	return v.(model.SerializedState), nil
}

// Save 写入会话状态并刷新过期时间
func (s *MemoryStateStore) Save(_ context.Context, sessionID string, state model.SerializedState) error {
	s.cache.SetDefault(stateKey(sessionID), state)
	return nil
}

// Delete 删除会话状态
func (s *MemoryStateStore) Delete(_ context.Context, sessionID string) error {
	s.cache.Delete(stateKey(sessionID))
	return nil
}

// Count 当前保存的会话数
func (s *MemoryStateStore) Count() int {
	return s.cache.ItemCount()
}
