package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// ErrSessionNotFound 会话不存在或已断开
var ErrSessionNotFound = errors.New("会话不存在")

// HeartbeatOptions 心跳检测参数
type HeartbeatOptions struct {
	Interval       time.Duration // 检测周期
	Timeout        time.Duration // 超过该时长未收到心跳记一次丢失
	MaxMissedBeats int           // 丢失次数达到该值时清理会话
}

// DefaultHeartbeatOptions 30 秒检测一次，60 秒无心跳记为丢失，连续 3 次清理
func DefaultHeartbeatOptions() HeartbeatOptions {
	return HeartbeatOptions{Interval: 30 * time.Second, Timeout: 60 * time.Second, MaxMissedBeats: 3}
}

// SessionService WebSocket 对话会话注册表
type SessionService struct {
	sessions map[string]*model.DialogueSession
	mu       sync.RWMutex
	opts     HeartbeatOptions
	logger   *zap.Logger
	now      func() time.Time
}

// NewSessionService 创建会话注册表，心跳检测需调用 Run 启动
func NewSessionService(opts HeartbeatOptions, logger *zap.Logger) *SessionService {
	d := DefaultHeartbeatOptions()
	if opts.Interval <= 0 {
		opts.Interval = d.Interval
	}
	if opts.Timeout <= 0 {
		opts.Timeout = d.Timeout
	}
	if opts.MaxMissedBeats <= 0 {
		opts.MaxMissedBeats = d.MaxMissedBeats
	}
	return &SessionService{
		sessions: make(map[string]*model.DialogueSession),
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

// Register 注册会话，同一 sessionID 的旧连接会被关闭，会话状态沿用旧值
func (s *SessionService) Register(sessionID string, conn *websocket.Conn, clientIP string, state model.ConversationState) *model.DialogueSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.sessions[sessionID]; ok {
		s.logger.Info("会话重新连接，关闭旧连接", zap.String("sessionId", sessionID))
		state = existing.CurrentState()
		if existing.Conn != nil {
			existing.Conn.Close()
		}
	}

	session := &model.DialogueSession{
		SessionID:     sessionID,
		Conn:          conn,
		ClientIP:      clientIP,
		State:         state,
		LastHeartbeat: s.now(),
	}
	s.sessions[sessionID] = session

	s.logger.Info("会话注册成功", zap.String("sessionId", sessionID), zap.String("clientIp", clientIP))
	return session
}

// Get 获取会话
func (s *SessionService) Get(sessionID string) (*model.DialogueSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// Send 向会话发送消息，发送失败时移除会话
func (s *SessionService) Send(sessionID string, message interface{}) error {
	session, err := s.Get(sessionID)
	if err != nil {
		s.logger.Warn("会话不在线，消息发送失败", zap.String("sessionId", sessionID))
		return err
	}

	if err := session.WriteMessage(message); err != nil {
		s.logger.Error("消息发送失败", zap.String("sessionId", sessionID), zap.Error(err))
		s.Remove(sessionID)
		return err
	}
	return nil
}

// Heartbeat 更新心跳时间
func (s *SessionService) Heartbeat(sessionID string) bool {
	session, err := s.Get(sessionID)
	if err != nil {
		return false
	}
	session.UpdateHeartbeat()
	s.logger.Debug("心跳已更新", zap.String("sessionId", sessionID))
	return true
}

// Remove 移除会话
func (s *SessionService) Remove(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[sessionID]; !ok {
		return false
	}
	delete(s.sessions, sessionID)
	s.logger.Info("会话已移除", zap.String("sessionId", sessionID))
	return true
}

// Count 在线会话数
func (s *SessionService) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Run 周期性检测心跳，ctx 取消时返回
func (s *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

// sweep 一轮心跳检测
func (s *SessionService) sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for sessionID, session := range s.sessions {
		if session.SinceHeartbeat(now) <= s.opts.Timeout {
			continue
		}

		missed := session.IncrementMissedBeats()
		if missed < s.opts.MaxMissedBeats {
			s.logger.Warn("会话心跳丢失", zap.String("sessionId", sessionID), zap.Int("missedBeats", missed))
			continue
		}

		s.logger.Info("清理无效会话", zap.String("sessionId", sessionID), zap.Int("missedBeats", missed))
		if session.Conn != nil {
			session.Conn.Close()
		}
		delete(s.sessions, sessionID)
	}
}
