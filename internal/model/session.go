package model

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DialogueSession WebSocket 对话会话，会话状态由该连接独占
type DialogueSession struct {
	SessionID     string
	Conn          *websocket.Conn
	ClientIP      string
	State         ConversationState
	LastHeartbeat time.Time
	MissedBeats   int
	mu            sync.RWMutex // 保护心跳字段与连接写入
}

// UpdateHeartbeat 更新心跳时间
func (s *DialogueSession) UpdateHeartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LastHeartbeat = time.Now()
	s.MissedBeats = 0
}

// SinceHeartbeat 距上次心跳的时长
func (s *DialogueSession) SinceHeartbeat(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.LastHeartbeat)
}

// IncrementMissedBeats 增加丢失心跳次数并返回当前值
func (s *DialogueSession) IncrementMissedBeats() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MissedBeats++
	return s.MissedBeats
}

// WriteMessage 向 WebSocket 写入消息（线程安全）
func (s *DialogueSession) WriteMessage(message interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Conn.WriteJSON(message)
}

// CurrentState 当前会话状态
func (s *DialogueSession) CurrentState() ConversationState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.State
}

// SetState 保存本轮处理后的会话状态
func (s *DialogueSession) SetState(state ConversationState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
}
