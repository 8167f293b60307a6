package model

import "time"

// Entity 外部 NLU 抽取的实体
type Entity struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// TurnRequest 单轮对话输入
type TurnRequest struct {
	SessionID  string           `json:"sessionId,omitempty"`
	IntentName string           `json:"intentName"`
	Confidence *float64         `json:"confidence,omitempty"`
	Entities   []Entity         `json:"entities"`
	RawText    string           `json:"rawText"`
	PriorState *SerializedState `json:"priorState,omitempty"`
}

// 回复来源
const (
	ResponseSourceClarification = "clarification"
	ResponseSourceScripted      = "scripted"
	ResponseSourceFallback      = "fallback"
)

// TurnResponse 单轮对话输出
type TurnResponse struct {
	SessionID    string          `json:"sessionId,omitempty"`
	ResponseText string          `json:"responseText"`
	NewState     SerializedState `json:"newState"`
	Source       string          `json:"source"`
	Fallback     *FallbackAnswer `json:"fallback,omitempty"`
}

// GenerateRequest /generate 请求
type GenerateRequest struct {
	Query       string   `json:"query"`
	Context     string   `json:"context"`
	MaxTokens   int      `json:"maxTokens"`
	Temperature *float64 `json:"temperature"`
	UseRAG      bool     `json:"useRag"`
	Strategy    string   `json:"strategy,omitempty"`
}

// GenerateResponse /generate 响应
type GenerateResponse struct {
	Answer      string     `json:"answer"`
	Success     bool       `json:"success"`
	Error       string     `json:"error,omitempty"`
	SourcesUsed int        `json:"sourcesUsed"`
	Rejected    bool       `json:"rejectedAsOutOfDomain,omitempty"`
	Citations   []Citation `json:"citations,omitempty"`
	Outcome     Outcome    `json:"outcome,omitempty"`
}

// 消息类型
const (
	MessageTypeTurn       = "TURN"
	MessageTypeHeartbeat  = "HEARTBEAT"
	MessageTypeTurnResult = "TURN_RESULT"
	MessageTypeError      = "ERROR"
)

// SocketMessage WebSocket 消息
type SocketMessage struct {
	MessageID string        `json:"messageId"`
	Type      string        `json:"type"` // TURN, HEARTBEAT, TURN_RESULT, ERROR
	Turn      *TurnRequest  `json:"turn,omitempty"`
	Result    *TurnResponse `json:"result,omitempty"`
	Message   string        `json:"message,omitempty"`
	SessionID string        `json:"sessionId,omitempty"`
	Timestamp time.Time     `json:"timestamp"`
}
