package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/service"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler WebSocket 对话处理器，会话状态保存在连接上
type WebSocketHandler struct {
	sessions *service.SessionService
	turns    TurnProcessor
	logger   *zap.Logger
}

// NewWebSocketHandler 创建 WebSocket 处理器
func NewWebSocketHandler(sessions *service.SessionService, turns TurnProcessor, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{
		sessions: sessions,
		turns:    turns,
		logger:   logger,
	}
}

// HandleWebSocket WebSocket 连接入口，sid 为空时分配新会话
func (h *WebSocketHandler) HandleWebSocket(c *gin.Context) {
	sessionID := c.Query("sid")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("WebSocket 升级失败", zap.Error(err))
		return
	}
	defer conn.Close()

	session := h.sessions.Register(sessionID, conn, c.ClientIP(), model.NewConversationState())
	defer func() {
		// 重连后旧连接不应移除新会话
		if current, err := h.sessions.Get(sessionID); err == nil && current == session {
			h.sessions.Remove(sessionID)
		}
	}()

	h.logger.Info("WebSocket 连接建立", zap.String("sessionId", sessionID))

	for {
		var msg model.SocketMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Error("WebSocket 读取错误", zap.Error(err))
			}
			break
		}
		h.handleMessage(c, session, &msg)
	}

	h.logger.Info("WebSocket 连接断开", zap.String("sessionId", sessionID))
}

// handleMessage 同一连接上的轮次按顺序处理，心跳与回复都只作用于当前连接
func (h *WebSocketHandler) handleMessage(c *gin.Context, session *model.DialogueSession, msg *model.SocketMessage) {
	session.UpdateHeartbeat()

	switch msg.Type {
	case model.MessageTypeTurn:
		if msg.Turn == nil || msg.Turn.IntentName == "" {
			h.reply(session, model.SocketMessage{
				MessageID: msg.MessageID,
				Type:      model.MessageTypeError,
				Message:   "turn.intentName is required",
			})
			return
		}

		req := *msg.Turn
		req.SessionID = session.SessionID
		prior := session.CurrentState().Serialize()
		req.PriorState = &prior

		resp := h.turns.Process(c.Request.Context(), req)
		session.SetState(model.DeserializeState(resp.NewState))
		h.reply(session, model.SocketMessage{
			MessageID: msg.MessageID,
			Type:      model.MessageTypeTurnResult,
			Result:    &resp,
		})

	case model.MessageTypeHeartbeat:

	default:
		h.logger.Warn("未知消息类型",
			zap.String("sessionId", session.SessionID),
			zap.String("type", msg.Type))
		h.reply(session, model.SocketMessage{
			MessageID: msg.MessageID,
			Type:      model.MessageTypeError,
			Message:   "unknown message type",
		})
	}
}

// reply 直接写回发起请求的连接，同一 sid 重连后旧连接的回复不会串到新连接
func (h *WebSocketHandler) reply(session *model.DialogueSession, msg model.SocketMessage) {
	msg.SessionID = session.SessionID
	msg.Timestamp = time.Now()
	if err := session.WriteMessage(msg); err != nil {
		h.logger.Warn("消息发送失败",
			zap.String("sessionId", session.SessionID),
			zap.String("type", msg.Type),
			zap.Error(err))
	}
}
