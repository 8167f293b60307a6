package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/store"
	"go.uber.org/zap"
)

// TurnProcessor 单轮对话处理
type TurnProcessor interface {
	Process(ctx context.Context, req model.TurnRequest) model.TurnResponse
}

// TurnHandler 对话接口，未携带 priorState 时由服务端保存会话状态
type TurnHandler struct {
	turns  TurnProcessor
	states store.StateStore
	logger *zap.Logger
}

// NewTurnHandler 创建对话处理器
func NewTurnHandler(turns TurnProcessor, states store.StateStore, logger *zap.Logger) *TurnHandler {
	return &TurnHandler{turns: turns, states: states, logger: logger}
}

// Register 注册路由
func (h *TurnHandler) Register(r gin.IRouter) {
	api := r.Group("/api")
	api.POST("/turn", h.Turn)
	api.DELETE("/session/:id", h.DeleteSession)
}

// Turn POST /api/turn
func (h *TurnHandler) Turn(c *gin.Context) {
	var req model.TurnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	if strings.TrimSpace(req.IntentName) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "intentName 不能为空"})
		return
	}

	ctx := c.Request.Context()
	stored := req.PriorState == nil
	if stored {
		if req.SessionID == "" {
			req.SessionID = uuid.New().String()
		}
		prior, err := h.states.Load(ctx, req.SessionID)
		switch {
		case err == nil:
			req.PriorState = &prior
		case errors.Is(err, store.ErrStateNotFound):
		default:
			// 读取失败时按新会话处理
			h.logger.Warn("读取会话状态失败", zap.String("sessionId", req.SessionID), zap.Error(err))
		}
	}

	resp := h.turns.Process(ctx, req)

	if stored {
		if err := h.states.Save(ctx, req.SessionID, resp.NewState); err != nil {
			h.logger.Error("保存会话状态失败", zap.String("sessionId", req.SessionID), zap.Error(err))
		}
	}
	c.JSON(http.StatusOK, resp)
}

// DeleteSession DELETE /api/session/:id
func (h *TurnHandler) DeleteSession(c *gin.Context) {
	id := c.Param("id")
	if err := h.states.Delete(c.Request.Context(), id); err != nil {
		h.logger.Error("删除会话状态失败", zap.String("sessionId", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
