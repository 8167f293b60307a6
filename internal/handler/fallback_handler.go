package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/service"
	"github.com/supportbot/finassist-go/internal/vectorstore"
	"go.uber.org/zap"
)

// FallbackAnswerer 兜底回答依赖
type FallbackAnswerer interface {
	AnswerTuned(ctx context.Context, query string, strategy model.Strategy, tuning service.Tuning) model.FallbackAnswer
	AnswerWithContext(ctx context.Context, query, contextText string, tuning service.Tuning) model.FallbackAnswer
}

// KnowledgeBase 知识库依赖
type KnowledgeBase interface {
	Ingest(ctx context.Context, docs []model.RawDocument) error
	Search(ctx context.Context, query string, k int) (model.RetrievalResult, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
}

// FallbackHandler 兜底服务接口
type FallbackHandler struct {
	fallback    FallbackAnswerer
	knowledge   KnowledgeBase
	strategy    model.Strategy // /api/answer 未指定策略时使用
	disabled    bool
	serviceName string
	logger      *zap.Logger
}

// NewFallbackHandler 创建兜底服务处理器
func NewFallbackHandler(fallback FallbackAnswerer, knowledge KnowledgeBase, strategy model.Strategy, disabled bool, serviceName string, logger *zap.Logger) *FallbackHandler {
	return &FallbackHandler{
		fallback:    fallback,
		knowledge:   knowledge,
		strategy:    strategy,
		disabled:    disabled,
		serviceName: serviceName,
		logger:      logger,
	}
}

// Register 注册路由
func (h *FallbackHandler) Register(r gin.IRouter) {
	r.POST("/generate", h.Generate)
	r.GET("/health", h.Health)

	api := r.Group("/api")
	api.GET("/health", h.Health)
	api.POST("/answer", h.Answer)
	api.POST("/knowledge", h.AddKnowledge)
	api.GET("/knowledge/search", h.SearchKnowledge)
	api.GET("/knowledge/stats", h.KnowledgeStats)
	api.DELETE("/knowledge/:id", h.DeleteKnowledge)
}

// Generate POST /generate
func (h *FallbackHandler) Generate(c *gin.Context) {
	var req model.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, model.GenerateResponse{Success: false, Error: "invalid request"})
		return
	}

	tuning := service.Tuning{MaxTokens: req.MaxTokens, Temperature: req.Temperature}

	var answer model.FallbackAnswer
	switch {
	case h.disabled:
		answer = h.fallback.AnswerTuned(c.Request.Context(), req.Query, model.StrategyNone, tuning)
	case strings.TrimSpace(req.Context) != "":
		answer = h.fallback.AnswerWithContext(c.Request.Context(), req.Query, req.Context, tuning)
	default:
		strategy := model.StrategyLLMOnly
		if req.UseRAG {
			strategy = model.StrategyStaticRAG
		}
		if req.Strategy != "" {
			parsed, ok := model.ParseStrategy(req.Strategy)
			if !ok {
				c.JSON(http.StatusBadRequest, model.GenerateResponse{Success: false, Error: "unknown strategy"})
				return
			}
			strategy = parsed
		}
		answer = h.fallback.AnswerTuned(c.Request.Context(), req.Query, strategy, tuning)
	}

	h.logger.Info("兜底回答完成",
		zap.String("strategy", string(answer.Strategy)),
		zap.String("outcome", string(answer.Outcome)),
		zap.Int("citations", len(answer.Citations)))

	c.JSON(http.StatusOK, toGenerateResponse(answer))
}

// toGenerateResponse 固定文案替代生成时 success=false 并给出原因
func toGenerateResponse(answer model.FallbackAnswer) model.GenerateResponse {
	resp := model.GenerateResponse{
		Answer:      answer.Text,
		Success:     answer.Outcome == model.OutcomeAnswered,
		SourcesUsed: len(answer.Citations),
		Rejected:    answer.RejectedAsOutOfDomain,
		Citations:   answer.Citations,
		Outcome:     answer.Outcome,
	}
	switch answer.Outcome {
	case model.OutcomeAnswered:
	case model.OutcomeRejected:
		resp.Error = "out_of_domain"
	case model.OutcomeDisabled:
		resp.Error = "fallback_disabled"
	case model.OutcomeInsufficient:
		resp.Error = "insufficient_context"
	default:
		resp.Error = answer.Error
		if resp.Error == "" {
			resp.Error = service.ErrorGenerationFailed
		}
	}
	return resp
}

// Answer POST /api/answer，返回完整的兜底结果
func (h *FallbackHandler) Answer(c *gin.Context) {
	var req struct {
		Query    string `json:"query" binding:"required"`
		Strategy string `json:"strategy"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query 不能为空"})
		return
	}

	strategy := h.strategy
	if req.Strategy != "" {
		parsed, ok := model.ParseStrategy(req.Strategy)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown strategy"})
			return
		}
		strategy = parsed
	}
	if h.disabled {
		strategy = model.StrategyNone
	}

	c.JSON(http.StatusOK, h.fallback.AnswerTuned(c.Request.Context(), req.Query, strategy, service.Tuning{}))
}

// Health GET /health
func (h *FallbackHandler) Health(c *gin.Context) {
	count, err := h.knowledge.Count(c.Request.Context())
	status := "ready"
	if err != nil || count == 0 {
		status = "not initialized"
	}
	if err != nil {
		h.logger.Warn("读取知识库状态失败", zap.Error(err))
	}

	c.JSON(http.StatusOK, gin.H{
		"status":              "UP",
		"service":             h.serviceName,
		"knowledgeBaseStatus": status,
		"documentCount":       count,
	})
}

// AddKnowledge POST /api/knowledge
func (h *FallbackHandler) AddKnowledge(c *gin.Context) {
	var doc model.RawDocument
	if err := c.ShouldBindJSON(&doc); err != nil || doc.ID == "" || strings.TrimSpace(doc.Content) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id 和 content 不能为空"})
		return
	}

	if err := h.knowledge.Ingest(c.Request.Context(), []model.RawDocument{doc}); err != nil {
		h.logger.Error("添加知识失败", zap.String("id", doc.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "添加失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "id": doc.ID})
}

// SearchKnowledge GET /api/knowledge/search?q=&k=
func (h *FallbackHandler) SearchKnowledge(c *gin.Context) {
	query := c.Query("q")
	if strings.TrimSpace(query) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "q 不能为空"})
		return
	}
	k, err := strconv.Atoi(c.DefaultQuery("k", "3"))
	if err != nil || k <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid k"})
		return
	}

	results, err := h.knowledge.Search(c.Request.Context(), query, k)
	if err != nil {
		h.logger.Error("检索知识失败", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "检索失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": query, "results": results})
}

// KnowledgeStats GET /api/knowledge/stats
func (h *FallbackHandler) KnowledgeStats(c *gin.Context) {
	count, err := h.knowledge.Count(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "统计失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documentCount": count, "strategy": h.strategy, "disabled": h.disabled})
}

// DeleteKnowledge DELETE /api/knowledge/:id
func (h *FallbackHandler) DeleteKnowledge(c *gin.Context) {
	id := c.Param("id")
	err := h.knowledge.Delete(c.Request.Context(), id)
	switch {
	case errors.Is(err, vectorstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "文档不存在"})
	case err != nil:
		h.logger.Error("删除知识失败", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除失败"})
	default:
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
