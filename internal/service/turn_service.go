package service

import (
	"context"

	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

// Answerer 兜底回答，进程内的 FallbackService 与远程 FallbackClient 都实现该接口
type Answerer interface {
	Answer(ctx context.Context, query string, strategy model.Strategy) model.FallbackAnswer
}

// TurnOptions 单轮处理配置
type TurnOptions struct {
	Strategy            model.Strategy
	Disabled            bool // 为 true 时策略为 none
	ConfidenceThreshold float64
	FallbackIntents     []string
}

// TurnService 单轮对话处理：更新状态，再选择追问、脚本回复或兜底回答
type TurnService struct {
	states          *StateManager
	templates       *TemplateResponder
	answerer        Answerer
	strategy        model.Strategy
	threshold       float64
	fallbackIntents map[string]struct{}
	logger          *zap.Logger
}

// NewTurnService 创建单轮处理服务，templates 可为 nil
func NewTurnService(states *StateManager, templates *TemplateResponder, answerer Answerer, opts TurnOptions, logger *zap.Logger) *TurnService {
	strategy := opts.Strategy
	if strategy == "" {
		strategy = model.StrategyStaticRAG
	}
	if opts.Disabled {
		strategy = model.StrategyNone
	}

	intents := make(map[string]struct{}, len(opts.FallbackIntents))
	for _, intent := range opts.FallbackIntents {
		intents[intent] = struct{}{}
	}

	return &TurnService{
		states:          states,
		templates:       templates,
		answerer:        answerer,
		strategy:        strategy,
		threshold:       opts.ConfidenceThreshold,
		fallbackIntents: intents,
		logger:          logger,
	}
}

// Strategy 当前生效的兜底策略
func (s *TurnService) Strategy() model.Strategy {
	return s.strategy
}

// Process 处理一轮对话，priorState 为空时从默认状态开始
func (s *TurnService) Process(ctx context.Context, req model.TurnRequest) model.TurnResponse {
	prior := model.NewConversationState()
	if req.PriorState != nil {
		prior = model.DeserializeState(*req.PriorState)
	}

	state := s.states.Update(req.IntentName, req.Entities, req.RawText, prior)
	resp := model.TurnResponse{SessionID: req.SessionID, NewState: state.Serialize()}

	switch {
	case s.isFallbackTurn(req):
		resp.Source = model.ResponseSourceFallback
	case s.states.NeedsClarification(state):
		resp.Source = model.ResponseSourceClarification
		resp.ResponseText = s.states.ClarificationPrompt(state)
	default:
		if text, ok := s.templates.Respond(req.IntentName, state.ProductFocus); ok {
			resp.Source = model.ResponseSourceScripted
			resp.ResponseText = text
		} else {
			resp.Source = model.ResponseSourceFallback
		}
	}

	if resp.Source == model.ResponseSourceFallback {
		answer := s.answerer.Answer(ctx, req.RawText, s.strategy)
		resp.ResponseText = answer.Text
		resp.Fallback = &answer
	}

	s.logger.Info("对话轮次处理完成",
		zap.String("sessionId", req.SessionID),
		zap.String("intent", req.IntentName),
		zap.String("source", resp.Source),
		zap.String("userCategory", string(state.UserCategory)),
		zap.String("productFocus", state.ProductFocus),
		zap.String("phase", string(state.Phase)))
	return resp
}

// isFallbackTurn 兜底意图或置信度低于阈值
func (s *TurnService) isFallbackTurn(req model.TurnRequest) bool {
	if _, ok := s.fallbackIntents[req.IntentName]; ok {
		return true
	}
	return req.Confidence != nil && *req.Confidence < s.threshold
}
