package service

import (
	"context"
	"errors"
	"strings"

	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/model"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Retriever 检索依赖
type Retriever interface {
	Search(ctx context.Context, query string, k int) (model.RetrievalResult, error)
	HybridSearch(ctx context.Context, query string, k int) (model.RetrievalResult, error)
	LiveSearch(ctx context.Context, query string, k int) (model.RetrievalResult, error)
}

// Generator 生成依赖
type Generator interface {
	Generate(ctx context.Context, prompt client.Prompt, params GenerateParams) (string, error)
}

// AnswerRecorder 记录每次兜底回答，实现方不能阻塞调用方
type AnswerRecorder interface {
	RecordAnswer(query string, answer model.FallbackAnswer)
}

// StrategyProfile 单个策略的检索与生成参数
type StrategyProfile struct {
	K           int
	PerDocChars int
	Params      GenerateParams
}

// DefaultStrategyProfiles 各策略的默认参数
func DefaultStrategyProfiles() map[model.Strategy]StrategyProfile {
	return map[model.Strategy]StrategyProfile{
		model.StrategyLLMOnly: {
			Params: GenerateParams{MaxTokens: 300, Temperature: 0.3, MaxChars: 1500},
		},
		model.StrategyStaticRAG: {
			K: 3, PerDocChars: 300,
			Params: GenerateParams{MaxTokens: 150, Temperature: 0.3, MaxChars: 1000},
		},
		model.StrategyDynamicRAG: {
			K: 5, PerDocChars: 300,
			Params: GenerateParams{MaxTokens: 400, Temperature: 0.3, MaxChars: 2000},
		},
		model.StrategyDynamicLLM: {
			K: 3, PerDocChars: 100,
			Params: GenerateParams{MaxTokens: 250, Temperature: 0.1, MaxChars: 800},
		},
	}
}

// Messages 固定回复文案
type Messages struct {
	Decline      string
	Disabled     string
	Insufficient string
	Unavailable  string
}

// DefaultMessages 默认文案
func DefaultMessages() Messages {
	return Messages{
		Decline:      "I can only assist with queries related to BillMart products and regulatory compliance. For other topics, please consult appropriate specialists.",
		Disabled:     "Automated answers are currently turned off. Please contact BillMart support at care@billmart.com or +91 93269 46663.",
		Insufficient: "I couldn't find relevant information for your question. Please contact BillMart support at care@billmart.com or +91 93269 46663.",
		Unavailable:  "I'm experiencing technical difficulties right now. Please contact BillMart support at care@billmart.com, call +91 93269 46663, or visit www.billmart.com.",
	}
}

// withDefaults 未配置的文案使用默认值
func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	if m.Decline == "" {
		m.Decline = d.Decline
	}
	if m.Disabled == "" {
		m.Disabled = d.Disabled
	}
	if m.Insufficient == "" {
		m.Insufficient = d.Insufficient
	}
	if m.Unavailable == "" {
		m.Unavailable = d.Unavailable
	}
	return m
}

// 回答中的错误标记
const (
	ErrorGenerationUnavailable = "generation_unavailable"
	ErrorGenerationFailed      = "generation_failed"
)

// FallbackOptions 兜底服务配置，零值字段使用默认值
type FallbackOptions struct {
	Profiles  map[model.Strategy]StrategyProfile
	Messages  Messages
	Blocklist []string
	Brand     string
	Labels    map[string]string
}

// Tuning 单次调用对生成参数的覆盖
type Tuning struct {
	MaxTokens   int      // <= 0 使用策略默认值
	Temperature *float64 // nil 使用策略默认值
}

func (t Tuning) apply(p GenerateParams) GenerateParams {
	if t.MaxTokens > 0 {
		p.MaxTokens = t.MaxTokens
	}
	if t.Temperature != nil {
		p.Temperature = *t.Temperature
	}
	return p
}

// FallbackService 兜底回答编排：领域过滤、检索、组装上下文、生成
type FallbackService struct {
	retriever Retriever
	generator Generator
	recorder  AnswerRecorder
	gate      *DomainGate
	assembler *ContextAssembler
	prompts   *PromptBuilder
	profiles  map[model.Strategy]StrategyProfile
	messages  Messages
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewFallbackService 创建兜底服务，recorder 可为 nil
func NewFallbackService(retriever Retriever, generator Generator, recorder AnswerRecorder, opts FallbackOptions, logger *zap.Logger) *FallbackService {
	profiles := DefaultStrategyProfiles()
	for strategy, p := range opts.Profiles {
		profiles[strategy] = p
	}
	return &FallbackService{
		retriever: retriever,
		generator: generator,
		recorder:  recorder,
		gate:      NewDomainGate(opts.Blocklist),
		assembler: NewContextAssembler(opts.Labels),
		prompts:   NewPromptBuilder(opts.Brand),
		profiles:  profiles,
		messages:  opts.Messages.withDefaults(),
		logger:    logger,
		tracer:    otel.Tracer("finassist/fallback"),
	}
}

// Profile 获取策略参数
func (s *FallbackService) Profile(strategy model.Strategy) (StrategyProfile, bool) {
	p, ok := s.profiles[strategy]
	return p, ok
}

// Answer 按策略生成兜底回答，任何失败都转为固定文案
func (s *FallbackService) Answer(ctx context.Context, query string, strategy model.Strategy) model.FallbackAnswer {
	return s.AnswerTuned(ctx, query, strategy, Tuning{})
}

// AnswerTuned 同 Answer，可覆盖生成参数
func (s *FallbackService) AnswerTuned(ctx context.Context, query string, strategy model.Strategy, tuning Tuning) model.FallbackAnswer {
	ctx, span := s.tracer.Start(ctx, "fallback.answer", trace.WithAttributes(attribute.String("strategy", string(strategy))))
	defer span.End()

	answer := s.answer(ctx, query, strategy, tuning)
	span.SetAttributes(
		attribute.Bool("rejected", answer.RejectedAsOutOfDomain),
		attribute.Int("citations", len(answer.Citations)),
	)
	s.record(query, answer)
	return answer
}

// AnswerWithContext 使用调用方提供的上下文生成，仍然经过领域过滤
func (s *FallbackService) AnswerWithContext(ctx context.Context, query, contextText string, tuning Tuning) model.FallbackAnswer {
	ctx, span := s.tracer.Start(ctx, "fallback.answer_with_context")
	defer span.End()

	answer := s.answerWithContext(ctx, query, contextText, tuning)
	s.record(query, answer)
	return answer
}

func (s *FallbackService) answer(ctx context.Context, query string, strategy model.Strategy, tuning Tuning) model.FallbackAnswer {
	if strategy == model.StrategyNone {
		return s.fixed(strategy, model.OutcomeDisabled)
	}

	profile, ok := s.profiles[strategy]
	if !ok {
		s.logger.Warn("未知策略，使用 static_rag", zap.String("strategy", string(strategy)))
		strategy = model.StrategyStaticRAG
		profile = s.profiles[strategy]
	}

	if rejected, ok := s.reject(query, strategy); ok {
		return rejected
	}
	if strings.TrimSpace(query) == "" {
		return s.fixed(strategy, model.OutcomeInsufficient)
	}

	params := tuning.apply(profile.Params)
	if strategy == model.StrategyLLMOnly {
		return s.generate(ctx, strategy, s.prompts.LLMOnly(query), params, nil, nil)
	}

	results := s.retrieve(ctx, query, strategy, profile.K)
	contextText, citations := s.assembler.Assemble(results, profile.PerDocChars)
	if len(results) == 0 || strings.TrimSpace(contextText) == "" {
		s.logger.Info("检索上下文为空", zap.String("strategy", string(strategy)))
		return s.fixed(strategy, model.OutcomeInsufficient)
	}

	var prompt client.Prompt
	var breakdown map[model.SourceType]int
	switch strategy {
	case model.StrategyDynamicRAG:
		prompt = s.prompts.DynamicRAG(query, contextText)
		breakdown = sourceBreakdown(results)
	case model.StrategyDynamicLLM:
		prompt = s.prompts.DynamicLLM(query, contextText)
	default:
		prompt = s.prompts.StaticRAG(query, contextText)
	}
	return s.generate(ctx, strategy, prompt, params, citations, breakdown)
}

func (s *FallbackService) answerWithContext(ctx context.Context, query, contextText string, tuning Tuning) model.FallbackAnswer {
	strategy := model.StrategyStaticRAG
	if rejected, ok := s.reject(query, strategy); ok {
		return rejected
	}
	if strings.TrimSpace(query) == "" || strings.TrimSpace(contextText) == "" {
		return s.fixed(strategy, model.OutcomeInsufficient)
	}

	params := tuning.apply(s.profiles[strategy].Params)
	return s.generate(ctx, strategy, s.prompts.WithContext(query, contextText), params, nil, nil)
}

// reject 领域过滤，命中时不做任何检索与生成
func (s *FallbackService) reject(query string, strategy model.Strategy) (model.FallbackAnswer, bool) {
	term, hit := s.gate.Check(query)
	if !hit {
		return model.FallbackAnswer{}, false
	}
	s.logger.Info("查询超出业务范围", zap.String("term", term), zap.String("strategy", string(strategy)))
	return s.fixed(strategy, model.OutcomeRejected), true
}

// retrieve 检索失败按空结果处理
func (s *FallbackService) retrieve(ctx context.Context, query string, strategy model.Strategy, k int) model.RetrievalResult {
	var (
		results model.RetrievalResult
		err     error
	)
	switch strategy {
	case model.StrategyDynamicRAG:
		results, err = s.retriever.HybridSearch(ctx, query, k)
	case model.StrategyDynamicLLM:
		results, err = s.retriever.LiveSearch(ctx, query, k)
	default:
		results, err = s.retriever.Search(ctx, query, k)
	}
	if err != nil {
		s.logger.Warn("检索失败，按空结果处理", zap.String("strategy", string(strategy)), zap.Error(err))
		return nil
	}
	return results
}

func (s *FallbackService) generate(ctx context.Context, strategy model.Strategy, prompt client.Prompt, params GenerateParams, citations []model.Citation, breakdown map[model.SourceType]int) model.FallbackAnswer {
	text, err := s.generator.Generate(ctx, prompt, params)
	if err != nil {
		code := ErrorGenerationFailed
		if errors.Is(err, ErrGenerationUnavailable) {
			code = ErrorGenerationUnavailable
		}
		s.logger.Error("兜底生成失败", zap.String("strategy", string(strategy)), zap.String("code", code), zap.Error(err))
		answer := s.fixed(strategy, model.OutcomeUnavailable)
		answer.Error = code
		return answer
	}

	if citations == nil {
		citations = []model.Citation{}
	}
	return model.FallbackAnswer{
		Text:            text,
		Outcome:         model.OutcomeAnswered,
		Citations:       citations,
		Strategy:        strategy,
		SourceBreakdown: breakdown,
	}
}

// fixed 固定文案回答
func (s *FallbackService) fixed(strategy model.Strategy, outcome model.Outcome) model.FallbackAnswer {
	a := model.FallbackAnswer{Outcome: outcome, Citations: []model.Citation{}, Strategy: strategy}
	switch outcome {
	case model.OutcomeRejected:
		a.Text = s.messages.Decline
		a.RejectedAsOutOfDomain = true
	case model.OutcomeDisabled:
		a.Text = s.messages.Disabled
		a.Disabled = true
	case model.OutcomeInsufficient:
		a.Text = s.messages.Insufficient
	default:
		a.Text = s.messages.Unavailable
	}
	return a
}

func (s *FallbackService) record(query string, answer model.FallbackAnswer) {
	if s.recorder != nil {
		s.recorder.RecordAnswer(query, answer)
	}
}

// sourceBreakdown 按来源类型统计文档数
func sourceBreakdown(results model.RetrievalResult) map[model.SourceType]int {
	counts := make(map[model.SourceType]int, len(model.SourceTypes))
	for _, t := range model.SourceTypes {
		counts[t] = 0
	}
	for _, r := range results {
		counts[r.Document.SourceType]++
	}
	return counts
}
