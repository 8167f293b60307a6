package service

import (
	"context"
	"sync"

	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/model"
)

// scriptedBackend 按顺序返回预设错误，之后返回 reply
type scriptedBackend struct {
	mu      sync.Mutex
	errs    []error
	reply   string
	calls   int
	prompts []client.Prompt
	params  []client.GenerationParams
	block   bool // 阻塞直到 ctx 结束
}

func (b *scriptedBackend) Complete(ctx context.Context, prompt client.Prompt, params client.GenerationParams) (string, error) {
	b.mu.Lock()
	b.calls++
	call := b.calls
	b.prompts = append(b.prompts, prompt)
	b.params = append(b.params, params)
	block := b.block
	b.mu.Unlock()

	if block {
		<-ctx.Done()
		return "", &client.GenerationError{Kind: client.KindTimeout, Backend: "fake", Err: ctx.Err()}
	}
	if call <= len(b.errs) {
		return "", b.errs[call-1]
	}
	return b.reply, nil
}

func (b *scriptedBackend) Calls() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

func rateLimited() error {
	return &client.GenerationError{Kind: client.KindRateLimited, Backend: "fake", StatusCode: 429}
}

// fakeRetriever 记录每种检索的调用
type fakeRetriever struct {
	mu          sync.Mutex
	static      model.RetrievalResult
	hybrid      model.RetrievalResult
	live        model.RetrievalResult
	err         error
	searchK     []int
	hybridK     []int
	liveK       []int
	searchCalls int
	hybridCalls int
	liveCalls   int
}

func (r *fakeRetriever) Search(_ context.Context, _ string, k int) (model.RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.searchCalls++
	r.searchK = append(r.searchK, k)
	return r.static, r.err
}

func (r *fakeRetriever) HybridSearch(_ context.Context, _ string, k int) (model.RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hybridCalls++
	r.hybridK = append(r.hybridK, k)
	return r.hybrid, r.err
}

func (r *fakeRetriever) LiveSearch(_ context.Context, _ string, k int) (model.RetrievalResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.liveCalls++
	r.liveK = append(r.liveK, k)
	return r.live, r.err
}

func (r *fakeRetriever) totalCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.searchCalls + r.hybridCalls + r.liveCalls
}

// fakeGenerator 记录提示词与参数
type fakeGenerator struct {
	mu      sync.Mutex
	reply   string
	err     error
	calls   int
	prompts []client.Prompt
	params  []GenerateParams
}

func (g *fakeGenerator) Generate(_ context.Context, prompt client.Prompt, params GenerateParams) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	g.prompts = append(g.prompts, prompt)
	g.params = append(g.params, params)
	if g.err != nil {
		return "", g.err
	}
	return g.reply, nil
}

type recordedAnswer struct {
	query  string
	answer model.FallbackAnswer
}

type fakeRecorder struct {
	mu      sync.Mutex
	answers []recordedAnswer
}

func (r *fakeRecorder) RecordAnswer(query string, answer model.FallbackAnswer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.answers = append(r.answers, recordedAnswer{query: query, answer: answer})
}

// fakeAnswerer 记录兜底调用
type fakeAnswerer struct {
	calls      int
	queries    []string
	strategies []model.Strategy
}

func (a *fakeAnswerer) Answer(_ context.Context, query string, strategy model.Strategy) model.FallbackAnswer {
	a.calls++
	a.queries = append(a.queries, query)
	a.strategies = append(a.strategies, strategy)
	return model.FallbackAnswer{Text: "fallback: " + query, Citations: []model.Citation{}, Strategy: strategy}
}

// failingEmbedder 始终返回错误
type failingEmbedder struct{ err error }

func (e failingEmbedder) Embed(context.Context, []string) ([][]float32, error) {
	return nil, e.err
}

func scored(id string, sourceType model.SourceType, url, content string, score float64) model.ScoredDocument {
	return model.ScoredDocument{
		Document: model.Document{ID: id, Title: "Title " + id, SourceURL: url, SourceType: sourceType, Content: content},
		Score:    score,
	}
}
