package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

func strPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

func newTestTurnService(answerer Answerer, opts TurnOptions) *TurnService {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 0.6
	}
	if opts.FallbackIntents == nil {
		opts.FallbackIntents = []string{"nlu_fallback", "out_of_scope"}
	}
	templates := NewTemplateResponder(map[string]string{
		"ask_process.gigcash": "Apply for GigCash in the BillMart app.",
		"ask_process":         "Our process is fully digital.",
		"greet":               "Hello!",
	})
	return NewTurnService(NewStateManager(StateManagerOptions{}), templates, answerer, opts, zap.NewNop())
}

func knownState(category model.UserCategory, product string) *model.SerializedState {
	s := model.ConversationState{UserCategory: category, ProductFocus: product, Phase: model.PhaseExploring}.Serialize()
	return &s
}

func TestProcessClarifiesUnknownCategory(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{})

	resp := s.Process(context.Background(), model.TurnRequest{
		IntentName: "ask_process",
		RawText:    "how do I apply for gigcash",
	})

	assert.Equal(t, model.ResponseSourceClarification, resp.Source)
	assert.Contains(t, resp.ResponseText, "**individual**")
	assert.Equal(t, "gigcash", *resp.NewState.ProductFocus)
	assert.Equal(t, "PROCESS", resp.NewState.Phase)
	assert.Zero(t, answerer.calls)
}

func TestProcessUsesProductTemplateThenIntentTemplate(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{})

	gig := s.Process(context.Background(), model.TurnRequest{
		IntentName: "ask_process",
		RawText:    "how do I apply",
		PriorState: knownState(model.CategoryIndividual, model.ProductGigCash),
	})
	assert.Equal(t, model.ResponseSourceScripted, gig.Source)
	assert.Equal(t, "Apply for GigCash in the BillMart app.", gig.ResponseText)

	emp := s.Process(context.Background(), model.TurnRequest{
		IntentName: "ask_process",
		RawText:    "how do I apply",
		PriorState: knownState(model.CategoryIndividual, model.ProductEmpCash),
	})
	assert.Equal(t, "Our process is fully digital.", emp.ResponseText)
	assert.Zero(t, answerer.calls)
}

func TestProcessFallsBackWithoutTemplate(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{Strategy: model.StrategyDynamicRAG})

	resp := s.Process(context.Background(), model.TurnRequest{
		IntentName: "ask_fees",
		RawText:    "what are scf fees",
		PriorState: knownState(model.CategoryBusiness, model.ProductSCF),
	})

	assert.Equal(t, model.ResponseSourceFallback, resp.Source)
	assert.Equal(t, "fallback: what are scf fees", resp.ResponseText)
	require.NotNil(t, resp.Fallback)
	assert.Equal(t, []model.Strategy{model.StrategyDynamicRAG}, answerer.strategies)
}

func TestProcessFallbackIntentSkipsClarification(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{})

	resp := s.Process(context.Background(), model.TurnRequest{IntentName: "nlu_fallback", RawText: "rbi rules for nbfc"})
	assert.Equal(t, model.ResponseSourceFallback, resp.Source)
	assert.Equal(t, 1, answerer.calls)
	assert.Equal(t, "nlu_fallback", *resp.NewState.LastIntent)
}

func TestProcessLowConfidenceFallsBack(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{})

	low := s.Process(context.Background(), model.TurnRequest{
		IntentName: "greet", Confidence: floatPtr(0.3), RawText: "hmm",
		PriorState: knownState(model.CategoryLender, model.ProductLenderServices),
	})
	assert.Equal(t, model.ResponseSourceFallback, low.Source)

	high := s.Process(context.Background(), model.TurnRequest{
		IntentName: "greet", Confidence: floatPtr(0.95), RawText: "hello",
		PriorState: knownState(model.CategoryLender, model.ProductLenderServices),
	})
	assert.Equal(t, model.ResponseSourceScripted, high.Source)
	assert.Equal(t, 1, answerer.calls)
}

func TestProcessDisabledUsesNone(t *testing.T) {
	answerer := &fakeAnswerer{}
	s := newTestTurnService(answerer, TurnOptions{Strategy: model.StrategyStaticRAG, Disabled: true})
	assert.Equal(t, model.StrategyNone, s.Strategy())

	s.Process(context.Background(), model.TurnRequest{IntentName: "out_of_scope", RawText: "x"})
	assert.Equal(t, []model.Strategy{model.StrategyNone}, answerer.strategies)
}

func TestProcessResetIntentRoundTrip(t *testing.T) {
	s := newTestTurnService(&fakeAnswerer{}, TurnOptions{})

	prior := &model.SerializedState{
		UserCategory: "business",
		ProductFocus: strPtr("SCF"),
		Phase:        "focused",
		LastIntent:   strPtr("ask_info"),
	}
	resp := s.Process(context.Background(), model.TurnRequest{IntentName: "ask_loan_need", RawText: "I need money", PriorState: prior})

	assert.Equal(t, "UNKNOWN", resp.NewState.UserCategory)
	assert.Equal(t, "scf", *resp.NewState.ProductFocus)
	assert.Equal(t, "FOCUSED", resp.NewState.Phase)
	assert.Equal(t, model.ResponseSourceClarification, resp.Source)
}

func TestLoadTemplateResponder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "templates.yaml")
	require.NoError(t, os.WriteFile(path, []byte("ask_apply.scf: \"Upload invoices.\"\nASK_APPLY: Apply online.\nempty: \"\"\n"), 0o600))

	r, err := LoadTemplateResponder(path)
	require.NoError(t, err)
	assert.Equal(t, 2, r.Len())

	text, ok := r.Respond("ask_apply", "scf")
	assert.True(t, ok)
	assert.Equal(t, "Upload invoices.", text)

	text, ok = r.Respond("ask_apply", "lrd")
	assert.True(t, ok)
	assert.Equal(t, "Apply online.", text)

	_, ok = r.Respond("empty", "")
	assert.False(t, ok)

	var nilResponder *TemplateResponder
	_, ok = nilResponder.Respond("ask_apply", "")
	assert.False(t, ok)

	_, err = LoadTemplateResponder(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
