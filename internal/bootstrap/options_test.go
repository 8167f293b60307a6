package bootstrap

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/config"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/service"
	"go.uber.org/zap"
)

func TestFallbackOptionsConvertsProfiles(t *testing.T) {
	opts := FallbackOptions(config.FallbackConfig{
		BrandName: "BillMart",
		Blocklist: []string{"cricket"},
		Messages:  config.MessagesConfig{Decline: "no"},
		Strategies: map[string]config.StrategyProfileConfig{
			"STATIC_RAG": {K: 4, PerDocChars: 200, MaxTokens: 120, Temperature: 0.2, MaxChars: 900},
			"none":       {K: 9},
		},
	})

	assert.Equal(t, "BillMart", opts.Brand)
	assert.Equal(t, []string{"cricket"}, opts.Blocklist)
	assert.Equal(t, "no", opts.Messages.Decline)
	assert.Equal(t, service.DefaultMessages().Unavailable, opts.Messages.Unavailable)
	require.Len(t, opts.Profiles, 1)
	assert.Equal(t, service.StrategyProfile{
		K: 4, PerDocChars: 200,
		Params: service.GenerateParams{MaxTokens: 120, Temperature: 0.2, MaxChars: 900},
	}, opts.Profiles[model.StrategyStaticRAG])
}

func TestStateManagerOptionsFromConfig(t *testing.T) {
	opts := StateManagerOptions(config.DialogueConfig{
		TypoCorrection: true,
		PhaseMap:       map[string]string{"ask_fees": "focused"},
		ProductRules:   []config.ProductRuleConfig{{Product: "icf", Keywords: []string{"Hospital"}}},
	})

	assert.NotNil(t, opts.Corrector)
	assert.Equal(t, model.PhaseFocused, opts.PhaseMap["ask_fees"])

	m := service.NewStateManager(opts)
	assert.Equal(t, model.ProductICF, m.DetectProduct("hospital bills"))
}

func TestBuildDialogueInProcess(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "local"
	cfg.ApplyDefaults()
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	c, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	defer c.Close(ctx)

	require.NoError(t, c.BuildDialogue(ctx))
	assert.Same(t, c.Fallback, c.Answerer)
	assert.NotNil(t, c.Turns)
	assert.NotNil(t, c.States)
	assert.NotNil(t, c.Sessions)

	resp := c.Turns.Process(ctx, model.TurnRequest{IntentName: "declare_business", RawText: "hi there"})
	assert.Equal(t, model.ResponseSourceClarification, resp.Source)
	assert.Equal(t, "BUSINESS", resp.NewState.UserCategory)
}
