package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
)

func TestMemoryStateStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore(time.Minute)

	_, err := s.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrStateNotFound)

	state := model.ConversationState{
		UserCategory: model.CategoryBusiness,
		ProductFocus: model.ProductSCF,
		Phase:        model.PhaseProcess,
		LastIntent:   "ask_process",
	}.Serialize()
	require.NoError(t, s.Save(ctx, "sid", state))

	got, err := s.Load(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, state, got)
	assert.Equal(t, 1, s.Count())

	require.NoError(t, s.Delete(ctx, "sid"))
	_, err = s.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestMemoryStateStoreExpires(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStateStore(20 * time.Millisecond)
	require.NoError(t, s.Save(ctx, "sid", model.NewConversationState().Serialize()))

	time.Sleep(40 * time.Millisecond)
	_, err := s.Load(ctx, "sid")
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestStateKey(t *testing.T) {
	assert.Equal(t, "dialogue_state:abc", stateKey("abc"))
}
