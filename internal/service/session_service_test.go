package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

func TestSessionRegisterGetRemove(t *testing.T) {
	s := NewSessionService(HeartbeatOptions{}, zap.NewNop())

	state := model.ConversationState{UserCategory: model.CategoryBusiness, Phase: model.PhaseInitial}
	session := s.Register("sid-1", nil, "127.0.0.1", state)
	assert.Equal(t, state, session.CurrentState())
	assert.Equal(t, 1, s.Count())

	got, err := s.Get("sid-1")
	require.NoError(t, err)
	assert.Same(t, session, got)

	assert.True(t, s.Remove("sid-1"))
	assert.False(t, s.Remove("sid-1"))
	_, err = s.Get("sid-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, s.Send("sid-1", "hi"), ErrSessionNotFound)
}

func TestSessionReconnectKeepsState(t *testing.T) {
	s := NewSessionService(HeartbeatOptions{}, zap.NewNop())

	first := s.Register("sid", nil, "a", model.NewConversationState())
	first.SetState(model.ConversationState{UserCategory: model.CategoryLender, Phase: model.PhaseFocused})

	second := s.Register("sid", nil, "b", model.NewConversationState())
	assert.Equal(t, model.CategoryLender, second.CurrentState().UserCategory)
	assert.Equal(t, 1, s.Count())
}

func TestSessionSweepRemovesAfterMissedBeats(t *testing.T) {
	var mu sync.Mutex
	now := time.Unix(1000, 0)
	s := NewSessionService(HeartbeatOptions{Interval: time.Hour, Timeout: time.Minute, MaxMissedBeats: 2}, zap.NewNop())
	s.now = func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	advance := func(d time.Duration) {
		mu.Lock()
		now = now.Add(d)
		mu.Unlock()
	}

	s.Register("sid", nil, "", model.NewConversationState())

	advance(30 * time.Second)
	s.sweep()
	assert.Equal(t, 1, s.Count(), "within timeout")

	advance(time.Minute)
	s.sweep()
	assert.Equal(t, 1, s.Count(), "first missed beat")

	s.sweep()
	assert.Zero(t, s.Count(), "removed after max missed beats")
}

func TestSessionHeartbeat(t *testing.T) {
	s := NewSessionService(HeartbeatOptions{}, zap.NewNop())
	assert.False(t, s.Heartbeat("missing"))

	s.Register("sid", nil, "", model.NewConversationState())
	assert.True(t, s.Heartbeat("sid"))
}

func TestSessionRunStopsOnCancel(t *testing.T) {
	defer goleak.VerifyNone(t, ignoreBackgroundWorkers...)

	s := NewSessionService(HeartbeatOptions{Interval: time.Millisecond}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
