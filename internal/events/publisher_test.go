package events

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/goleak"
	"go.uber.org/zap"
)

type fakePublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads [][]byte
	err      error
	closed   bool
}

func (p *fakePublisher) Publish(_ context.Context, subject string, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func (p *fakePublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
}

func TestAnswerRecorderPublishesEvent(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{}
	r := NewAnswerRecorder(pub, "finassist.answers", zap.NewNop())
	r.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }

	r.RecordAnswer("what is scf", model.FallbackAnswer{
		Text:            "SCF is...",
		Citations:       []model.Citation{{Index: 1}, {Index: 2}},
		Strategy:        model.StrategyDynamicRAG,
		SourceBreakdown: map[model.SourceType]int{model.SourceLive: 1, model.SourceInternal: 1},
	})
	r.Close()

	require.Len(t, pub.payloads, 1)
	assert.Equal(t, "finassist.answers", pub.subjects[0])
	assert.True(t, pub.closed)

	var event AnswerEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "what is scf", event.Query)
	assert.Equal(t, model.StrategyDynamicRAG, event.Strategy)
	assert.Equal(t, 2, event.Citations)
	assert.Equal(t, 1, event.SourceBreakdown[model.SourceLive])
	assert.True(t, event.Timestamp.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestAnswerRecorderSwallowsPublishErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	pub := &fakePublisher{err: errors.New("nats down")}
	r := NewAnswerRecorder(pub, "s", zap.NewNop())

	r.RecordAnswer("bitcoin", model.FallbackAnswer{RejectedAsOutOfDomain: true, Strategy: model.StrategyStaticRAG})
	r.Close()

	require.Len(t, pub.payloads, 1)
	var event AnswerEvent
	require.NoError(t, json.Unmarshal(pub.payloads[0], &event))
	assert.True(t, event.Rejected)
}
