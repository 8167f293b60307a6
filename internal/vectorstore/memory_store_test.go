package vectorstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
)

func doc(id string, vec ...float32) model.Document {
	return model.Document{ID: id, Content: "content " + id, SourceType: model.SourceInternal, Embedding: vec}
}

func TestMemoryStoreSearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, s.Upsert(ctx, []model.Document{
		doc("far", 0, 1),
		doc("near", 1, 0.1),
		doc("mid", 1, 1),
	}))

	results, err := s.Search(ctx, []float32{1, 0}, 2, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "near", results[0].Document.ID)
	assert.Equal(t, "mid", results[1].Document.ID)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestMemoryStoreTieBreaksByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, s.Upsert(ctx, []model.Document{doc("b", 1, 0), doc("a", 1, 0), doc("c", 1, 0)}))

	for i := 0; i < 5; i++ {
		results, err := s.Search(ctx, []float32{1, 0}, 3, 0)
		require.NoError(t, err)
		assert.Equal(t, "a", results[0].Document.ID)
		assert.Equal(t, "b", results[1].Document.ID)
		assert.Equal(t, "c", results[2].Document.ID)
	}
}

func TestMemoryStoreUpsertOverwritesByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, s.Upsert(ctx, []model.Document{doc("kb_scf", 1, 0)}))

	updated := doc("kb_scf", 0, 1)
	updated.Content = "updated"
	require.NoError(t, s.Upsert(ctx, []model.Document{updated}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := s.Get("kb_scf")
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Content)
}

func TestMemoryStoreMinScoreFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, s.Upsert(ctx, []model.Document{doc("same", 1, 0), doc("orthogonal", 0, 1)}))

	results, err := s.Search(ctx, []float32{1, 0}, 5, 0.5)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "same", results[0].Document.ID)
}

func TestMemoryStoreEmptyIndex(t *testing.T) {
	s := NewMemoryVectorStore(zap.NewNop())
	results, err := s.Search(context.Background(), []float32{1, 0}, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestMemoryStoreRejectsInvalidDocuments(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	assert.Error(t, s.Upsert(ctx, []model.Document{doc("", 1)}))
	assert.Error(t, s.Upsert(ctx, []model.Document{doc("no-vector")}))

	n, _ := s.Count(ctx)
	assert.Zero(t, n, "a failed batch writes nothing")
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore(zap.NewNop())
	require.NoError(t, s.Upsert(ctx, []model.Document{doc("x", 1)}))

	require.NoError(t, s.Delete(ctx, "x"))
	assert.ErrorIs(t, s.Delete(ctx, "x"), ErrNotFound)
}

func TestPGRowConversionKeepsFields(t *testing.T) {
	in := model.Document{
		ID:         "rbi_kyc_0",
		Content:    "KYC norms",
		Title:      "RBI KYC",
		SourceURL:  "https://rbi.org.in/kyc",
		SourceType: model.SourceStatic,
		Page:       4,
		Date:       "2025-01-02",
		Metadata:   map[string]string{"file": "rbi"},
		Embedding:  []float32{0.1, 0.2},
	}

	out := fromRow(toRow(in))
	assert.Equal(t, in, out)
}
