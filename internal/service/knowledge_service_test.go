package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/client"
	"github.com/supportbot/finassist-go/internal/model"
	"github.com/supportbot/finassist-go/internal/vectorstore"
	"go.uber.org/zap"
)

var fixedNow = func() time.Time { return time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC) }

func newTestKnowledge(live LiveSource) *KnowledgeService {
	return NewKnowledgeService(
		client.NewHashEmbedder(128),
		vectorstore.NewMemoryVectorStore(zap.NewNop()),
		live,
		KnowledgeOptions{BatchSize: 2, Concurrency: 3},
		zap.NewNop(),
	)
}

func sampleDocs() []model.RawDocument {
	return []model.RawDocument{
		{ID: "kb_gigcash", Content: "GigCash gives gig workers and delivery partners instant funding against earnings", SourceType: model.SourceInternal},
		{ID: "kb_empcash", Content: "EmpCash is a salary advance for salaried employees repaid through payroll", SourceType: model.SourceInternal},
		{ID: "kb_scf", Content: "Supply chain finance lets MSME vendors discount invoices raised on anchor buyers", SourceType: model.SourceInternal},
		{ID: "kb_lrd", Content: "Lease rental discounting unlocks loans against commercial property rent receivables", SourceType: model.SourceInternal},
		{ID: "rbi_kyc", Content: "RBI KYC master direction requires customer due diligence for every borrower", SourceType: model.SourceStatic, SourceURL: "https://rbi.org.in/kyc"},
	}
}

func TestKnowledgeSearchReturnsAtMostKSorted(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))

	results, err := ks.Search(ctx, "salary advance for employees", 3)
	require.NoError(t, err)
	require.LessOrEqual(t, len(results), 3)
	require.NotEmpty(t, results)
	assert.Equal(t, "kb_empcash", results[0].Document.ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestKnowledgeSearchExactContentScoresOne(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)
	docs := sampleDocs()
	require.NoError(t, ks.Ingest(ctx, docs))

	results, err := ks.Search(ctx, docs[2].Content, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "kb_scf", results[0].Document.ID)
	assert.InDelta(t, 1.0, results[0].Score, 1e-6)
}

func TestKnowledgeSearchEmptyIndex(t *testing.T) {
	ks := newTestKnowledge(nil)
	results, err := ks.Search(context.Background(), "what is scf", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.False(t, ks.Ready(context.Background()))
}

func TestKnowledgeIngestIsIdempotentByID(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))

	n, err := ks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(sampleDocs()), n)
	assert.True(t, ks.Ready(ctx))
}

func TestKnowledgeIngestManyBatches(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)

	docs := make([]model.RawDocument, 23)
	for i := range docs {
		docs[i] = model.RawDocument{ID: fmt.Sprintf("doc_%d", i), Content: fmt.Sprintf("document number %d about scf", i)}
	}
	require.NoError(t, ks.Ingest(ctx, docs))

	n, err := ks.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 23, n)

	results, err := ks.Search(ctx, "document number 7 about scf", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, model.SourceInternal, results[0].Document.SourceType, "missing source type defaults to internal")
}

func TestKnowledgeEmbeddingFailureIsRetrievalError(t *testing.T) {
	boom := errors.New("embedding service down")
	ks := NewKnowledgeService(failingEmbedder{err: boom}, vectorstore.NewMemoryVectorStore(zap.NewNop()), nil, KnowledgeOptions{}, zap.NewNop())

	_, err := ks.Search(context.Background(), "scf", 3)
	var retrievalErr *RetrievalError
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, "embed", retrievalErr.Op)
	assert.ErrorIs(t, err, boom)

	err = ks.Ingest(context.Background(), sampleDocs())
	require.ErrorAs(t, err, &retrievalErr)
	assert.Equal(t, "ingest", retrievalErr.Op)
}

func TestKnowledgeHybridSearchMergesStaticThenLive(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(NewRegulatorySource(fixedNow))
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))

	results, err := ks.HybridSearch(ctx, "kyc for supply chain finance", 5)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// k/2 = 2 条静态结果在前，实时来源补足 3 条
	for _, r := range results[:2] {
		assert.NotEqual(t, model.SourceLive, r.Document.SourceType)
	}
	for _, r := range results[2:] {
		assert.Equal(t, model.SourceLive, r.Document.SourceType)
		assert.Zero(t, r.Score)
	}
	assert.Equal(t, "live_rbi_digital_lending", results[2].Document.ID)
}

func TestKnowledgeHybridSearchEmptyIndexUsesLiveOnly(t *testing.T) {
	ks := newTestKnowledge(NewRegulatorySource(fixedNow))

	results, err := ks.HybridSearch(context.Background(), "digital lending", 5)
	require.NoError(t, err)
	require.Len(t, results, 2, "only the always-on regulatory entries match")
	for _, r := range results {
		assert.Equal(t, model.SourceLive, r.Document.SourceType)
	}
}

func TestKnowledgeHybridSearchWithoutLiveSource(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))

	results, err := ks.HybridSearch(ctx, "invoice discounting", 4)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestKnowledgeDelete(t *testing.T) {
	ctx := context.Background()
	ks := newTestKnowledge(nil)
	require.NoError(t, ks.Ingest(ctx, sampleDocs()))

	require.NoError(t, ks.Delete(ctx, "kb_lrd"))
	assert.ErrorIs(t, ks.Delete(ctx, "kb_lrd"), vectorstore.ErrNotFound)
}
