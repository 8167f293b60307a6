package knowledge

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supportbot/finassist-go/internal/model"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

const sampleKB = `{
  "gigcash": {"title": "GigCash", "description": "Funding for gig workers", "url": "https://billmart.com/gigcash"},
  "faqs": ["What is SCF?", {"q": "Fees?", "a": "Nominal"}],
  "rbi_kyc": {"title": "KYC", "source_url": "https://rbi.org.in/kyc", "source_type": "static", "page": 3, "date": "2024-01-01"}
}`

func TestFromMappingIDsAreDeterministic(t *testing.T) {
	var mapping map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(sampleKB), &mapping))

	docs, err := FromMapping("data/knowledge_base.json", mapping)
	require.NoError(t, err)

	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	assert.Equal(t, []string{
		"knowledge_base_faqs_0",
		"knowledge_base_faqs_1",
		"knowledge_base_gigcash",
		"knowledge_base_rbi_kyc",
	}, ids)

	again, err := FromMapping("knowledge_base.json", mapping)
	require.NoError(t, err)
	assert.Equal(t, docs, again)
}

func TestFromMappingContentAndMetadata(t *testing.T) {
	var mapping map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(sampleKB), &mapping))

	docs, err := FromMapping("knowledge_base.json", mapping)
	require.NoError(t, err)
	byID := make(map[string]model.RawDocument, len(docs))
	for _, d := range docs {
		byID[d.ID] = d
	}

	faq := byID["knowledge_base_faqs_0"]
	assert.Equal(t, "What is SCF?", faq.Content)
	assert.Equal(t, model.SourceInternal, faq.SourceType)
	assert.Equal(t, map[string]string{"file": "knowledge_base", "key": "faqs"}, faq.Metadata)

	assert.JSONEq(t, `{"q":"Fees?","a":"Nominal"}`, byID["knowledge_base_faqs_1"].Content)

	gig := byID["knowledge_base_gigcash"]
	assert.Equal(t, "GigCash", gig.Title)
	assert.Equal(t, "https://billmart.com/gigcash", gig.SourceURL)

	kyc := byID["knowledge_base_rbi_kyc"]
	assert.Equal(t, model.SourceStatic, kyc.SourceType)
	assert.Equal(t, 3, kyc.Page)
	assert.Equal(t, "2024-01-01", kyc.Date)
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	require.NoError(t, os.WriteFile(a, []byte(`{"x": "one"}`), 0o600))
	require.NoError(t, os.WriteFile(b, []byte(`{"x": ["two", "three"]}`), 0o600))

	docs, err := LoadFiles([]string{a, b}, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "a_x", docs[0].ID)
	assert.Equal(t, "b_x_1", docs[2].ID)
}

func TestLoadFileErrors(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadFile(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"x": `), 0o600))
	_, err = LoadFile(bad)
	assert.Error(t, err)

	scalar := filepath.Join(dir, "scalar.json")
	require.NoError(t, os.WriteFile(scalar, []byte(`"just text"`), 0o600))
	_, err = LoadFile(scalar)
	assert.Error(t, err)
}

func TestLoadFileAcceptsTopLevelArray(t *testing.T) {
	path := filepath.Join(t.TempDir(), "faq.json")
	require.NoError(t, os.WriteFile(path, []byte(`["What is SCF?", {"title": "Fees", "a": "Nominal"}]`), 0o600))

	docs, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "faq_0", docs[0].ID)
	assert.Equal(t, "What is SCF?", docs[0].Content)
	assert.Equal(t, "faq", docs[0].Title)
	assert.Equal(t, "faq_1", docs[1].ID)
	assert.Equal(t, "Fees", docs[1].Title)
}

func TestLoadFilesSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(good, []byte(`{"scf": "Supply chain finance"}`), 0o600))
	require.NoError(t, os.WriteFile(bad, []byte(`{broken`), 0o600))

	core, logs := observer.New(zap.WarnLevel)
	docs, err := LoadFiles([]string{filepath.Join(dir, "missing.json"), bad, good}, zap.New(core))
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "good_scf", docs[0].ID)
	assert.Equal(t, 2, logs.FilterMessage("跳过知识库文件").Len())

	_, err = LoadFiles([]string{bad, filepath.Join(dir, "missing.json")}, zap.NewNop())
	assert.Error(t, err)

	docs, err = LoadFiles(nil, zap.NewNop())
	assert.NoError(t, err)
	assert.Empty(t, docs)
}
