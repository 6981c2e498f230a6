package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	apperrors "github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

func retrieverOptions(topK int) *compopts.RetrieverOptions {
	return &compopts.RetrieverOptions{TopK: topK, MinScore: 0.35, OverFetch: 2, Timeout: time.Second}
}

func rec(docID string, seq int, j model.Jurisdiction, vec ...float32) model.EmbeddingRecord {
	return model.EmbeddingRecord{
		ChunkID: model.ChunkID(docID, seq),
		Vector:  vec,
		Text:    "text of " + model.ChunkID(docID, seq),
		Metadata: model.EmbeddingMetadata{
			Jurisdiction:   j,
			Language:       model.LanguageEN,
			DocumentID:     docID,
			SourceFilename: docID + ".txt",
			SequenceIndex:  seq,
		},
	}
}

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	vs := store.NewMemoryStore(testDim)
	require.NoError(t, vs.Upsert(context.Background(), []model.EmbeddingRecord{
		rec("us-bsa", 3, model.JurisdictionUS, 1, 0, 0, 0),
		rec("eu-amld", 1, model.JurisdictionEU, 1, 0, 0, 0),
		rec("br-circ", 1, model.JurisdictionBR, 1, 0, 0, 0),
		rec("br-circ", 2, model.JurisdictionBR, 0.8, 0.6, 0, 0),
		rec("us-bsa", 7, model.JurisdictionUS, 0.3, 0.954, 0, 0),
	}))
	return vs
}

func newTestRetriever(t *testing.T, vs store.VectorStore, emb *fakeEmbedder, topK int) *Retriever {
	return NewRetriever(vs, emb, NewLanguageDetector(testTaxonomy(t), 2000), testDim, retrieverOptions(topK))
}

func TestRetriever_DeterministicTieBreak(t *testing.T) {
	r := newTestRetriever(t, seededStore(t), newFakeEmbedder(testDim), 3)

	res, err := r.Retrieve(context.Background(), "cash reporting threshold", 0, nil)
	require.NoError(t, err)
	require.Len(t, res.Evidence, 3)
	assert.Equal(t, 3, res.Requested)
	assert.False(t, res.Truncated)

	// 三者分数相同：sequence_index 升序，再 document_id 升序
	assert.Equal(t, "br-circ-00001", res.Evidence[0].Chunk.ID)
	assert.Equal(t, "eu-amld-00001", res.Evidence[1].Chunk.ID)
	assert.Equal(t, "us-bsa-00003", res.Evidence[2].Chunk.ID)
	for i, ev := range res.Evidence {
		assert.Equal(t, i+1, ev.Rank)
	}
}

func TestRetriever_FloorAndTruncation(t *testing.T) {
	r := newTestRetriever(t, seededStore(t), newFakeEmbedder(testDim), 8)

	res, err := r.Retrieve(context.Background(), "cash reporting threshold", 0, nil)
	require.NoError(t, err)
	assert.Len(t, res.Evidence, 4, "the 0.3 candidate is below the floor and never padded back")
	assert.True(t, res.Truncated)
	assert.InDelta(t, 0.8, res.Evidence[3].Score, 1e-6)
}

func TestRetriever_JurisdictionFilter(t *testing.T) {
	r := newTestRetriever(t, seededStore(t), newFakeEmbedder(testDim), 5)

	res, err := r.Retrieve(context.Background(), "cash reporting threshold", 5, []model.Jurisdiction{model.JurisdictionBR})
	require.NoError(t, err)
	require.Len(t, res.Evidence, 2)
	for _, ev := range res.Evidence {
		assert.Equal(t, model.JurisdictionBR, ev.Chunk.Jurisdiction)
		assert.Equal(t, "br-circ.txt", ev.SourceFilename)
	}
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionBR}, res.Filter)
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionBR}, res.Jurisdictions())
}

func TestRetriever_EmptyIndexIsNotAnError(t *testing.T) {
	r := newTestRetriever(t, store.NewMemoryStore(testDim), newFakeEmbedder(testDim), 5)

	res, err := r.Retrieve(context.Background(), "Qual é o limite para operações em espécie?", 0, nil)
	require.NoError(t, err)
	assert.Empty(t, res.Evidence)
	assert.True(t, res.Truncated)
	assert.Equal(t, model.LanguagePT, res.Language)
}

func TestRetriever_Errors(t *testing.T) {
	r := newTestRetriever(t, seededStore(t), newFakeEmbedder(testDim), 5)
	_, err := r.Retrieve(context.Background(), "   ", 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrComplianceInvalidRequest))

	failing := newFakeEmbedder(testDim)
	failing.err = errors.New("connection refused")
	r = newTestRetriever(t, seededStore(t), failing, 5)
	_, err = r.Retrieve(context.Background(), "threshold", 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrRetrieval))

	r = newTestRetriever(t, seededStore(t), newFakeEmbedder(testDim+2), 5)
	_, err = r.Retrieve(context.Background(), "threshold", 0, nil)
	assert.True(t, apperrors.Is(err, apperrors.ErrDimensionMismatch))
}
