package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

func record(id string, j model.Jurisdiction, vec ...float32) model.EmbeddingRecord {
	return model.EmbeddingRecord{
		ChunkID: id,
		Vector:  vec,
		Text:    "text " + id,
		Metadata: model.EmbeddingMetadata{
			Jurisdiction: j,
			Language:     model.LanguageEN,
			DocumentID:   "doc",
		},
	}
}

func TestMemoryStoreUpsertReplacesByChunkID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	require.NoError(t, s.Upsert(ctx, []model.EmbeddingRecord{record("a", model.JurisdictionUS, 1, 0)}))
	require.NoError(t, s.Upsert(ctx, []model.EmbeddingRecord{record("a", model.JurisdictionEU, 0, 1)}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := s.Query(ctx, []float32{0, 1}, 5, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.JurisdictionEU, got[0].Metadata.Jurisdiction)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
}

func TestMemoryStoreBatchIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	err := s.Upsert(ctx, []model.EmbeddingRecord{
		record("a", model.JurisdictionUS, 1, 0),
		record("b", model.JurisdictionUS, 1, 0, 0),
	})
	require.Error(t, err)

	n, _ := s.Count(ctx)
	assert.Zero(t, n)
}

func TestMemoryStoreDeleteByDocument(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2)

	other := record("other-00000", model.JurisdictionEU, 0, 1)
	other.Metadata.DocumentID = "other"
	require.NoError(t, s.Upsert(ctx, []model.EmbeddingRecord{
		record("doc-00000", model.JurisdictionUS, 1, 0),
		record("doc-00001", model.JurisdictionUS, 1, 0),
		other,
	}))

	before, err := s.Query(ctx, []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	require.NoError(t, s.DeleteByDocument(ctx, "doc"))
	require.NoError(t, s.DeleteByDocument(ctx, "missing"))

	n, _ := s.Count(ctx)
	assert.Equal(t, int64(1), n)
	got, err := s.Query(ctx, []float32{1, 0}, 5, Filter{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "other-00000", got[0].ChunkID)
	// 删除前取得的结果不受影响
	assert.Len(t, before, 3)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	assert.ErrorIs(t, s.DeleteByDocument(cancelled, "other"), context.Canceled)
}

func TestMemoryStoreFilterBeforeRanking(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Upsert(ctx, []model.EmbeddingRecord{
		record("us-best", model.JurisdictionUS, 1, 0),
		record("us-2", model.JurisdictionUS, 0.9, 0.1),
		record("br-weak", model.JurisdictionBR, 0.2, 1),
	}))

	got, err := s.Query(ctx, []float32{1, 0}, 1, Filter{Jurisdictions: []model.Jurisdiction{model.JurisdictionBR}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "br-weak", got[0].ChunkID)

	all, err := s.Query(ctx, []float32{1, 0}, 10, Filter{})
	require.NoError(t, err)
	assert.Equal(t, "us-best", all[0].ChunkID)
	assert.Len(t, all, 3)
}

func TestMemoryStoreNegativeSimilarityClampedToZero(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(0)
	require.NoError(t, s.Upsert(ctx, []model.EmbeddingRecord{record("opposite", model.JurisdictionUS, -1, 0)}))

	got, err := s.Query(ctx, []float32{1, 0}, 1, Filter{})
	require.NoError(t, err)
	assert.Zero(t, got[0].Score)
}

func TestJurisdictionExpr(t *testing.T) {
	assert.Empty(t, jurisdictionExpr(Filter{}))
	assert.Equal(t, `jurisdiction in ["BR","EU"]`,
		jurisdictionExpr(Filter{Jurisdictions: []model.Jurisdiction{model.JurisdictionBR, model.JurisdictionEU}}))
	assert.Equal(t, `document_id == "8463061f6aeb1164"`, documentExpr("8463061f6aeb1164"))
	assert.Equal(t, `document_id == "a\"b"`, documentExpr(`a"b`))
}

func TestPgVectorSQL(t *testing.T) {
	s := &PgVectorStore{table: "regrag_chunks", dim: 3}

	assert.Equal(t, "[0.5,-1,0.25]", formatVector([]float32{0.5, -1, 0.25}))
	assert.Contains(t, s.upsertSQL(), "ON CONFLICT (chunk_id) DO UPDATE")
	assert.Contains(t, s.querySQL(true), "WHERE jurisdiction = ANY($2)")
	assert.Contains(t, s.querySQL(true), "LIMIT $3")
	assert.NotContains(t, s.querySQL(false), "WHERE")
	assert.Equal(t, "DELETE FROM regrag_chunks WHERE document_id = $1", s.deleteSQL())

	assert.True(t, validIdentifier("regrag_chunks"))
	assert.False(t, validIdentifier("chunks; drop table x"))
	assert.False(t, validIdentifier("1chunks"))
}

func TestFilterAllows(t *testing.T) {
	assert.True(t, Filter{}.Allows(model.JurisdictionUnknown))
	f := Filter{Jurisdictions: []model.Jurisdiction{model.JurisdictionUS}}
	assert.True(t, f.Allows(model.JurisdictionUS))
	assert.False(t, f.Allows(model.JurisdictionEU))
}
