package biz

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	apperrors "github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

const testDim = 4

func indexerOptions(batchSize int) *compopts.IndexerOptions {
	return &compopts.IndexerOptions{
		BatchSize:      batchSize,
		MaxConcurrency: 2,
		EmbedTimeout:   time.Second,
		StoreTimeout:   time.Second,
	}
}

func makeChunks(docID string, n int) []model.Chunk {
	chunks := make([]model.Chunk, n)
	for i := range chunks {
		chunks[i] = model.Chunk{
			ID:            model.ChunkID(docID, i),
			DocumentID:    docID,
			SequenceIndex: i,
			Text:          fmt.Sprintf("chunk text %d", i),
			Jurisdiction:  model.JurisdictionUS,
			Language:      model.LanguageEN,
		}
	}
	return chunks
}

func testPool(t *testing.T) *pool.Pool {
	t.Helper()
	p, err := pool.NewPool("index-test", pool.DefaultConfig(2))
	require.NoError(t, err)
	t.Cleanup(p.Release)
	return p
}

// flakyStore 在前 failures 次 Upsert 时失败。
type flakyStore struct {
	*store.MemoryStore
	mu       sync.Mutex
	failures int
	failIDs  map[string]bool
}

func (s *flakyStore) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	s.mu.Lock()
	for _, r := range records {
		if s.failIDs[r.ChunkID] && s.failures > 0 {
			s.failures--
			s.mu.Unlock()
			return errors.New("store unavailable")
		}
	}
	s.mu.Unlock()
	return s.MemoryStore.Upsert(ctx, records)
}

func TestIndexer_IndexesAllChunksInOrder(t *testing.T) {
	vs := store.NewMemoryStore(testDim)
	ix := NewIndexer(vs, newFakeEmbedder(testDim), testPool(t), testDim, indexerOptions(3))

	doc := &model.Document{ID: "doc1", SourceFilename: "us/bsa.txt"}
	chunks := makeChunks("doc1", 10)
	// 打乱输入顺序，报告仍按 sequence_index 排列
	chunks[0], chunks[9] = chunks[9], chunks[0]

	report := ix.Index(context.Background(), doc, chunks)
	assert.Equal(t, 10, report.Indexed)
	assert.Equal(t, 0, report.Failed)
	require.Len(t, report.Batches, 4)
	require.Len(t, report.Results, 10)
	for i, r := range report.Results {
		assert.Equal(t, i, r.SequenceIndex)
		assert.Equal(t, StatusIndexed, r.Status)
	}

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)
}

func TestIndexer_ReindexReplacesRecords(t *testing.T) {
	vs := store.NewMemoryStore(testDim)
	ix := NewIndexer(vs, newFakeEmbedder(testDim), nil, testDim, indexerOptions(4))
	doc := &model.Document{ID: "doc1", SourceFilename: "us/bsa.txt"}

	ix.Index(context.Background(), doc, makeChunks("doc1", 5))
	ix.Index(context.Background(), doc, makeChunks("doc1", 5))

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)
}

func TestIndexer_FailedBatchOnlyMarksItsChunks(t *testing.T) {
	vs := &flakyStore{
		MemoryStore: store.NewMemoryStore(testDim),
		failures:    1,
		failIDs:     map[string]bool{model.ChunkID("doc1", 4): true},
	}
	ix := NewIndexer(vs, newFakeEmbedder(testDim), testPool(t), testDim, indexerOptions(3))
	doc := &model.Document{ID: "doc1", SourceFilename: "us/bsa.txt"}
	chunks := makeChunks("doc1", 9)

	report := ix.Index(context.Background(), doc, chunks)
	assert.Equal(t, 6, report.Indexed)
	assert.Equal(t, 3, report.Failed)
	assert.Equal(t, 1, report.FailedBatches())
	assert.True(t, report.Batches[1].Failed())
	assert.True(t, apperrors.Is(report.Batches[1].Err, apperrors.ErrIngestion))
	for _, r := range report.Results {
		if r.SequenceIndex >= 3 && r.SequenceIndex < 6 {
			assert.Equal(t, StatusFailed, r.Status)
			assert.NotEmpty(t, r.Error)
		} else {
			assert.Equal(t, StatusIndexed, r.Status)
		}
	}

	retried := ix.RetryFailed(context.Background(), doc, chunks, report)
	assert.Equal(t, 9, retried.Indexed)
	assert.Equal(t, 0, retried.Failed)

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(9), n)
}

func TestIndexer_DimensionMismatch(t *testing.T) {
	vs := store.NewMemoryStore(0)
	ix := NewIndexer(vs, newFakeEmbedder(testDim+1), nil, testDim, indexerOptions(16))
	doc := &model.Document{ID: "doc1"}

	report := ix.Index(context.Background(), doc, makeChunks("doc1", 2))
	assert.Equal(t, 2, report.Failed)
	require.Len(t, report.Batches, 1)
	assert.True(t, apperrors.Is(report.Batches[0].Err, apperrors.ErrDimensionMismatch))
}

func TestIndexer_CancelledContextStopsDispatch(t *testing.T) {
	vs := store.NewMemoryStore(testDim)
	emb := newFakeEmbedder(testDim)
	ix := NewIndexer(vs, emb, testPool(t), testDim, indexerOptions(2))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report := ix.Index(ctx, &model.Document{ID: "doc1"}, makeChunks("doc1", 6))
	assert.Equal(t, 6, report.Failed)
	assert.Equal(t, int32(0), emb.calls.Load())

	n, err := vs.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}
