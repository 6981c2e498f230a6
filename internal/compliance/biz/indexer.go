package biz

import (
	"context"
	"sort"
	"time"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

// IndexStatus 分块索引状态。
type IndexStatus string

const (
	StatusIndexed IndexStatus = "indexed"
	StatusFailed  IndexStatus = "failed"
)

// ChunkStatus 单个分块的索引结果。
type ChunkStatus struct {
	ChunkID       string      `json:"chunk_id"`
	SequenceIndex int         `json:"sequence_index"`
	Status        IndexStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
}

// BatchStatus 单个批次的索引结果。
type BatchStatus struct {
	Index    int      `json:"index"`
	ChunkIDs []string `json:"chunk_ids"`
	Err      error    `json:"-"`
	Error    string   `json:"error,omitempty"`
}

// Failed 判断批次是否失败。
func (b *BatchStatus) Failed() bool {
	return b.Err != nil || b.Error != ""
}

func (b *BatchStatus) setErr(err error) {
	b.Err = err
	b.Error = ""
	if err != nil {
		b.Error = err.Error()
	}
}

// IndexReport 一个文档的索引报告，Results 按 sequence_index 排序。
type IndexReport struct {
	DocumentID string        `json:"document_id"`
	Results    []ChunkStatus `json:"results"`
	Batches    []BatchStatus `json:"batches"`
	Indexed    int           `json:"indexed"`
	Failed     int           `json:"failed"`
}

// FailedBatches 返回失败批次的数量。
func (r *IndexReport) FailedBatches() int {
	n := 0
	for i := range r.Batches {
		if r.Batches[i].Failed() {
			n++
		}
	}
	return n
}

// Indexer 分批 embedding 并写入向量库。
type Indexer struct {
	store        store.VectorStore
	embedder     llm.EmbeddingProvider
	pool         *pool.Pool
	dim          int
	batchSize    int
	embedTimeout time.Duration
	storeTimeout time.Duration
}

// NewIndexer 创建索引器。workers 为 nil 时在调用方 goroutine 中顺序执行。
func NewIndexer(vs store.VectorStore, embedder llm.EmbeddingProvider, workers *pool.Pool, dim int, opts *compopts.IndexerOptions) *Indexer {
	return &Indexer{
		store:        vs,
		embedder:     embedder,
		pool:         workers,
		dim:          dim,
		batchSize:    opts.BatchSize,
		embedTimeout: opts.EmbedTimeout,
		storeTimeout: opts.StoreTimeout,
	}
}

// Index 索引文档的全部分块。单个批次失败只影响该批次的分块。
// ctx 取消后不再派发新批次，已派发的批次原子地完成或失败。
func (ix *Indexer) Index(ctx context.Context, doc *model.Document, chunks []model.Chunk) *IndexReport {
	batches := ix.batches(chunks)
	report := &IndexReport{
		DocumentID: doc.ID,
		Batches:    make([]BatchStatus, len(batches)),
	}

	all := make([]int, len(batches))
	for i := range all {
		all[i] = i
	}
	ix.run(ctx, doc, batches, all, report)
	report.rebuild(batches)

	logger.Infow("document indexed",
		"document_id", doc.ID,
		"chunks", len(chunks),
		"indexed", report.Indexed,
		"failed", report.Failed,
	)
	return report
}

// Purge 删除文档此前写入的全部向量，在每次 Index 之前调用。
func (ix *Indexer) Purge(ctx context.Context, documentID string) error {
	if ix.storeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ix.storeTimeout)
		defer cancel()
	}
	if err := ix.store.DeleteByDocument(ctx, documentID); err != nil {
		return errors.ErrIngestion.WithCause(err).WithMessagef("purge vectors of document %s", documentID)
	}
	return nil
}

// RetryFailed 只重新提交失败的批次，按 chunk_id 幂等。
func (ix *Indexer) RetryFailed(ctx context.Context, doc *model.Document, chunks []model.Chunk, prev *IndexReport) *IndexReport {
	batches := ix.batches(chunks)
	if prev == nil || len(prev.Batches) != len(batches) {
		return ix.Index(ctx, doc, chunks)
	}

	report := &IndexReport{
		DocumentID: doc.ID,
		Batches:    append([]BatchStatus(nil), prev.Batches...),
	}
	var failed []int
	for i := range report.Batches {
		if report.Batches[i].Failed() {
			failed = append(failed, i)
		}
	}
	if len(failed) > 0 {
		ix.run(ctx, doc, batches, failed, report)
	}
	report.rebuild(batches)
	return report
}

func (ix *Indexer) batches(chunks []model.Chunk) [][]model.Chunk {
	sorted := append([]model.Chunk(nil), chunks...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SequenceIndex < sorted[j].SequenceIndex
	})

	size := ix.batchSize
	if size <= 0 {
		size = len(sorted)
	}
	var out [][]model.Chunk
	for start := 0; start < len(sorted); start += size {
		out = append(out, sorted[start:min(start+size, len(sorted))])
	}
	return out
}

// run 派发指定的批次并等待完成。每个任务只写自己的槽位。
func (ix *Indexer) run(ctx context.Context, doc *model.Document, batches [][]model.Chunk, which []int, report *IndexReport) {
	for _, bi := range which {
		report.Batches[bi] = BatchStatus{Index: bi, ChunkIDs: chunkIDs(batches[bi])}
	}

	ix.pool.Each(ctx, len(which),
		func(k int) {
			bi := which[k]
			err := ix.indexBatch(ctx, doc, batches[bi])
			if err != nil {
				logger.Warnw("index batch failed",
					"document_id", doc.ID,
					"batch", bi,
					"chunks", len(batches[bi]),
					"error", err.Error(),
				)
			}
			report.Batches[bi].setErr(err)
		},
		func(k int, err error) {
			msg := "index batch could not be scheduled"
			if ctx.Err() != nil {
				msg = "indexing cancelled before dispatch"
			}
			report.Batches[which[k]].setErr(errors.ErrIngestion.WithCause(err).WithMessage(msg))
		},
	)
}

// indexBatch embed -> 维度校验 -> upsert，每一步都有超时。
func (ix *Indexer) indexBatch(ctx context.Context, doc *model.Document, batch []model.Chunk) error {
	if err := ctx.Err(); err != nil {
		return errors.ErrIngestion.WithCause(err).WithMessage("indexing cancelled")
	}

	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}

	ectx, cancel := context.WithTimeout(ctx, ix.embedTimeout)
	vectors, err := ix.embedder.Embed(ectx, texts)
	cancel()
	if err != nil {
		return errors.ErrIngestion.WithCause(err).WithMessage("embedding batch failed")
	}
	if len(vectors) != len(batch) {
		return errors.ErrIngestion.WithMessagef("embedding returned %d vectors for %d chunks", len(vectors), len(batch))
	}

	records := make([]model.EmbeddingRecord, len(batch))
	for i, c := range batch {
		if len(vectors[i]) != ix.dim {
			return errors.ErrDimensionMismatch.WithMessagef(
				"embedding dimension %d does not match configured %d", len(vectors[i]), ix.dim)
		}
		records[i] = model.EmbeddingRecord{
			ChunkID: c.ID,
			Vector:  vectors[i],
			Text:    c.Text,
			Metadata: model.EmbeddingMetadata{
				Jurisdiction:   c.Jurisdiction,
				Language:       c.Language,
				DocumentID:     doc.ID,
				SourceFilename: doc.SourceFilename,
				SequenceIndex:  c.SequenceIndex,
			},
		}
	}

	sctx, cancel := context.WithTimeout(ctx, ix.storeTimeout)
	defer cancel()
	if err := ix.store.Upsert(sctx, records); err != nil {
		return errors.ErrIngestion.WithCause(err).WithMessage("vector store upsert failed")
	}
	return nil
}

func (r *IndexReport) rebuild(batches [][]model.Chunk) {
	r.Results = r.Results[:0]
	r.Indexed, r.Failed = 0, 0
	for bi, batch := range batches {
		b := r.Batches[bi]
		for _, c := range batch {
			st := ChunkStatus{ChunkID: c.ID, SequenceIndex: c.SequenceIndex, Status: StatusIndexed}
			if b.Failed() {
				st.Status = StatusFailed
				st.Error = b.Error
				r.Failed++
			} else {
				r.Indexed++
			}
			r.Results = append(r.Results, st)
		}
	}
}

func chunkIDs(chunks []model.Chunk) []string {
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
	}
	return ids
}
