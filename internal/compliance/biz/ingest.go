package biz

import (
	"context"
	"time"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/loader"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
)

// DocumentStatus 单个文档的摄取结果。
type DocumentStatus string

const (
	DocumentSucceeded DocumentStatus = "succeeded"
	DocumentPartial   DocumentStatus = "partial"
	DocumentFailed    DocumentStatus = "failed"
)

// DocumentReport 单个文档的摄取报告。
type DocumentReport struct {
	Item           string             `json:"item"`
	DocumentID     string             `json:"document_id,omitempty"`
	SourceFilename string             `json:"source_filename,omitempty"`
	Jurisdiction   model.Jurisdiction `json:"jurisdiction,omitempty"`
	Language       model.Language     `json:"language,omitempty"`
	Chunks         int                `json:"chunks"`
	Indexed        int                `json:"indexed"`
	FailedBatches  int                `json:"failed_batches"`
	Status         DocumentStatus     `json:"status"`
	Error          string             `json:"error,omitempty"`
}

// IngestReport 一次摄取的汇总，Documents 与 List 返回的顺序一致。
type IngestReport struct {
	Path       string           `json:"path"`
	Documents  []DocumentReport `json:"documents"`
	Succeeded  int              `json:"succeeded"`
	Partial    int              `json:"partial"`
	Failed     int              `json:"failed"`
	DurationMs int64            `json:"duration_ms"`
}

// DocumentRecorder 记录文档级摄取指标。
type DocumentRecorder interface {
	RecordDocument(indexedChunks, failedChunks, failedBatches int, err error)
}

// DocumentWriter 持久化文档与分块元数据。
type DocumentWriter interface {
	SaveDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error
}

// Ingestor 离线摄取流水线：加载 -> 归一化 -> 分块 -> 写库 -> 索引。
// 文档之间在 workers 池中并行，单个文档失败不影响其它文档。
type Ingestor struct {
	loaders    *loader.Mux
	normalizer *Normalizer
	chunker    *Chunker
	indexer    *Indexer
	docs       DocumentWriter
	workers    *pool.Pool
	recorder   DocumentRecorder
	retries    int
}

// NewIngestor 创建摄取流水线。workers 为 nil 时串行处理。
func NewIngestor(
	loaders *loader.Mux,
	normalizer *Normalizer,
	chunker *Chunker,
	indexer *Indexer,
	docs DocumentWriter,
	workers *pool.Pool,
	recorder DocumentRecorder,
) *Ingestor {
	if loaders == nil {
		loaders = &loader.Mux{}
	}
	return &Ingestor{
		loaders:    loaders,
		normalizer: normalizer,
		chunker:    chunker,
		indexer:    indexer,
		docs:       docs,
		workers:    workers,
		recorder:   recorder,
		retries:    1,
	}
}

// Ingest 摄取 path 下的全部受支持文件 (本地文件、目录或 s3://bucket/prefix)。
// 只有列举失败时返回错误，单个文档的失败记录在报告中。
func (in *Ingestor) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	start := time.Now()
	if path == "" {
		return nil, errors.ErrComplianceInvalidRequest.WithMessage("path is required")
	}

	l, err := in.loaders.For(path)
	if err != nil {
		return nil, errors.ErrIngestion.WithCause(err).WithMessagef("no loader for %s", path)
	}
	items, err := l.List(ctx, path)
	if err != nil {
		return nil, errors.ErrIngestion.WithCause(err).WithMessagef("list %s", path)
	}

	report := &IngestReport{
		Path:      path,
		Documents: make([]DocumentReport, len(items)),
	}

	in.workers.Each(ctx, len(items),
		func(i int) {
			report.Documents[i] = in.ingestOne(ctx, l, path, items[i])
		},
		func(i int, err error) {
			if ctx.Err() == nil {
				logger.Warnw("ingest pool rejected document", "item", items[i], "error", err.Error())
			}
			report.Documents[i] = DocumentReport{Item: items[i], Status: DocumentFailed, Error: err.Error()}
		},
	)

	for _, d := range report.Documents {
		switch d.Status {
		case DocumentSucceeded:
			report.Succeeded++
		case DocumentPartial:
			report.Partial++
		default:
			report.Failed++
		}
	}
	report.DurationMs = time.Since(start).Milliseconds()

	logger.Infow("ingestion finished",
		"path", path,
		"documents", len(items),
		"succeeded", report.Succeeded,
		"partial", report.Partial,
		"failed", report.Failed,
		"duration_ms", report.DurationMs,
	)
	return report, nil
}

func (in *Ingestor) ingestOne(ctx context.Context, l loader.Loader, root, item string) (dr DocumentReport) {
	dr = DocumentReport{Item: item, Status: DocumentFailed}
	var failedChunks int
	var recErr error
	defer func() {
		if in.recorder != nil {
			in.recorder.RecordDocument(dr.Indexed, failedChunks, dr.FailedBatches, recErr)
		}
	}()
	fail := func(err error) DocumentReport {
		recErr = err
		dr.Error = err.Error()
		logger.Warnw("document ingestion failed", "item", item, "error", dr.Error)
		return dr
	}

	raw, sourceFilename, err := l.Load(ctx, root, item)
	if err != nil {
		return fail(errors.ErrIngestion.WithCause(err).WithMessagef("load %s", item))
	}
	dr.SourceFilename = sourceFilename

	doc, err := in.normalizer.Normalize(raw, sourceFilename)
	if err != nil {
		return fail(err)
	}
	dr.DocumentID = doc.ID
	dr.Jurisdiction = doc.Jurisdiction
	dr.Language = doc.Language

	chunks := in.chunker.Split(doc)
	dr.Chunks = len(chunks)
	if len(chunks) == 0 {
		return fail(errors.ErrIngestion.WithMessagef("document %s produced no chunks", sourceFilename))
	}

	if in.docs != nil {
		if err := in.docs.SaveDocument(ctx, doc, chunks); err != nil {
			return fail(err)
		}
	}

	if err := in.indexer.Purge(ctx, doc.ID); err != nil {
		return fail(err)
	}
	idx := in.indexer.Index(ctx, doc, chunks)
	for attempt := 0; attempt < in.retries && idx.Failed > 0 && ctx.Err() == nil; attempt++ {
		logger.Infow("retrying failed batches", "document_id", doc.ID, "failed_batches", idx.FailedBatches())
		idx = in.indexer.RetryFailed(ctx, doc, chunks, idx)
	}

	dr.Indexed = idx.Indexed
	dr.FailedBatches = idx.FailedBatches()
	failedChunks = idx.Failed
	switch {
	case idx.Failed == 0:
		dr.Status = DocumentSucceeded
	case idx.Indexed > 0:
		dr.Status = DocumentPartial
		dr.Error = firstBatchError(idx)
	default:
		dr.Status = DocumentFailed
		dr.Error = firstBatchError(idx)
		recErr = errors.ErrIngestion.WithMessage(dr.Error)
	}
	return dr
}

func firstBatchError(r *IndexReport) string {
	for _, b := range r.Batches {
		if b.Failed() {
			return b.Error
		}
	}
	return ""
}
