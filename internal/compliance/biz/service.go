package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/loader"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/metrics"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/repo"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/id"
)

const tracerName = "regrag/compliance"

// DocumentRepo 文档元数据仓储，由 repo.DocumentRepository 实现。
type DocumentRepo interface {
	DocumentWriter
	DocumentYears
	GetDocument(ctx context.Context, id string) (*model.Document, error)
	ListDocuments(ctx context.Context, q repo.DocumentQuery) (int64, []model.Document, error)
	AllDocuments(ctx context.Context) ([]model.Document, error)
	ListChunks(ctx context.Context, q repo.ChunkQuery) ([]model.Chunk, error)
	SourceFilenames(ctx context.Context, ids []string) (map[string]string, error)
	Counts(ctx context.Context) (documents, chunks int64, err error)
}

// Service 合规检索服务接口，供 HTTP handler 和 CLI 使用。
type Service interface {
	// Query 检索并合成结构化答案。
	Query(ctx context.Context, req *QueryRequest) (*model.StructuredResponse, error)
	// Ingest 摄取本地路径或 s3:// 前缀下的文档。
	Ingest(ctx context.Context, path string) (*IngestReport, error)
	// Conflicts 对已摄取语料做冲突检测并生成报告。
	Conflicts(ctx context.Context, req *ConflictRequest) (*model.ConflictReport, error)
	// Trends 按监管时代统计趋势。
	Trends(ctx context.Context) (*model.TrendReport, error)
	// Requirements 按主题和辖区列出义务性条款。
	Requirements(ctx context.Context, topic string) (model.RequirementMap, error)
	// Documents 分页列出文档。
	Documents(ctx context.Context, q repo.DocumentQuery) (*DocumentList, error)
	// Document 获取单个文档。
	Document(ctx context.Context, id string) (*model.Document, error)
	// Stats 返回知识库与运行指标。
	Stats(ctx context.Context) (map[string]any, error)
	// MetricsText 返回 Prometheus 文本格式的指标。
	MetricsText() string
}

// QueryRequest 查询参数。
type QueryRequest struct {
	Text          string
	Jurisdictions []model.Jurisdiction
	TopK          int
	Analyze       bool
}

// ConflictRequest 冲突分析参数，都为空时分析全部语料。
type ConflictRequest struct {
	Topic         string
	Jurisdictions []model.Jurisdiction
}

// DocumentList 文档分页结果。
type DocumentList struct {
	Total int64            `json:"total"`
	Items []model.Document `json:"items"`
}

// Deps 服务依赖，全部在启动时构造好后传入。
type Deps struct {
	Taxonomy   *taxonomy.Taxonomy
	Store      store.VectorStore
	Embedder   llm.EmbeddingProvider
	Chat       llm.ChatProvider
	Documents  DocumentRepo
	Loaders    *loader.Mux
	Cache      *QueryCache
	Metrics    *metrics.Metrics
	IngestPool *pool.Pool
	IndexPool  *pool.Pool
	Tracer     trace.Tracer
}

// ComplianceService 组合 Retriever、Synthesizer、Analyzer 和 Ingestor。
type ComplianceService struct {
	tax         *taxonomy.Taxonomy
	retriever   *Retriever
	synthesizer *Synthesizer
	analyzer    *Analyzer
	ingestor    *Ingestor
	cache       *QueryCache
	docs        DocumentRepo
	store       store.VectorStore
	metrics     *metrics.Metrics
	pools       []*pool.Pool
	tracer      trace.Tracer
	embedName   string
	chatName    string
}

// NewService 创建合规检索服务。
func NewService(d Deps, opts *compopts.Options) (*ComplianceService, error) {
	if d.Taxonomy == nil {
		return nil, errors.ErrTaxonomyMissing
	}
	if d.Store == nil || d.Embedder == nil {
		return nil, errors.ErrConfiguration.WithMessage("vector store and embedding provider are required")
	}
	if d.Metrics == nil {
		d.Metrics = metrics.New()
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer(tracerName)
	}

	chunker, err := NewChunker(opts.Chunker)
	if err != nil {
		return nil, err
	}

	detector := NewLanguageDetector(d.Taxonomy, opts.SampleChars)
	normalizer := NewNormalizer(d.Taxonomy, opts)
	indexer := NewIndexer(d.Store, d.Embedder, d.IndexPool, opts.EmbeddingDim, opts.Indexer)

	var years DocumentYears
	var writer DocumentWriter
	if d.Documents != nil {
		years = d.Documents
		writer = d.Documents
	}
	scorer := NewConfidenceScorer(d.Taxonomy, years, opts.Synthesizer.CoverageTarget)

	s := &ComplianceService{
		tax:         d.Taxonomy,
		retriever:   NewRetriever(d.Store, d.Embedder, detector, opts.EmbeddingDim, opts.Retriever),
		synthesizer: NewSynthesizer(d.Taxonomy, d.Chat, scorer, d.Metrics, opts.Synthesizer),
		analyzer:    NewAnalyzer(d.Taxonomy, d.Chat, d.Metrics, opts.Analyzer),
		ingestor:    NewIngestor(d.Loaders, normalizer, chunker, indexer, writer, d.IngestPool, d.Metrics),
		cache:       d.Cache,
		docs:        d.Documents,
		store:       d.Store,
		metrics:     d.Metrics,
		tracer:      d.Tracer,
		embedName:   d.Embedder.Name(),
	}
	for _, p := range []*pool.Pool{d.IngestPool, d.IndexPool} {
		if p != nil {
			s.pools = append(s.pools, p)
		}
	}
	if d.Chat != nil {
		s.chatName = d.Chat.Name()
	}
	return s, nil
}

// Query 检索 -> 合成 -> (可选) 冲突分析。检索失败返回错误，合成失败降级。
func (s *ComplianceService) Query(ctx context.Context, req *QueryRequest) (*model.StructuredResponse, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.query")
	defer span.End()

	var queryErr error
	defer func() {
		if queryErr != nil {
			s.metrics.RecordQuery(false, queryErr)
			span.RecordError(queryErr)
			span.SetStatus(codes.Error, queryErr.Error())
		}
	}()

	if req == nil || strings.TrimSpace(req.Text) == "" {
		queryErr = errors.ErrComplianceInvalidRequest.WithMessage("query text is required")
		return nil, queryErr
	}
	topK := req.TopK
	if topK <= 0 {
		topK = s.retriever.DefaultTopK()
	}
	key := CacheKeyInput{Query: req.Text, Jurisdictions: req.Jurisdictions, TopK: topK, Analyze: req.Analyze}

	if cached, err := s.cache.Get(ctx, key); err == nil && cached != nil {
		cached.QueryID = id.NewULID()
		s.metrics.RecordQuery(true, nil)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return cached, nil
	}

	retrievalStart := time.Now()
	rctx, rspan := s.tracer.Start(ctx, "compliance.retrieve")
	ret, err := s.retriever.Retrieve(rctx, req.Text, topK, req.Jurisdictions)
	if err != nil {
		rspan.RecordError(err)
	} else {
		rspan.SetAttributes(attribute.Int("evidence", len(ret.Evidence)), attribute.String("language", string(ret.Language)))
	}
	rspan.End()
	s.metrics.RecordRetrieval(time.Since(retrievalStart), err)
	if err != nil {
		queryErr = err
		return nil, err
	}

	sctx, sspan := s.tracer.Start(ctx, "compliance.synthesize")
	resp := s.synthesizer.Synthesize(sctx, req.Text, ret)
	sspan.SetAttributes(attribute.String("synthesis_status", string(resp.SynthesisStatus)))
	sspan.End()

	if covered := knownJurisdictions(ret.Jurisdictions()); len(covered) >= 2 || req.Analyze {
		actx, aspan := s.tracer.Start(ctx, "compliance.analyze")
		resp.Conflicts = s.analyzer.AnalyzeConflicts(actx, evidenceByJurisdiction(ret.Evidence))
		aspan.SetAttributes(attribute.Int("conflicts", len(resp.Conflicts)))
		aspan.End()
		s.metrics.RecordConflicts(len(resp.Conflicts))
	}

	resp.QueryID = id.NewULID()
	s.metrics.RecordResponse(resp.NoEvidence, resp.Truncated, resp.SynthesisStatus == model.SynthesisDegraded)
	_ = s.cache.Set(ctx, key, resp)
	s.metrics.RecordQuery(false, nil)

	logger.Infow("query answered",
		"query_id", resp.QueryID,
		"language", resp.Language,
		"citations", len(resp.Citations),
		"synthesis_status", resp.SynthesisStatus,
		"confidence", resp.OverallConfidence,
	)
	return resp, nil
}

func knownJurisdictions(js []model.Jurisdiction) []model.Jurisdiction {
	out := js[:0:0]
	for _, j := range js {
		if j != model.JurisdictionUnknown {
			out = append(out, j)
		}
	}
	return out
}

func evidenceByJurisdiction(evidence []model.RetrievedEvidence) map[model.Jurisdiction][]model.Chunk {
	out := make(map[model.Jurisdiction][]model.Chunk)
	for _, ev := range evidence {
		out[ev.Chunk.Jurisdiction] = append(out[ev.Chunk.Jurisdiction], ev.Chunk)
	}
	return out
}

// Ingest 摄取文档。有文档成功写入时清空查询缓存。
func (s *ComplianceService) Ingest(ctx context.Context, path string) (*IngestReport, error) {
	ctx, span := s.tracer.Start(ctx, "compliance.ingest", trace.WithAttributes(attribute.String("path", path)))
	defer span.End()

	report, err := s.ingestor.Ingest(ctx, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("succeeded", report.Succeeded),
		attribute.Int("partial", report.Partial),
		attribute.Int("failed", report.Failed),
	)

	if report.Succeeded+report.Partial > 0 {
		if _, err := s.cache.Clear(ctx); err != nil {
			logger.Warnw("failed to clear query cache after ingestion", "error", err.Error())
		}
	}
	return report, nil
}

func (s *ComplianceService) requireDocs() error {
	if s.docs == nil {
		return errors.ErrConfiguration.WithMessage("document repository is not configured")
	}
	return nil
}

func (s *ComplianceService) checkTopic(topic string) error {
	if topic == "" {
		return nil
	}
	if _, ok := s.tax.Topic(topic); !ok {
		return errors.ErrComplianceInvalidRequest.WithMessagef("unknown topic %q", topic)
	}
	return nil
}

// Conflicts 对已摄取的分块做冲突检测。
func (s *ComplianceService) Conflicts(ctx context.Context, req *ConflictRequest) (*model.ConflictReport, error) {
	if req == nil {
		req = &ConflictRequest{}
	}
	if err := s.requireDocs(); err != nil {
		return nil, err
	}
	if err := s.checkTopic(req.Topic); err != nil {
		return nil, err
	}

	ctx, span := s.tracer.Start(ctx, "compliance.conflicts")
	defer span.End()

	chunks, err := s.docs.ListChunks(ctx, repo.ChunkQuery{Jurisdictions: req.Jurisdictions})
	if err != nil {
		return nil, err
	}
	byJ := make(map[model.Jurisdiction][]model.Chunk)
	for _, c := range chunks {
		byJ[c.Jurisdiction] = append(byJ[c.Jurisdiction], c)
	}

	all := s.analyzer.AnalyzeConflicts(ctx, byJ)
	conflicts := make([]model.Conflict, 0, len(all))
	for _, c := range all {
		if req.Topic == "" || c.Topic == req.Topic {
			conflicts = append(conflicts, c)
		}
	}
	s.metrics.RecordConflicts(len(conflicts))
	span.SetAttributes(attribute.Int("conflicts", len(conflicts)))
	return s.analyzer.BuildConflictReport(conflicts), nil
}

// Trends 趋势分析。
func (s *ComplianceService) Trends(ctx context.Context) (*model.TrendReport, error) {
	if err := s.requireDocs(); err != nil {
		return nil, err
	}
	ctx, span := s.tracer.Start(ctx, "compliance.trends")
	defer span.End()

	docs, err := s.docs.AllDocuments(ctx)
	if err != nil {
		return nil, err
	}
	chunks, err := s.docs.ListChunks(ctx, repo.ChunkQuery{})
	if err != nil {
		return nil, err
	}
	return s.analyzer.AnalyzeTrends(ctx, docs, chunks), nil
}

// Requirements 需求映射。
func (s *ComplianceService) Requirements(ctx context.Context, topic string) (model.RequirementMap, error) {
	if err := s.requireDocs(); err != nil {
		return nil, err
	}
	if err := s.checkTopic(topic); err != nil {
		return nil, err
	}

	chunks, err := s.docs.ListChunks(ctx, repo.ChunkQuery{})
	if err != nil {
		return nil, err
	}
	names, err := s.docs.SourceFilenames(ctx, nil)
	if err != nil {
		return nil, err
	}
	return s.analyzer.MapRequirements(chunks, names, topic), nil
}

// Documents 文档列表。
func (s *ComplianceService) Documents(ctx context.Context, q repo.DocumentQuery) (*DocumentList, error) {
	if err := s.requireDocs(); err != nil {
		return nil, err
	}
	total, docs, err := s.docs.ListDocuments(ctx, q)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []model.Document{}
	}
	return &DocumentList{Total: total, Items: docs}, nil
}

// Document 按 ID 获取文档元数据和原文。
func (s *ComplianceService) Document(ctx context.Context, id string) (*model.Document, error) {
	if err := s.requireDocs(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(id) == "" {
		return nil, errors.ErrComplianceInvalidRequest.WithMessage("document id is required")
	}
	return s.docs.GetDocument(ctx, id)
}

// Stats 获取知识库统计信息。
func (s *ComplianceService) Stats(ctx context.Context) (map[string]any, error) {
	vectors, err := s.store.Count(ctx)
	if err != nil {
		return nil, errors.ErrRetrieval.WithCause(err)
	}

	stats := map[string]any{
		"vector_count":   vectors,
		"embed_provider": s.embedName,
		"chat_provider":  s.chatName,
		"metrics":        s.metrics.Stats(),
	}
	if s.docs != nil {
		docs, chunks, err := s.docs.Counts(ctx)
		if err != nil {
			return nil, err
		}
		stats["document_count"] = docs
		stats["chunk_count"] = chunks
	}
	if len(s.pools) > 0 {
		workers := make([]pool.Stats, 0, len(s.pools))
		for _, p := range s.pools {
			workers = append(workers, p.Stats())
		}
		stats["workers"] = workers
	}
	if cacheStats, err := s.cache.GetStats(ctx); err == nil {
		stats["cache"] = cacheStats
	}
	return stats, nil
}

// MetricsText 返回 Prometheus 文本格式的指标。
func (s *ComplianceService) MetricsText() string {
	return s.metrics.Export("regrag", "compliance")
}

var _ Service = (*ComplianceService)(nil)
