package biz

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/store"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

// Retriever 按辖区过滤的相似度检索。
type Retriever struct {
	store     store.VectorStore
	embedder  llm.EmbeddingProvider
	detector  *LanguageDetector
	dim       int
	topK      int
	minScore  float64
	overFetch int
	timeout   time.Duration
}

// NewRetriever 创建检索器。
func NewRetriever(
	vs store.VectorStore,
	embedder llm.EmbeddingProvider,
	detector *LanguageDetector,
	dim int,
	opts *compopts.RetrieverOptions,
) *Retriever {
	overFetch := opts.OverFetch
	if overFetch < 1 {
		overFetch = 1
	}
	return &Retriever{
		store:     vs,
		embedder:  embedder,
		detector:  detector,
		dim:       dim,
		topK:      opts.TopK,
		minScore:  opts.MinScore,
		overFetch: overFetch,
		timeout:   opts.Timeout,
	}
}

// DefaultTopK 返回默认的 top_k。
func (r *Retriever) DefaultTopK() int {
	return r.topK
}

// Retrieve 执行检索。空结果是合法的；embedding 或向量库失败返回 ErrRetrieval。
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int, jurisdictions []model.Jurisdiction) (*model.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, errors.ErrComplianceInvalidRequest.WithMessage("query text is empty")
	}
	if topK <= 0 {
		topK = r.topK
	}

	result := &model.RetrievalResult{
		Language:  r.detector.DetectQuery(query),
		Requested: topK,
		Filter:    jurisdictions,
	}

	ectx, cancel := context.WithTimeout(ctx, r.timeout)
	vector, err := r.embedder.EmbedSingle(ectx, query)
	cancel()
	if err != nil {
		return nil, errors.ErrRetrieval.WithCause(err).WithMessage("query embedding failed")
	}
	if len(vector) != r.dim {
		return nil, errors.ErrDimensionMismatch.WithMessagef(
			"query embedding dimension %d does not match configured %d", len(vector), r.dim)
	}

	filter := store.Filter{Jurisdictions: jurisdictions}
	qctx, cancel := context.WithTimeout(ctx, r.timeout)
	candidates, err := r.store.Query(qctx, vector, topK*r.overFetch, filter)
	cancel()
	if err != nil {
		return nil, errors.ErrRetrieval.WithCause(err).WithMessage("vector search failed")
	}

	result.Evidence = r.rank(candidates, filter, topK)
	result.Truncated = len(result.Evidence) < topK

	logger.Debugw("retrieval completed",
		"language", result.Language,
		"candidates", len(candidates),
		"evidence", len(result.Evidence),
		"truncated", result.Truncated,
	)
	return result, nil
}

// rank 过滤低分与重复，按 分数降序、sequence_index 升序、document_id 升序 排序，截取 topK，不做填充。
func (r *Retriever) rank(candidates []store.Candidate, filter store.Filter, topK int) []model.RetrievedEvidence {
	seen := make(map[string]bool, len(candidates))
	kept := make([]store.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Score < r.minScore || seen[c.ChunkID] || !filter.Allows(c.Metadata.Jurisdiction) {
			continue
		}
		seen[c.ChunkID] = true
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		a, b := kept[i], kept[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		if a.Metadata.SequenceIndex != b.Metadata.SequenceIndex {
			return a.Metadata.SequenceIndex < b.Metadata.SequenceIndex
		}
		return a.Metadata.DocumentID < b.Metadata.DocumentID
	})
	if len(kept) > topK {
		kept = kept[:topK]
	}

	out := make([]model.RetrievedEvidence, len(kept))
	for i, c := range kept {
		out[i] = model.RetrievedEvidence{
			Chunk: model.Chunk{
				ID:            c.ChunkID,
				DocumentID:    c.Metadata.DocumentID,
				SequenceIndex: c.Metadata.SequenceIndex,
				Text:          c.Text,
				TokenCount:    len(strings.Fields(c.Text)),
				Jurisdiction:  c.Metadata.Jurisdiction,
				Language:      c.Metadata.Language,
			},
			SourceFilename: c.Metadata.SourceFilename,
			Score:          c.Score,
			Rank:           i + 1,
		}
	}
	return out
}
