package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

// MemoryStore 进程内向量存储。写入采用写时复制，读者始终看到某个完整批次之后的快照。
type MemoryStore struct {
	dim int

	mu      sync.RWMutex
	records map[string]model.EmbeddingRecord
}

// NewMemoryStore 创建内存存储，dim 为 0 时不校验维度。
func NewMemoryStore(dim int) *MemoryStore {
	return &MemoryStore{dim: dim, records: make(map[string]model.EmbeddingRecord)}
}

// Upsert 先在副本上应用整批记录，成功后再替换。
func (s *MemoryStore) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, r := range records {
		if r.ChunkID == "" {
			return fmt.Errorf("memory store: record without chunk_id")
		}
		if s.dim > 0 && len(r.Vector) != s.dim {
			return fmt.Errorf("memory store: chunk %s has dimension %d, want %d", r.ChunkID, len(r.Vector), s.dim)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]model.EmbeddingRecord, len(s.records)+len(records))
	for k, v := range s.records {
		next[k] = v
	}
	for _, r := range records {
		r.Vector = append([]float32(nil), r.Vector...)
		next[r.ChunkID] = r
	}
	s.records = next
	return nil
}

// DeleteByDocument 同样在副本上删除后整体替换。
func (s *MemoryStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]model.EmbeddingRecord, len(s.records))
	for k, v := range s.records {
		if v.Metadata.DocumentID != documentID {
			next[k] = v
		}
	}
	s.records = next
	return nil
}

// Query 先按辖区过滤，再计算余弦相似度。
func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if topK <= 0 {
		return []Candidate{}, nil
	}

	s.mu.RLock()
	snapshot := s.records
	s.mu.RUnlock()

	out := make([]Candidate, 0, len(snapshot))
	for _, r := range snapshot {
		if !filter.Allows(r.Metadata.Jurisdiction) {
			continue
		}
		out = append(out, Candidate{
			ChunkID:  r.ChunkID,
			Text:     r.Text,
			Metadata: r.Metadata,
			Score:    textutil.Clamp01(textutil.CosineSimilarity(vector, r.Vector)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	if len(out) > topK {
		out = out[:topK]
	}
	return out, nil
}

// Count 返回记录数。
func (s *MemoryStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// Close 无操作。
func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}

var _ VectorStore = (*MemoryStore)(nil)
