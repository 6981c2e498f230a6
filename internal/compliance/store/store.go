package store

import (
	"context"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

// Filter 检索过滤条件，在相似度排序之前应用。
type Filter struct {
	// Jurisdictions 为空表示不限辖区。
	Jurisdictions []model.Jurisdiction
}

// Allows 判断辖区是否通过过滤。
func (f Filter) Allows(j model.Jurisdiction) bool {
	if len(f.Jurisdictions) == 0 {
		return true
	}
	for _, x := range f.Jurisdictions {
		if x == j {
			return true
		}
	}
	return false
}

// Candidate 向量检索的候选项，Score 为 [0,1] 的余弦相似度。
type Candidate struct {
	ChunkID  string
	Text     string
	Metadata model.EmbeddingMetadata
	Score    float64
}

// VectorStore 向量存储接口。
type VectorStore interface {
	// Upsert 按 chunk_id 覆盖写入，一次调用内的记录要么全部生效要么全部失败。
	Upsert(ctx context.Context, records []model.EmbeddingRecord) error

	// Query 返回最多 topK 个候选，按分数降序。
	Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error)

	// DeleteByDocument 删除某文档的全部记录，文档不存在时不报错。
	DeleteByDocument(ctx context.Context, documentID string) error

	// Count 返回记录数。
	Count(ctx context.Context) (int64, error)

	// Close 释放连接。
	Close(ctx context.Context) error
}
