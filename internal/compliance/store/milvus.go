package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus/client/v2/entity"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/component/milvus"
)

const (
	fieldJurisdiction   = "jurisdiction"
	fieldLanguage       = "language"
	fieldDocumentID     = "document_id"
	fieldSourceFilename = "source_filename"
	fieldSequenceIndex  = "sequence_index"
	fieldText           = "text"
)

var milvusOutputFields = []string{
	fieldJurisdiction, fieldLanguage, fieldDocumentID, fieldSourceFilename, fieldSequenceIndex, fieldText,
}

// MilvusStore 基于 Milvus 的向量存储，chunk_id 作为 VarChar 主键。
type MilvusStore struct {
	client     *milvus.Client
	collection string
}

// NewMilvusStore 创建存储并确保集合存在。
func NewMilvusStore(ctx context.Context, client *milvus.Client, collection string, dim int) (*MilvusStore, error) {
	err := client.EnsureCollection(ctx, &milvus.CollectionSchema{
		Name:        collection,
		Description: "regulatory document chunks",
		Dimension:   dim,
		MetaFields: []milvus.MetaField{
			{Name: fieldJurisdiction, DataType: entity.FieldTypeVarChar, MaxLen: 16, Indexed: true},
			{Name: fieldLanguage, DataType: entity.FieldTypeVarChar, MaxLen: 8},
			{Name: fieldDocumentID, DataType: entity.FieldTypeVarChar, MaxLen: 64},
			{Name: fieldSourceFilename, DataType: entity.FieldTypeVarChar, MaxLen: 512},
			{Name: fieldSequenceIndex, DataType: entity.FieldTypeInt64},
			{Name: fieldText, DataType: entity.FieldTypeVarChar, MaxLen: 65535},
		},
	})
	if err != nil {
		return nil, err
	}
	return &MilvusStore{client: client, collection: collection}, nil
}

// Upsert 一批记录对应一次 Milvus upsert 请求。
func (s *MilvusStore) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	n := len(records)
	data := &milvus.UpsertData{
		IDs:        make([]string, n),
		Embeddings: make([][]float32, n),
		VarChars: map[string][]string{
			fieldJurisdiction:   make([]string, n),
			fieldLanguage:       make([]string, n),
			fieldDocumentID:     make([]string, n),
			fieldSourceFilename: make([]string, n),
			fieldText:           make([]string, n),
		},
		Int64s: map[string][]int64{fieldSequenceIndex: make([]int64, n)},
	}
	for i, r := range records {
		data.IDs[i] = r.ChunkID
		data.Embeddings[i] = r.Vector
		data.VarChars[fieldJurisdiction][i] = string(r.Metadata.Jurisdiction)
		data.VarChars[fieldLanguage][i] = string(r.Metadata.Language)
		data.VarChars[fieldDocumentID][i] = r.Metadata.DocumentID
		data.VarChars[fieldSourceFilename][i] = r.Metadata.SourceFilename
		data.VarChars[fieldText][i] = r.Text
		data.Int64s[fieldSequenceIndex][i] = int64(r.Metadata.SequenceIndex)
	}

	if err := s.client.Upsert(ctx, s.collection, data); err != nil {
		return fmt.Errorf("milvus store: %w", err)
	}
	return nil
}

// Query 辖区过滤通过表达式下推到 Milvus。
func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error) {
	if topK <= 0 {
		return []Candidate{}, nil
	}

	hits, err := s.client.Search(ctx, s.collection, vector, topK, jurisdictionExpr(filter), milvusOutputFields)
	if err != nil {
		return nil, fmt.Errorf("milvus store: %w", err)
	}

	out := make([]Candidate, 0, len(hits))
	for _, h := range hits {
		out = append(out, Candidate{
			ChunkID: h.ID,
			Text:    stringField(h.Metadata, fieldText),
			Score:   clampScore(float64(h.Score)),
			Metadata: model.EmbeddingMetadata{
				Jurisdiction:   model.Jurisdiction(stringField(h.Metadata, fieldJurisdiction)),
				Language:       model.Language(stringField(h.Metadata, fieldLanguage)),
				DocumentID:     stringField(h.Metadata, fieldDocumentID),
				SourceFilename: stringField(h.Metadata, fieldSourceFilename),
				SequenceIndex:  int(int64Field(h.Metadata, fieldSequenceIndex)),
			},
		})
	}
	return out, nil
}

// DeleteByDocument 按 document_id 表达式删除。
func (s *MilvusStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if err := s.client.DeleteByExpr(ctx, s.collection, documentExpr(documentID)); err != nil {
		return fmt.Errorf("milvus store: %w", err)
	}
	return nil
}

// Count 返回集合中的实体数。
func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	return s.client.Count(ctx, s.collection)
}

// Close 关闭 Milvus 连接。
func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

var _ VectorStore = (*MilvusStore)(nil)

// jurisdictionExpr 生成 `jurisdiction in ["BR","EU"]` 形式的过滤表达式。
func jurisdictionExpr(f Filter) string {
	if len(f.Jurisdictions) == 0 {
		return ""
	}
	quoted := make([]string, len(f.Jurisdictions))
	for i, j := range f.Jurisdictions {
		quoted[i] = strconv.Quote(string(j))
	}
	return fieldJurisdiction + " in [" + strings.Join(quoted, ",") + "]"
}

func documentExpr(documentID string) string {
	return fieldDocumentID + " == " + strconv.Quote(documentID)
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

func int64Field(m map[string]any, key string) int64 {
	v, _ := m[key].(int64)
	return v
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
