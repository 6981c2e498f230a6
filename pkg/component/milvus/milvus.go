// Package milvus wraps the Milvus v2 SDK client for string-keyed vector collections.
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	milvusopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/milvus"
)

const (
	// PrimaryField VarChar 主键字段名。
	PrimaryField = "id"
	// VectorField 向量字段名。
	VectorField = "embedding"

	primaryMaxLen = 128
)

// Client wraps the Milvus SDK client.
type Client struct {
	client *milvusclient.Client
	opts   *milvusopts.Options
}

// New creates a new Milvus client.
func New(ctx context.Context, opts *milvusopts.Options) (*Client, error) {
	if opts == nil {
		return nil, fmt.Errorf("milvus options is nil")
	}

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  opts.Address,
		Username: opts.Username,
		Password: opts.Password,
		DBName:   opts.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}

	return &Client{client: c, opts: opts}, nil
}

// Close closes the Milvus client connection.
func (c *Client) Close(ctx context.Context) error {
	return c.client.Close(ctx)
}

// RawClient returns the underlying Milvus client.
func (c *Client) RawClient() *milvusclient.Client {
	return c.client
}

// CollectionSchema defines a collection keyed by a VarChar primary key.
type CollectionSchema struct {
	Name        string
	Description string
	Dimension   int
	MetaFields  []MetaField
}

// MetaField defines a scalar field in the collection.
type MetaField struct {
	Name     string
	DataType entity.FieldType
	MaxLen   int // VarChar only
	// Indexed 为 true 时建立标量索引，用于过滤表达式。
	Indexed bool
}

// EnsureCollection 创建集合（已存在则跳过）、建立 COSINE HNSW 索引并加载。
func (c *Client) EnsureCollection(ctx context.Context, schema *CollectionSchema) error {
	exists, err := c.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}

	if !exists {
		collSchema := entity.NewSchema().
			WithName(schema.Name).
			WithDescription(schema.Description).
			WithAutoID(false).
			WithField(entity.NewField().
				WithName(PrimaryField).
				WithDataType(entity.FieldTypeVarChar).
				WithMaxLength(primaryMaxLen).
				WithIsPrimaryKey(true)).
			WithField(entity.NewField().
				WithName(VectorField).
				WithDataType(entity.FieldTypeFloatVector).
				WithDim(int64(schema.Dimension)))

		for _, f := range schema.MetaFields {
			field := entity.NewField().WithName(f.Name).WithDataType(f.DataType)
			if f.DataType == entity.FieldTypeVarChar && f.MaxLen > 0 {
				field.WithMaxLength(int64(f.MaxLen))
			}
			collSchema.WithField(field)
		}

		if err := c.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(schema.Name, collSchema)); err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idxTask, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, VectorField,
			index.NewHNSWIndex(entity.COSINE, 16, 200)))
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
		if err := idxTask.Await(ctx); err != nil {
			return fmt.Errorf("failed to wait for vector index: %w", err)
		}

		for _, f := range schema.MetaFields {
			if !f.Indexed {
				continue
			}
			task, err := c.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(schema.Name, f.Name, index.NewInvertedIndex()))
			if err != nil {
				return fmt.Errorf("failed to create scalar index on %s: %w", f.Name, err)
			}
			if err := task.Await(ctx); err != nil {
				return fmt.Errorf("failed to wait for scalar index on %s: %w", f.Name, err)
			}
		}
	}

	loadTask, err := c.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(schema.Name))
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return fmt.Errorf("failed to wait for collection loading: %w", err)
	}
	return nil
}

// UpsertData 按列组织的待写入数据。
type UpsertData struct {
	IDs        []string
	Embeddings [][]float32
	VarChars   map[string][]string
	Int64s     map[string][]int64
}

// Upsert 按主键覆盖写入。单次调用在 Milvus 侧是一个原子请求。
func (c *Client) Upsert(ctx context.Context, collection string, data *UpsertData) error {
	if len(data.IDs) == 0 {
		return nil
	}
	if len(data.Embeddings) != len(data.IDs) {
		return fmt.Errorf("milvus upsert: %d ids but %d vectors", len(data.IDs), len(data.Embeddings))
	}

	cols := []column.Column{
		column.NewColumnVarChar(PrimaryField, data.IDs),
		column.NewColumnFloatVector(VectorField, len(data.Embeddings[0]), data.Embeddings),
	}
	for name, vals := range data.VarChars {
		cols = append(cols, column.NewColumnVarChar(name, vals))
	}
	for name, vals := range data.Int64s {
		cols = append(cols, column.NewColumnInt64(name, vals))
	}

	if _, err := c.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(collection, cols...)); err != nil {
		return fmt.Errorf("failed to upsert: %w", err)
	}
	return nil
}

// SearchResult represents a single search hit.
type SearchResult struct {
	ID       string
	Score    float32
	Metadata map[string]any
}

// Search 带过滤表达式的向量检索，expr 为空时不过滤。
func (c *Client) Search(ctx context.Context, collection string, vector []float32, topK int, expr string, outputFields []string) ([]SearchResult, error) {
	opt := milvusclient.NewSearchOption(collection, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(VectorField).
		WithSearchParam("ef", fmt.Sprintf("%d", max(64, topK))).
		WithOutputFields(outputFields...)
	if expr != "" {
		opt = opt.WithFilter(expr)
	}

	results, err := c.client.Search(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []SearchResult{}, nil
	}

	rs := results[0]
	out := make([]SearchResult, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := SearchResult{Score: rs.Scores[i], Metadata: make(map[string]any)}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		for _, field := range rs.Fields {
			switch col := field.(type) {
			case *column.ColumnVarChar:
				hit.Metadata[col.Name()] = col.Data()[i]
			case *column.ColumnInt64:
				hit.Metadata[col.Name()] = col.Data()[i]
			}
		}
		out = append(out, hit)
	}
	return out, nil
}

// Count 以强一致性统计实体数量。upsert 后 GetCollectionStats 会把旧版本计入，这里用 count(*)。
func (c *Client) Count(ctx context.Context, collection string) (int64, error) {
	rs, err := c.client.Query(ctx, milvusclient.NewQueryOption(collection).
		WithOutputFields("count(*)").
		WithConsistencyLevel(entity.ClStrong))
	if err != nil {
		return 0, fmt.Errorf("failed to count entities: %w", err)
	}
	col := rs.GetColumn("count(*)")
	if col == nil {
		return 0, nil
	}
	if ints, ok := col.(*column.ColumnInt64); ok && ints.Len() > 0 {
		return ints.Data()[0], nil
	}
	return 0, fmt.Errorf("unexpected count(*) column type %T", col)
}

// DeleteByExpr 删除匹配布尔表达式的实体，例如 `document_id == "abc"`。
func (c *Client) DeleteByExpr(ctx context.Context, collection, expr string) error {
	if expr == "" {
		return fmt.Errorf("milvus delete: empty expression")
	}
	if _, err := c.client.Delete(ctx, milvusclient.NewDeleteOption(collection).WithExpr(expr)); err != nil {
		return fmt.Errorf("failed to delete: %w", err)
	}
	return nil
}

// DropCollection drops a collection.
func (c *Client) DropCollection(ctx context.Context, collection string) error {
	if err := c.client.DropCollection(ctx, milvusclient.NewDropCollectionOption(collection)); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}
