package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

// PgVectorStore 基于 PostgreSQL + pgvector 的向量存储。
type PgVectorStore struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewPgVectorStore 创建存储并确保扩展和表存在。
func NewPgVectorStore(ctx context.Context, pool *pgxpool.Pool, table string, dim int) (*PgVectorStore, error) {
	if !validIdentifier(table) {
		return nil, fmt.Errorf("pgvector store: invalid table name %q", table)
	}
	s := &PgVectorStore{pool: pool, table: table, dim: dim}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *PgVectorStore) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id        VARCHAR(96) PRIMARY KEY,
			document_id     VARCHAR(64) NOT NULL,
			source_filename TEXT NOT NULL,
			sequence_index  INTEGER NOT NULL,
			jurisdiction    VARCHAR(16) NOT NULL,
			language        VARCHAR(8) NOT NULL,
			chunk_text      TEXT NOT NULL,
			embedding       vector(%d) NOT NULL
		)`, s.table, s.dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_jurisdiction_idx ON %s (jurisdiction)`, s.table, s.table),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("pgvector store: ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert 整批记录在一个事务内写入。
func (s *PgVectorStore) Upsert(ctx context.Context, records []model.EmbeddingRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("pgvector store: begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	stmt := s.upsertSQL()
	for _, r := range records {
		batch.Queue(stmt,
			r.ChunkID, r.Metadata.DocumentID, r.Metadata.SourceFilename, r.Metadata.SequenceIndex,
			string(r.Metadata.Jurisdiction), string(r.Metadata.Language), r.Text, formatVector(r.Vector))
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("pgvector store: upsert: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("pgvector store: commit: %w", err)
	}
	return nil
}

func (s *PgVectorStore) upsertSQL() string {
	return fmt.Sprintf(`INSERT INTO %s
		(chunk_id, document_id, source_filename, sequence_index, jurisdiction, language, chunk_text, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::vector)
		ON CONFLICT (chunk_id) DO UPDATE SET
			document_id = EXCLUDED.document_id,
			source_filename = EXCLUDED.source_filename,
			sequence_index = EXCLUDED.sequence_index,
			jurisdiction = EXCLUDED.jurisdiction,
			language = EXCLUDED.language,
			chunk_text = EXCLUDED.chunk_text,
			embedding = EXCLUDED.embedding`, s.table)
}

// querySQL 有过滤条件时在 WHERE 中限定辖区，排序之前生效。
func (s *PgVectorStore) querySQL(filtered bool) string {
	where := ""
	limitArg := "$2"
	if filtered {
		where = "WHERE jurisdiction = ANY($2)"
		limitArg = "$3"
	}
	return fmt.Sprintf(`SELECT chunk_id, document_id, source_filename, sequence_index, jurisdiction, language, chunk_text,
			1 - (embedding <=> $1::vector) AS score
		FROM %s
		%s
		ORDER BY embedding <=> $1::vector, chunk_id
		LIMIT %s`, s.table, where, limitArg)
}

// Query 余弦距离换算为相似度。
func (s *PgVectorStore) Query(ctx context.Context, vector []float32, topK int, filter Filter) ([]Candidate, error) {
	if topK <= 0 {
		return []Candidate{}, nil
	}

	args := []interface{}{formatVector(vector)}
	filtered := len(filter.Jurisdictions) > 0
	if filtered {
		js := make([]string, len(filter.Jurisdictions))
		for i, j := range filter.Jurisdictions {
			js[i] = string(j)
		}
		args = append(args, js)
	}
	args = append(args, topK)

	rows, err := s.pool.Query(ctx, s.querySQL(filtered), args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector store: query: %w", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var (
			c            Candidate
			jurisdiction string
			language     string
		)
		if err := rows.Scan(&c.ChunkID, &c.Metadata.DocumentID, &c.Metadata.SourceFilename, &c.Metadata.SequenceIndex,
			&jurisdiction, &language, &c.Text, &c.Score); err != nil {
			return nil, fmt.Errorf("pgvector store: scan: %w", err)
		}
		c.Metadata.Jurisdiction = model.Jurisdiction(jurisdiction)
		c.Metadata.Language = model.Language(language)
		c.Score = clampScore(c.Score)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector store: rows: %w", err)
	}
	return out, nil
}

func (s *PgVectorStore) deleteSQL() string {
	return "DELETE FROM " + s.table + " WHERE document_id = $1"
}

// DeleteByDocument 删除文档的全部分块向量。
func (s *PgVectorStore) DeleteByDocument(ctx context.Context, documentID string) error {
	if _, err := s.pool.Exec(ctx, s.deleteSQL(), documentID); err != nil {
		return fmt.Errorf("pgvector store: delete document %s: %w", documentID, err)
	}
	return nil
}

// Count 返回记录数。
func (s *PgVectorStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+s.table).Scan(&n); err != nil {
		return 0, fmt.Errorf("pgvector store: count: %w", err)
	}
	return n, nil
}

// Close 关闭连接池。
func (s *PgVectorStore) Close(_ context.Context) error {
	s.pool.Close()
	return nil
}

var _ VectorStore = (*PgVectorStore)(nil)

// formatVector 转成 pgvector 文本格式 "[0.1,0.2]"。
func formatVector(v []float32) string {
	var sb strings.Builder
	sb.Grow(len(v)*10 + 2)
	sb.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	sb.WriteByte(']')
	return sb.String()
}

func validIdentifier(s string) bool {
	if s == "" || len(s) > 63 {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
