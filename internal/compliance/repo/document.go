// Package repo 持久化文档与分块元数据，供文档列表、冲突分析和趋势分析读取。
package repo

import (
	"context"
	stderrors "errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

// chunkInsertBatch 单条 INSERT 的分块数上限，避开 sqlite 变量数限制。
const chunkInsertBatch = 200

// DocumentRepository 文档与分块仓储。
type DocumentRepository struct {
	db *gorm.DB
}

// NewDocumentRepository 创建仓储。
func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// Migrate 创建或更新表结构。
func (r *DocumentRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&model.Document{}, &model.Chunk{}); err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// SaveDocument 在一个事务内覆盖写入文档及其全部分块。同一文件重复摄取时替换旧分块。
func (r *DocumentRepository) SaveDocument(ctx context.Context, doc *model.Document, chunks []model.Chunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		doc.ChunkCount = len(chunks)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(doc).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", doc.ID).Delete(&model.Chunk{}).Error; err != nil {
			return err
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, chunkInsertBatch).Error
	})
	if err != nil {
		return errors.ErrDatabase.WithCause(err)
	}
	return nil
}

// GetDocument 按 ID 查询文档。
func (r *DocumentRepository) GetDocument(ctx context.Context, id string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errors.ErrDocumentNotFound.WithMessagef("document %s not found", id)
		}
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return &doc, nil
}

// DocumentQuery 文档列表条件。
type DocumentQuery struct {
	Jurisdictions []model.Jurisdiction
	Offset        int
	Limit         int
}

// ListDocuments 分页列出文档，不加载原文。
func (r *DocumentRepository) ListDocuments(ctx context.Context, q DocumentQuery) (int64, []model.Document, error) {
	base := r.db.WithContext(ctx).Model(&model.Document{})
	if len(q.Jurisdictions) > 0 {
		base = base.Where("jurisdiction IN ?", q.Jurisdictions)
	}

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}

	var docs []model.Document
	find := base.Omit("raw_text").Order("published_at IS NULL, published_at, id").Offset(q.Offset)
	if q.Limit > 0 {
		find = find.Limit(q.Limit)
	}
	if err := find.Find(&docs).Error; err != nil {
		return 0, nil, errors.ErrDatabase.WithCause(err)
	}
	return total, docs, nil
}

// AllDocuments 返回全部文档元数据（不含原文），按发布日期排序，无日期的排在最后。
func (r *DocumentRepository) AllDocuments(ctx context.Context) ([]model.Document, error) {
	_, docs, err := r.ListDocuments(ctx, DocumentQuery{})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// ChunkQuery 分块查询条件。
type ChunkQuery struct {
	Jurisdictions []model.Jurisdiction
	DocumentIDs   []string
}

// ListChunks 按 document_id、sequence_index 顺序返回分块。
func (r *DocumentRepository) ListChunks(ctx context.Context, q ChunkQuery) ([]model.Chunk, error) {
	tx := r.db.WithContext(ctx).Model(&model.Chunk{})
	if len(q.Jurisdictions) > 0 {
		tx = tx.Where("jurisdiction IN ?", q.Jurisdictions)
	}
	if len(q.DocumentIDs) > 0 {
		tx = tx.Where("document_id IN ?", q.DocumentIDs)
	}

	var chunks []model.Chunk
	if err := tx.Order("document_id, sequence_index").Find(&chunks).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	return chunks, nil
}

// SourceFilenames 返回文档 ID 到源文件名的映射。
func (r *DocumentRepository) SourceFilenames(ctx context.Context, ids []string) (map[string]string, error) {
	var rows []model.Document
	tx := r.db.WithContext(ctx).Model(&model.Document{}).Select("id", "source_filename")
	if len(ids) > 0 {
		tx = tx.Where("id IN ?", ids)
	}
	if err := tx.Find(&rows).Error; err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	out := make(map[string]string, len(rows))
	for _, d := range rows {
		out[d.ID] = d.SourceFilename
	}
	return out, nil
}

// PublishedYears 返回有发布日期的文档的年份。
func (r *DocumentRepository) PublishedYears(ctx context.Context, ids []string) (map[string]int, error) {
	out := make(map[string]int, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []model.Document
	err := r.db.WithContext(ctx).Model(&model.Document{}).
		Select("id", "published_at").
		Where("id IN ? AND published_at IS NOT NULL", ids).
		Find(&rows).Error
	if err != nil {
		return nil, errors.ErrDatabase.WithCause(err)
	}
	for i := range rows {
		if rows[i].Dated() {
			out[rows[i].ID] = rows[i].PublishedAt.Year()
		}
	}
	return out, nil
}

// Counts 返回文档数与分块数。
func (r *DocumentRepository) Counts(ctx context.Context) (documents, chunks int64, err error) {
	if err = r.db.WithContext(ctx).Model(&model.Document{}).Count(&documents).Error; err != nil {
		return 0, 0, errors.ErrDatabase.WithCause(err)
	}
	if err = r.db.WithContext(ctx).Model(&model.Chunk{}).Count(&chunks).Error; err != nil {
		return 0, 0, errors.ErrDatabase.WithCause(err)
	}
	return documents, chunks, nil
}
