package model

import "time"

// Document 归一化后的源文档，一个源文件对应一个 Document，创建后不可变。
type Document struct {
	ID             string       `json:"id" gorm:"primaryKey;type:varchar(64)"`
	Jurisdiction   Jurisdiction `json:"jurisdiction" gorm:"type:varchar(16);index"`
	Language       Language     `json:"language" gorm:"type:varchar(8)"`
	Title          string       `json:"title" gorm:"type:varchar(255)"`
	SourceFilename string       `json:"source_filename" gorm:"type:varchar(512);uniqueIndex"`
	RawText        string       `json:"raw_text,omitempty" gorm:"type:text"`
	PublishedAt    *time.Time   `json:"published_at,omitempty" gorm:"index"`
	IngestedAt     time.Time    `json:"ingested_at"`
	ChunkCount     int          `json:"chunk_count" gorm:"default:0"`
}

// TableName 指定表名。
func (Document) TableName() string {
	return "compliance_documents"
}

// Dated 判断文档是否有可用的发布日期。
func (d *Document) Dated() bool {
	return d.PublishedAt != nil && !d.PublishedAt.IsZero()
}
