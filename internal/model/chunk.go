package model

import "fmt"

// Chunk 文档的一个有界片段，是 embedding 与检索的基本单位。
type Chunk struct {
	ID            string       `json:"id" gorm:"primaryKey;type:varchar(96)"`
	DocumentID    string       `json:"document_id" gorm:"type:varchar(64);index"`
	SequenceIndex int          `json:"sequence_index"`
	Text          string       `json:"text" gorm:"type:text"`
	TokenCount    int          `json:"token_count"`
	Jurisdiction  Jurisdiction `json:"jurisdiction" gorm:"type:varchar(16);index"`
	Language      Language     `json:"language" gorm:"type:varchar(8)"`
}

// TableName 指定表名。
func (Chunk) TableName() string {
	return "compliance_chunks"
}

// ChunkID 根据文档 ID 和序号生成稳定的分块 ID。
func ChunkID(documentID string, sequenceIndex int) string {
	return fmt.Sprintf("%s-%05d", documentID, sequenceIndex)
}

// EmbeddingMetadata 向量记录附带的元数据。
type EmbeddingMetadata struct {
	Jurisdiction   Jurisdiction `json:"jurisdiction"`
	Language       Language     `json:"language"`
	DocumentID     string       `json:"document_id"`
	SourceFilename string       `json:"source_filename"`
	SequenceIndex  int          `json:"sequence_index"`
}

// EmbeddingRecord 向量库中的一条记录，以 ChunkID 为身份。
type EmbeddingRecord struct {
	ChunkID  string            `json:"chunk_id"`
	Vector   []float32         `json:"vector"`
	Text     string            `json:"text"`
	Metadata EmbeddingMetadata `json:"metadata"`
}
