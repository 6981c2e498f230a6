package model

// SynthesisStatus 答案合成状态。
type SynthesisStatus string

const (
	SynthesisSucceeded   SynthesisStatus = "succeeded"
	SynthesisDegraded    SynthesisStatus = "degraded"
	SynthesisNotProduced SynthesisStatus = "not_produced"
)

// ConfidenceLevel 置信度等级。
type ConfidenceLevel string

const (
	ConfidenceHigh         ConfidenceLevel = "high"
	ConfidenceMedium       ConfidenceLevel = "medium"
	ConfidenceLow          ConfidenceLevel = "low"
	ConfidenceInsufficient ConfidenceLevel = "insufficient"
)

// Breakdown 单个辖区的答案拆解。
type Breakdown struct {
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	RelevanceScore float64  `json:"relevance_score"`
}

// Comparison 跨辖区比较，仅在证据覆盖至少两个辖区时存在。
type Comparison struct {
	Similarities  []string `json:"similarities"`
	Differences   []string `json:"differences"`
	UniqueAspects []string `json:"unique_aspects"`
}

// Citation 引用，完全由检索结果构造。
type Citation struct {
	ChunkID        string       `json:"chunk_id"`
	DocumentID     string       `json:"document_id"`
	SourceFilename string       `json:"source_filename"`
	Jurisdiction   Jurisdiction `json:"jurisdiction"`
	Excerpt        string       `json:"excerpt"`
	Confidence     float64      `json:"confidence"`
}

// StructuredResponse 每次查询的结构化答案。
type StructuredResponse struct {
	QueryID                string                     `json:"query_id,omitempty"`
	Language               Language                   `json:"language"`
	DirectAnswer           string                     `json:"direct_answer"`
	JurisdictionBreakdowns map[Jurisdiction]Breakdown `json:"jurisdiction_breakdowns"`
	CrossJurisdiction      *Comparison                `json:"cross_jurisdiction,omitempty"`
	Citations              []Citation                 `json:"citations"`
	OverallConfidence      float64                    `json:"overall_confidence"`
	ConfidenceLevel        ConfidenceLevel            `json:"confidence_level"`
	SynthesisStatus        SynthesisStatus            `json:"synthesis_status"`
	NoEvidence             bool                       `json:"no_evidence"`
	MissingJurisdictions   []Jurisdiction             `json:"missing_jurisdictions"`
	Truncated              bool                       `json:"truncated"`
	Conflicts              []Conflict                 `json:"conflicts,omitempty"`
}
