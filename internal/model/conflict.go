package model

// ConflictKind 冲突类型。
type ConflictKind string

const (
	ConflictRequirement ConflictKind = "requirement"
	ConflictDefinition  ConflictKind = "definition"
	ConflictProcedure   ConflictKind = "procedure"
	ConflictTimeline    ConflictKind = "timeline"
)

// Impact 冲突影响等级。
type Impact string

const (
	ImpactHigh   Impact = "high"
	ImpactMedium Impact = "medium"
	ImpactLow    Impact = "low"
)

// Conflict 同一主题下不同辖区之间的分歧。
type Conflict struct {
	ID                    string                  `json:"id"`
	Kind                  ConflictKind            `json:"kind"`
	Topic                 string                  `json:"topic"`
	Attribute             string                  `json:"attribute"`
	JurisdictionsInvolved []Jurisdiction          `json:"jurisdictions_involved"`
	Details               map[Jurisdiction]string `json:"details"`
	Description           string                  `json:"description"`
	SupportingChunkIDs    []string                `json:"supporting_chunk_ids"`
	Impact                Impact                  `json:"impact"`
	Resolution            string                  `json:"resolution"`
}

// ConflictSummary 冲突数量统计。
type ConflictSummary struct {
	Total  int `json:"total_conflicts"`
	High   int `json:"high_impact"`
	Medium int `json:"medium_impact"`
	Low    int `json:"low_impact"`
}

// Recommendation 针对高影响冲突的处置建议。
type Recommendation struct {
	Priority       string   `json:"priority"`
	Topic          string   `json:"topic"`
	Recommendation string   `json:"recommendation"`
	Approach       string   `json:"approach"`
	Steps          []string `json:"steps"`
	Timeline       string   `json:"timeline"`
}

// ConflictReport 冲突报告。
type ConflictReport struct {
	ID              string           `json:"id"`
	Summary         ConflictSummary  `json:"summary"`
	Conflicts       []Conflict       `json:"conflicts"`
	Recommendations []Recommendation `json:"recommendations"`
}
