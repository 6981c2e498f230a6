package model

// Era 监管时代区间，年份闭区间，0 表示不设界。
type Era struct {
	Name     string `json:"name" yaml:"name" mapstructure:"name"`
	FromYear int    `json:"from_year,omitempty" yaml:"from" mapstructure:"from"`
	ToYear   int    `json:"to_year,omitempty" yaml:"to" mapstructure:"to"`
}

// Contains 判断年份是否落在区间内。
func (e Era) Contains(year int) bool {
	if e.FromYear != 0 && year < e.FromYear {
		return false
	}
	if e.ToYear != 0 && year > e.ToYear {
		return false
	}
	return true
}

// TrendBucket 单个时代的趋势统计。
type TrendBucket struct {
	Era              Era                  `json:"era"`
	DocumentIDs      []string             `json:"document_ids"`
	Jurisdictions    map[Jurisdiction]int `json:"jurisdictions"`
	TopicCounts      map[string]int       `json:"topic_counts"`
	RequirementCount int                  `json:"requirement_count"`
	Summary          string               `json:"summary"`
}

// TrendReport 趋势报告。
type TrendReport struct {
	Buckets       []TrendBucket `json:"buckets"`
	KeyTrends     []string      `json:"key_trends"`
	EmergingAreas []string      `json:"emerging_areas"`
	Undated       []string      `json:"undated_document_ids"`
}

// RequirementRef 需求映射中的一条引用。
type RequirementRef struct {
	ChunkID        string `json:"chunk_id"`
	DocumentID     string `json:"document_id"`
	SourceFilename string `json:"source_filename,omitempty"`
	Excerpt        string `json:"excerpt"`
}

// RequirementMap 主题 -> 辖区 -> 需求引用。
type RequirementMap map[string]map[Jurisdiction][]RequirementRef
