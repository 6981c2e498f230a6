package model

// RetrievedEvidence 单次查询检索到的证据。
type RetrievedEvidence struct {
	Chunk          Chunk   `json:"chunk"`
	SourceFilename string  `json:"source_filename"`
	Score          float64 `json:"score"`
	Rank           int     `json:"rank"`
}

// RetrievalResult 检索结果。
type RetrievalResult struct {
	Evidence  []RetrievedEvidence `json:"evidence"`
	Language  Language            `json:"language"`
	Requested int                 `json:"requested"`
	// Filter 请求的辖区过滤，为空表示不限。
	Filter []Jurisdiction `json:"filter,omitempty"`
	// Truncated 结果少于请求的 top_k，且未做任何填充。
	Truncated bool `json:"truncated"`
}

// Jurisdictions 返回证据覆盖的辖区，按固定顺序排列。
func (r *RetrievalResult) Jurisdictions() []Jurisdiction {
	seen := make(map[Jurisdiction]bool)
	for _, ev := range r.Evidence {
		seen[ev.Chunk.Jurisdiction] = true
	}
	out := make([]Jurisdiction, 0, len(seen))
	for _, j := range append(append([]Jurisdiction{}, KnownJurisdictions...), JurisdictionUnknown) {
		if seen[j] {
			out = append(out, j)
		}
	}
	return out
}
