package biz

import (
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

// queryMinWords 查询文本很短，用更低的词数门槛。
const queryMinWords = 3

// LanguageDetector 基于停用词频率的语言检测器。
type LanguageDetector struct {
	tax         *taxonomy.Taxonomy
	sampleChars int
}

// NewLanguageDetector 创建语言检测器。
func NewLanguageDetector(tax *taxonomy.Taxonomy, sampleChars int) *LanguageDetector {
	if sampleChars <= 0 {
		sampleChars = 2000
	}
	return &LanguageDetector{tax: tax, sampleChars: sampleChars}
}

// Detect 对文本前 sampleChars 个字符打分，停用词占比最高的画像胜出。
// 采样词数少于 minWords 或没有任何停用词命中时返回默认语言。
func (d *LanguageDetector) Detect(text string, minWords int) model.Language {
	words := textutil.Words(textutil.TruncateString(text, d.sampleChars))
	if len(words) == 0 || len(words) < minWords {
		return d.tax.DefaultLanguage
	}

	best, bestHits := d.tax.DefaultLanguage, 0
	for _, p := range d.tax.Profiles() {
		hits := 0
		for _, w := range words {
			if p.IsStopword(w) {
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = p.Language, hits
		}
	}
	return best
}

// DetectQuery 检测查询语言。
func (d *LanguageDetector) DetectQuery(query string) model.Language {
	return d.Detect(query, queryMinWords)
}
