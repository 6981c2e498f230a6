package biz

import (
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

const requirementExcerptRunes = 300

// MapRequirements 按 主题 -> 辖区 列出带有义务性措辞的分块。topic 非空时只保留该主题。
func (a *Analyzer) MapRequirements(chunks []model.Chunk, sourceFilenames map[string]string, topic string) model.RequirementMap {
	out := model.RequirementMap{}
	for _, c := range chunks {
		excerpt, ok := a.requirementSentence(c)
		if !ok {
			continue
		}
		for _, tp := range a.tax.TopicsOf(c.Text) {
			if topic != "" && tp != topic {
				continue
			}
			if out[tp] == nil {
				out[tp] = map[model.Jurisdiction][]model.RequirementRef{}
			}
			out[tp][c.Jurisdiction] = append(out[tp][c.Jurisdiction], model.RequirementRef{
				ChunkID:        c.ID,
				DocumentID:     c.DocumentID,
				SourceFilename: sourceFilenames[c.DocumentID],
				Excerpt:        excerpt,
			})
		}
	}
	return out
}

// requirementSentence 返回第一个包含义务提示词的句子。
func (a *Analyzer) requirementSentence(c model.Chunk) (string, bool) {
	profile := a.tax.Profile(c.Language)
	for _, sent := range textutil.SplitSentences(c.Text) {
		folded := textutil.Fold(sent)
		for _, cue := range profile.RequirementCues {
			if textutil.ContainsPhrase(folded, cue) {
				return textutil.TruncateWithEllipsis(sent, requirementExcerptRunes), true
			}
		}
	}
	return "", false
}
