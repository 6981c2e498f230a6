package biz

import (
	"unicode/utf8"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

// buildCitations 只由检索证据构造引用，保持 rank 顺序。
func buildCitations(query string, evidence []model.RetrievedEvidence, profile *taxonomy.LanguageProfile, excerptChars int) []model.Citation {
	terms := queryTerms(query, profile)
	out := make([]model.Citation, 0, len(evidence))
	for _, ev := range evidence {
		out = append(out, model.Citation{
			ChunkID:        ev.Chunk.ID,
			DocumentID:     ev.Chunk.DocumentID,
			SourceFilename: ev.SourceFilename,
			Jurisdiction:   ev.Chunk.Jurisdiction,
			Excerpt:        bestExcerpt(ev.Chunk.Text, terms, excerptChars),
			Confidence:     ev.Score,
		})
	}
	return out
}

func queryTerms(query string, profile *taxonomy.LanguageProfile) map[string]bool {
	terms := make(map[string]bool)
	for _, w := range textutil.Words(query) {
		if !profile.IsStopword(w) {
			terms[w] = true
		}
	}
	return terms
}

// bestExcerpt 选取与查询词重合最多的句子，平局取靠前者；
// 再依次向后、向前扩展相邻句子，直到长度上限。
func bestExcerpt(text string, terms map[string]bool, limit int) string {
	sentences := textutil.SplitSentences(text)
	if len(sentences) == 0 {
		return textutil.TruncateWithEllipsis(text, limit)
	}

	best, bestHits := 0, -1
	for i, s := range sentences {
		hits := 0
		seen := make(map[string]bool)
		for _, w := range textutil.Words(s) {
			if terms[w] && !seen[w] {
				seen[w] = true
				hits++
			}
		}
		if hits > bestHits {
			best, bestHits = i, hits
		}
	}

	excerpt := sentences[best]
	lo, hi := best, best
	for grown := true; grown; {
		grown = false
		if hi+1 < len(sentences) {
			if next := excerpt + " " + sentences[hi+1]; utf8.RuneCountInString(next) <= limit {
				excerpt, hi, grown = next, hi+1, true
			}
		}
		if lo > 0 {
			if next := sentences[lo-1] + " " + excerpt; utf8.RuneCountInString(next) <= limit {
				excerpt, lo, grown = next, lo-1, true
			}
		}
	}

	return textutil.TruncateWithEllipsis(excerpt, limit)
}
