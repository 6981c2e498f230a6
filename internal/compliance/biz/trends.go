package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

// AnalyzeTrends 按发布年份把文档分入各时代。没有日期的文档不参与趋势，只列在 Undated 中。
func (a *Analyzer) AnalyzeTrends(_ context.Context, docs []model.Document, chunks []model.Chunk) *model.TrendReport {
	byDoc := make(map[string][]model.Chunk)
	for _, c := range chunks {
		byDoc[c.DocumentID] = append(byDoc[c.DocumentID], c)
	}

	report := &model.TrendReport{
		Buckets:       make([]model.TrendBucket, len(a.tax.Eras)),
		KeyTrends:     []string{},
		EmergingAreas: []string{},
		Undated:       []string{},
	}
	for i, era := range a.tax.Eras {
		report.Buckets[i] = model.TrendBucket{
			Era:           era,
			DocumentIDs:   []string{},
			Jurisdictions: map[model.Jurisdiction]int{},
			TopicCounts:   map[string]int{},
		}
	}

	for i := range docs {
		doc := &docs[i]
		if !doc.Dated() {
			report.Undated = append(report.Undated, doc.ID)
			continue
		}
		bi := a.eraIndex(doc.PublishedAt.Year())
		if bi < 0 {
			logger.Debugw("document year outside configured eras", "document_id", doc.ID, "year", doc.PublishedAt.Year())
			continue
		}

		b := &report.Buckets[bi]
		b.DocumentIDs = append(b.DocumentIDs, doc.ID)
		b.Jurisdictions[doc.Jurisdiction]++

		texts := chunkTexts(byDoc[doc.ID])
		if len(texts) == 0 && doc.RawText != "" {
			texts = []string{doc.RawText}
		}
		for _, text := range texts {
			for _, topic := range a.tax.TopicsOf(text) {
				b.TopicCounts[topic]++
			}
			b.RequirementCount += ExtractAttributes(text).Count()
		}
	}

	for i := range report.Buckets {
		sort.Strings(report.Buckets[i].DocumentIDs)
		report.Buckets[i].Summary = a.bucketSummary(&report.Buckets[i])
	}
	sort.Strings(report.Undated)

	report.KeyTrends, report.EmergingAreas = a.trendSignals(report.Buckets)
	return report
}

func (a *Analyzer) eraIndex(year int) int {
	for i, e := range a.tax.Eras {
		if e.Contains(year) {
			return i
		}
	}
	return -1
}

func chunkTexts(chunks []model.Chunk) []string {
	out := make([]string, len(chunks))
	for i, c := range chunks {
		out[i] = c.Text
	}
	return out
}

func (a *Analyzer) topicLabel(id string) string {
	if tp, ok := a.tax.Topic(id); ok {
		return tp.Label
	}
	return id
}

// bucketSummary 确定性的单句摘要。
func (a *Analyzer) bucketSummary(b *model.TrendBucket) string {
	if len(b.DocumentIDs) == 0 {
		return fmt.Sprintf("%s: no dated documents.", b.Era.Name)
	}

	js := sortedJurisdictions(b.Jurisdictions)
	parts := make([]string, len(js))
	for i, j := range js {
		parts[i] = fmt.Sprintf("%s %d", j, b.Jurisdictions[j])
	}

	s := fmt.Sprintf("%s: %d document(s) (%s)", b.Era.Name, len(b.DocumentIDs), strings.Join(parts, ", "))
	if top, n := a.topTopic(b.TopicCounts); top != "" {
		s += fmt.Sprintf("; most frequent topic %s (%d chunks)", a.topicLabel(top), n)
	}
	return s + fmt.Sprintf("; %d quantitative requirement(s).", b.RequirementCount)
}

// topTopic 次数最多的主题，平局取分类表靠前者。
func (a *Analyzer) topTopic(counts map[string]int) (string, int) {
	best, bestN := "", 0
	for _, tp := range a.tax.Topics {
		if n := counts[tp.ID]; n > bestN {
			best, bestN = tp.ID, n
		}
	}
	return best, bestN
}

// trendSignals 关键趋势：在相邻的非空时代间持续上升的主题；
// 新兴领域：第一个非空时代没有、最后一个非空时代出现的主题。
func (a *Analyzer) trendSignals(buckets []model.TrendBucket) (keyTrends, emerging []string) {
	keyTrends, emerging = []string{}, []string{}

	var dated []*model.TrendBucket
	for i := range buckets {
		if len(buckets[i].DocumentIDs) > 0 {
			dated = append(dated, &buckets[i])
		}
	}
	if len(dated) < 2 {
		return keyTrends, emerging
	}

	first, last := dated[0], dated[len(dated)-1]
	for _, tp := range a.tax.Topics {
		rising := true
		counts := make([]string, len(dated))
		for i, b := range dated {
			counts[i] = fmt.Sprintf("%d", b.TopicCounts[tp.ID])
			if i > 0 && b.TopicCounts[tp.ID] <= dated[i-1].TopicCounts[tp.ID] {
				rising = false
			}
		}
		if rising {
			keyTrends = append(keyTrends, fmt.Sprintf("%s rising: %s chunks from %s to %s",
				tp.Label, strings.Join(counts, " -> "), first.Era.Name, last.Era.Name))
		}
		if first.TopicCounts[tp.ID] == 0 && last.TopicCounts[tp.ID] > 0 {
			emerging = append(emerging, tp.Label)
		}
	}
	return keyTrends, emerging
}
