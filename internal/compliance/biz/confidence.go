package biz

import (
	"context"
	"math"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

const (
	primarySourceWeight = 1.2
	recencyWeight       = 1.1
	recencyAfterYear    = 2018
)

// DocumentYears 查询文档的发布年份，没有日期的文档不出现在结果中。
type DocumentYears interface {
	PublishedYears(ctx context.Context, documentIDs []string) (map[string]int, error)
}

// ConfidenceScorer 确定性的总体置信度，不依赖 LLM。
type ConfidenceScorer struct {
	tax            *taxonomy.Taxonomy
	years          DocumentYears
	coverageTarget int
}

// NewConfidenceScorer 创建置信度计算器。years 为 nil 时不计算时效权重。
func NewConfidenceScorer(tax *taxonomy.Taxonomy, years DocumentYears, coverageTarget int) *ConfidenceScorer {
	if coverageTarget <= 0 {
		coverageTarget = 5
	}
	return &ConfidenceScorer{tax: tax, years: years, coverageTarget: coverageTarget}
}

// Score 计算 mean(加权分数) × coverage × agreement，上限 1，保留 4 位小数。
func (s *ConfidenceScorer) Score(ctx context.Context, evidence []model.RetrievedEvidence) (float64, model.ConfidenceLevel) {
	if len(evidence) == 0 {
		return 0, model.ConfidenceInsufficient
	}

	years := s.lookupYears(ctx, evidence)

	var total float64
	sums := make(map[model.Jurisdiction]float64)
	counts := make(map[model.Jurisdiction]int)
	for _, ev := range evidence {
		w := ev.Score
		if s.tax.IsPrimarySource(ev.SourceFilename) {
			w *= primarySourceWeight
		}
		if years[ev.Chunk.DocumentID] > recencyAfterYear {
			w *= recencyWeight
		}
		total += w
		sums[ev.Chunk.Jurisdiction] += w
		counts[ev.Chunk.Jurisdiction]++
	}

	mean := total / float64(len(evidence))
	coverage := math.Min(1, float64(len(evidence))/float64(s.coverageTarget))

	agreement := 1.0
	if len(sums) > 1 {
		lo, hi := math.Inf(1), math.Inf(-1)
		for j, sum := range sums {
			m := sum / float64(counts[j])
			lo = math.Min(lo, m)
			hi = math.Max(hi, m)
		}
		if hi > 0 {
			agreement = 1 - 0.5*(hi-lo)/hi
		}
	}

	score := math.Min(1, mean*coverage*agreement)
	score = math.Round(score*10000) / 10000
	return score, ConfidenceLevelOf(score)
}

func (s *ConfidenceScorer) lookupYears(ctx context.Context, evidence []model.RetrievedEvidence) map[string]int {
	if s.years == nil {
		return nil
	}
	ids := make([]string, 0, len(evidence))
	seen := make(map[string]bool)
	for _, ev := range evidence {
		if !seen[ev.Chunk.DocumentID] {
			seen[ev.Chunk.DocumentID] = true
			ids = append(ids, ev.Chunk.DocumentID)
		}
	}
	years, err := s.years.PublishedYears(ctx, ids)
	if err != nil {
		logger.Warnw("document years unavailable, recency weight skipped", "error", err.Error())
		return nil
	}
	return years
}

// ConfidenceLevelOf 分数到等级的映射。
func ConfidenceLevelOf(score float64) model.ConfidenceLevel {
	switch {
	case score >= 0.8:
		return model.ConfidenceHigh
	case score >= 0.6:
		return model.ConfidenceMedium
	case score >= 0.4:
		return model.ConfidenceLow
	default:
		return model.ConfidenceInsufficient
	}
}
