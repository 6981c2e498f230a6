package biz

import (
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/id"
)

var recommendationSteps = map[model.ConflictKind][]string{
	model.ConflictRequirement: {
		"Inventory the thresholds applied in each jurisdiction",
		"Configure monitoring rules to the lowest threshold in local currency",
		"Record the harmonized threshold in the group compliance policy",
	},
	model.ConflictTimeline: {
		"Map every filing and retention deadline per jurisdiction",
		"Set internal deadlines to the shortest applicable timeline",
		"Add escalation for filings approaching the deadline",
	},
}

var recommendationTimeline = map[model.ConflictKind]string{
	model.ConflictRequirement: "30 days",
	model.ConflictTimeline:    "immediate",
}

// BuildConflictReport 汇总冲突数量，并为高影响冲突生成处置建议。
func (a *Analyzer) BuildConflictReport(conflicts []model.Conflict) *model.ConflictReport {
	report := &model.ConflictReport{
		ID:              id.NewULID(),
		Conflicts:       conflicts,
		Recommendations: []model.Recommendation{},
	}
	if report.Conflicts == nil {
		report.Conflicts = []model.Conflict{}
	}

	for _, c := range conflicts {
		report.Summary.Total++
		switch c.Impact {
		case model.ImpactHigh:
			report.Summary.High++
		case model.ImpactMedium:
			report.Summary.Medium++
		default:
			report.Summary.Low++
		}
		if c.Impact != model.ImpactHigh {
			continue
		}

		label := c.Topic
		if tp, ok := a.tax.Topic(c.Topic); ok {
			label = tp.Label
		}
		report.Recommendations = append(report.Recommendations, model.Recommendation{
			Priority:       string(model.ImpactHigh),
			Topic:          label,
			Recommendation: c.Resolution,
			Approach:       "Harmonize on the stricter standard",
			Steps:          append([]string(nil), recommendationSteps[c.Kind]...),
			Timeline:       recommendationTimeline[c.Kind],
		})
	}
	return report
}
