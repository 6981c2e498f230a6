package biz

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

// 冲突属性名。
const (
	AttrThreshold  = "threshold"
	AttrPercentage = "percentage"
	AttrDeadline   = "deadline"
	AttrDefinition = "definition"
	AttrProcedure  = "procedure"
)

var resolutions = map[model.ConflictKind]string{
	model.ConflictRequirement: "Apply the stricter threshold across jurisdictions",
	model.ConflictTimeline:    "Follow the stricter (shorter) timeline",
	model.ConflictDefinition:  "Adopt the broader definition",
	model.ConflictProcedure:   "Implement the union of required procedures",
}

// Analyzer 跨辖区分析。冲突与趋势的判定完全基于规则，LLM 只负责润色描述。
type Analyzer struct {
	tax      *taxonomy.Taxonomy
	caller   *llmCaller
	describe bool
}

// NewAnalyzer 创建分析器。
func NewAnalyzer(tax *taxonomy.Taxonomy, chat llm.ChatProvider, recorder LLMRecorder, opts *compopts.AnalyzerOptions) *Analyzer {
	return &Analyzer{
		tax:      tax,
		caller:   &llmCaller{chat: chat, timeout: opts.LLMTimeout, recorder: recorder},
		describe: opts.DescribeWithLLM && chat != nil,
	}
}

// Taxonomy 返回分析器使用的分类表。
func (a *Analyzer) Taxonomy() *taxonomy.Taxonomy {
	return a.tax
}

// analyzedChunk 缓存每个分块的主题与属性。
type analyzedChunk struct {
	chunk  model.Chunk
	topics map[string]bool
	attrs  Attributes
}

// observation 某辖区在某属性上的观测值。
type observation struct {
	quantity Quantity
	detail   string
	chunkIDs []string
}

// AnalyzeConflicts 检测同一主题下至少两个辖区之间的分歧。
// 每个 (topic, kind, attribute) 最多一个冲突，顺序为分类表主题顺序。
func (a *Analyzer) AnalyzeConflicts(ctx context.Context, chunksByJurisdiction map[model.Jurisdiction][]model.Chunk) []model.Conflict {
	analyzed := make(map[model.Jurisdiction][]analyzedChunk)
	for j, chunks := range chunksByJurisdiction {
		if j == model.JurisdictionUnknown {
			continue
		}
		for _, c := range chunks {
			ac := analyzedChunk{chunk: c, topics: make(map[string]bool), attrs: ExtractAttributes(c.Text)}
			for _, id := range a.tax.TopicsOf(c.Text) {
				ac.topics[id] = true
			}
			analyzed[j] = append(analyzed[j], ac)
		}
	}

	var conflicts []model.Conflict
	for i := range a.tax.Topics {
		topic := &a.tax.Topics[i]
		byJ := make(map[model.Jurisdiction][]analyzedChunk)
		for j, chunks := range analyzed {
			for _, ac := range chunks {
				if ac.topics[topic.ID] {
					byJ[j] = append(byJ[j], ac)
				}
			}
		}
		if len(byJ) < 2 {
			continue
		}

		candidates := []*model.Conflict{
			quantityConflict(topic, byJ, model.ConflictRequirement, AttrThreshold, func(at Attributes) []Quantity { return at.Thresholds }),
			quantityConflict(topic, byJ, model.ConflictRequirement, AttrPercentage, func(at Attributes) []Quantity { return at.Percentages }),
			quantityConflict(topic, byJ, model.ConflictTimeline, AttrDeadline, func(at Attributes) []Quantity { return at.Deadlines }),
			a.definitionConflict(topic, byJ),
			procedureConflict(topic, byJ),
		}
		for _, c := range candidates {
			if c == nil {
				continue
			}
			finalizeConflict(c)
			c.Description = a.describeConflict(ctx, c, topic.Label)
			conflicts = append(conflicts, *c)
		}
	}

	if len(conflicts) > 0 {
		logger.Infow("cross-jurisdiction conflicts detected", "count", len(conflicts))
	}
	return conflicts
}

// quantityConflict 每个辖区取最小值作为代表值；金额或单位不同即视为分歧。
func quantityConflict(
	topic *taxonomy.Topic,
	byJ map[model.Jurisdiction][]analyzedChunk,
	kind model.ConflictKind,
	attr string,
	pick func(Attributes) []Quantity,
) *model.Conflict {
	obs := make(map[model.Jurisdiction]*observation)
	for j, chunks := range byJ {
		for _, ac := range chunks {
			qs := pick(ac.attrs)
			if len(qs) == 0 {
				continue
			}
			o := obs[j]
			if o == nil {
				o = &observation{quantity: qs[0]}
				obs[j] = o
			}
			for _, q := range qs {
				if q.Value < o.quantity.Value {
					o.quantity = q
				}
			}
			o.chunkIDs = append(o.chunkIDs, ac.chunk.ID)
		}
	}
	if len(obs) < 2 {
		return nil
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	units := make(map[string]bool)
	for _, o := range obs {
		o.detail = formatQuantity(o.quantity)
		lo = math.Min(lo, o.quantity.Value)
		hi = math.Max(hi, o.quantity.Value)
		units[o.quantity.Unit] = true
	}
	if lo == hi && len(units) == 1 {
		return nil
	}

	c := newConflict(topic, kind, attr, obs)
	c.Impact = model.ImpactMedium
	if len(units) > 1 || (lo > 0 && hi/lo >= 2) || (lo == 0 && hi > 0) {
		c.Impact = model.ImpactHigh
	}
	return c
}

// definitionConflict 只在同语言辖区之间比较定义短语。
func (a *Analyzer) definitionConflict(topic *taxonomy.Topic, byJ map[model.Jurisdiction][]analyzedChunk) *model.Conflict {
	type def struct {
		language model.Language
		phrase   string
		chunkID  string
	}
	defs := make(map[model.Jurisdiction]def)
	for _, j := range sortedJurisdictions(byJ) {
		for _, ac := range byJ[j] {
			profile := a.tax.Profile(ac.chunk.Language)
			if phrase, ok := definitionPhrase(ac.chunk.Text, topic, profile); ok {
				defs[j] = def{language: profile.Language, phrase: phrase, chunkID: ac.chunk.ID}
				break
			}
		}
	}

	byLang := make(map[model.Language][]model.Jurisdiction)
	for j, d := range defs {
		byLang[d.language] = append(byLang[d.language], j)
	}

	obs := make(map[model.Jurisdiction]*observation)
	for _, js := range byLang {
		if len(js) < 2 {
			continue
		}
		phrases := make(map[string]bool)
		for _, j := range js {
			phrases[defs[j].phrase] = true
		}
		if len(phrases) < 2 {
			continue
		}
		for _, j := range js {
			d := defs[j]
			obs[j] = &observation{detail: d.phrase, chunkIDs: []string{d.chunkID}}
		}
	}
	if len(obs) < 2 {
		return nil
	}

	c := newConflict(topic, model.ConflictDefinition, AttrDefinition, obs)
	c.Impact = model.ImpactMedium
	return c
}

// procedureConflict 比较各辖区必需流程的集合。
func procedureConflict(topic *taxonomy.Topic, byJ map[model.Jurisdiction][]analyzedChunk) *model.Conflict {
	if len(topic.Procedures) == 0 {
		return nil
	}

	obs := make(map[model.Jurisdiction]*observation)
	sets := make(map[model.Jurisdiction]string)
	for j, chunks := range byJ {
		seen := make(map[string]bool)
		var ids []string
		for _, ac := range chunks {
			procs := topic.ProceduresOf(ac.chunk.Text)
			if len(procs) == 0 {
				continue
			}
			ids = append(ids, ac.chunk.ID)
			for _, p := range procs {
				seen[p] = true
			}
		}
		if len(seen) == 0 {
			continue
		}
		procs := make([]string, 0, len(seen))
		for p := range seen {
			procs = append(procs, p)
		}
		sort.Strings(procs)
		sets[j] = strings.Join(procs, ", ")
		obs[j] = &observation{detail: sets[j], chunkIDs: ids}
	}
	if len(obs) < 2 {
		return nil
	}

	distinct := make(map[string]bool)
	for _, s := range sets {
		distinct[s] = true
	}
	if len(distinct) < 2 {
		return nil
	}

	c := newConflict(topic, model.ConflictProcedure, AttrProcedure, obs)
	c.Impact = model.ImpactLow
	return c
}

func newConflict(topic *taxonomy.Topic, kind model.ConflictKind, attr string, obs map[model.Jurisdiction]*observation) *model.Conflict {
	c := &model.Conflict{
		Kind:       kind,
		Topic:      topic.ID,
		Attribute:  attr,
		Details:    make(map[model.Jurisdiction]string, len(obs)),
		Resolution: resolutions[kind],
	}
	for j, o := range obs {
		c.JurisdictionsInvolved = append(c.JurisdictionsInvolved, j)
		c.Details[j] = o.detail
		c.SupportingChunkIDs = append(c.SupportingChunkIDs, o.chunkIDs...)
	}
	return c
}

// finalizeConflict 排序并生成确定性 ID。
func finalizeConflict(c *model.Conflict) {
	sort.Slice(c.JurisdictionsInvolved, func(i, j int) bool {
		return c.JurisdictionsInvolved[i].SortKey() < c.JurisdictionsInvolved[j].SortKey()
	})
	ids := make(map[string]bool, len(c.SupportingChunkIDs))
	unique := c.SupportingChunkIDs[:0]
	for _, id := range c.SupportingChunkIDs {
		if !ids[id] {
			ids[id] = true
			unique = append(unique, id)
		}
	}
	sort.Strings(unique)
	c.SupportingChunkIDs = unique
	c.ID = textutil.HashString(strings.Join([]string{c.Topic, string(c.Kind), c.Attribute, strings.Join(unique, ",")}, "|"), 16)
}

// describeConflict LLM 失败时回退到模板，检测结果不受影响。
func (a *Analyzer) describeConflict(ctx context.Context, c *model.Conflict, topicLabel string) string {
	fallback := templateDescription(c, topicLabel)
	if !a.describe {
		return fallback
	}
	text, err := a.caller.text(ctx, conflictDescriptionPrompt(c, topicLabel), describerSystemPrompt)
	if err != nil {
		logger.Debugw("conflict description fell back to template", "conflict_id", c.ID, "error", err.Error())
		return fallback
	}
	text = strings.TrimSpace(strings.SplitN(strings.TrimSpace(text), "\n", 2)[0])
	if text == "" {
		return fallback
	}
	return text
}

func templateDescription(c *model.Conflict, topicLabel string) string {
	parts := make([]string, 0, len(c.JurisdictionsInvolved))
	for _, j := range c.JurisdictionsInvolved {
		parts = append(parts, fmt.Sprintf("%s: %s", j, c.Details[j]))
	}
	return fmt.Sprintf("%s %s differs across jurisdictions (%s).", topicLabel, c.Attribute, strings.Join(parts, "; "))
}

func sortedJurisdictions[T any](m map[model.Jurisdiction]T) []model.Jurisdiction {
	out := make([]model.Jurisdiction, 0, len(m))
	for j := range m {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].SortKey() < out[k].SortKey() })
	return out
}
