package biz

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

// evidenceGroup 单个辖区的证据。
type evidenceGroup struct {
	jurisdiction model.Jurisdiction
	evidence     []model.RetrievedEvidence
}

type breakdownReply struct {
	Summary        string   `json:"summary"`
	KeyPoints      []string `json:"key_points"`
	RelevanceScore float64  `json:"relevance_score"`
}

type comparisonReply struct {
	Similarities  []string `json:"similarities"`
	Differences   []string `json:"differences"`
	UniqueAspects []string `json:"unique_aspects"`
}

type directAnswerReply struct {
	DirectAnswer string `json:"direct_answer"`
}

// Synthesizer 生成结构化答案。引用与置信度只来自检索结果，LLM 只负责措辞。
type Synthesizer struct {
	tax          *taxonomy.Taxonomy
	caller       *llmCaller
	scorer       *ConfidenceScorer
	excerptChars int
}

// NewSynthesizer 创建答案合成器。
func NewSynthesizer(
	tax *taxonomy.Taxonomy,
	chat llm.ChatProvider,
	scorer *ConfidenceScorer,
	recorder LLMRecorder,
	opts *compopts.SynthesizerOptions,
) *Synthesizer {
	return &Synthesizer{
		tax:          tax,
		caller:       &llmCaller{chat: chat, timeout: opts.LLMTimeout, recorder: recorder},
		scorer:       scorer,
		excerptChars: opts.ExcerptChars,
	}
}

// Synthesize 构造 StructuredResponse。LLM 失败时降级，不返回错误。
func (s *Synthesizer) Synthesize(ctx context.Context, query string, ret *model.RetrievalResult) *model.StructuredResponse {
	profile := s.tax.Profile(ret.Language)
	groups := groupByJurisdiction(ret)

	resp := &model.StructuredResponse{
		Language:               profile.Language,
		JurisdictionBreakdowns: map[model.Jurisdiction]model.Breakdown{},
		Citations:              buildCitations(query, ret.Evidence, profile, s.excerptChars),
		SynthesisStatus:        model.SynthesisSucceeded,
		MissingJurisdictions:   missingJurisdictions(ret, groups),
		Truncated:              ret.Truncated,
	}
	resp.OverallConfidence, resp.ConfidenceLevel = s.scorer.Score(ctx, ret.Evidence)

	if len(ret.Evidence) == 0 {
		resp.NoEvidence = true
		resp.DirectAnswer = profile.NoEvidenceAnswer
		return resp
	}

	if err := s.generate(ctx, query, profile, ret, groups, resp); err != nil {
		logger.Warnw("synthesis degraded, serving cited evidence with fallback answer",
			"language", profile.Language,
			"evidence", len(ret.Evidence),
			"error", err.Error(),
		)
		resp.SynthesisStatus = model.SynthesisDegraded
		resp.DirectAnswer = profile.FallbackAnswer
		resp.JurisdictionBreakdowns = map[model.Jurisdiction]model.Breakdown{}
		resp.CrossJurisdiction = nil
	}
	return resp
}

func (s *Synthesizer) generate(
	ctx context.Context,
	query string,
	profile *taxonomy.LanguageProfile,
	ret *model.RetrievalResult,
	groups []evidenceGroup,
	resp *model.StructuredResponse,
) error {
	for _, g := range groups {
		var reply breakdownReply
		if err := s.caller.json(ctx, breakdownPrompt(profile, query, g.jurisdiction, g.evidence), analystSystemPrompt, &reply); err != nil {
			return fmt.Errorf("breakdown for %s: %w", g.jurisdiction, err)
		}
		if strings.TrimSpace(reply.Summary) == "" {
			return fmt.Errorf("breakdown for %s: empty summary", g.jurisdiction)
		}
		resp.JurisdictionBreakdowns[g.jurisdiction] = model.Breakdown{
			Summary:        strings.TrimSpace(reply.Summary),
			KeyPoints:      nonEmpty(reply.KeyPoints),
			RelevanceScore: textutil.Clamp01(reply.RelevanceScore),
		}
	}

	if len(groups) >= 2 {
		var reply comparisonReply
		if err := s.caller.json(ctx, comparisonPrompt(profile, query, groups), analystSystemPrompt, &reply); err != nil {
			return fmt.Errorf("cross-jurisdiction comparison: %w", err)
		}
		resp.CrossJurisdiction = &model.Comparison{
			Similarities:  nonEmpty(reply.Similarities),
			Differences:   nonEmpty(reply.Differences),
			UniqueAspects: nonEmpty(reply.UniqueAspects),
		}
	}

	var reply directAnswerReply
	if err := s.caller.json(ctx, directAnswerPrompt(profile, query, ret.Evidence), analystSystemPrompt, &reply); err != nil {
		return fmt.Errorf("direct answer: %w", err)
	}
	if strings.TrimSpace(reply.DirectAnswer) == "" {
		return fmt.Errorf("direct answer: empty")
	}
	resp.DirectAnswer = strings.TrimSpace(reply.DirectAnswer)
	return nil
}

// groupByJurisdiction 按 BR、EU、US、unknown 的固定顺序分组，组内保持 rank 顺序。
func groupByJurisdiction(ret *model.RetrievalResult) []evidenceGroup {
	byJ := make(map[model.Jurisdiction][]model.RetrievedEvidence)
	for _, ev := range ret.Evidence {
		byJ[ev.Chunk.Jurisdiction] = append(byJ[ev.Chunk.Jurisdiction], ev)
	}
	groups := make([]evidenceGroup, 0, len(byJ))
	for _, j := range ret.Jurisdictions() {
		groups = append(groups, evidenceGroup{jurisdiction: j, evidence: byJ[j]})
	}
	return groups
}

// missingJurisdictions 请求范围内 (未过滤时为全部已知辖区) 没有证据的辖区。
func missingJurisdictions(ret *model.RetrievalResult, groups []evidenceGroup) []model.Jurisdiction {
	expected := ret.Filter
	if len(expected) == 0 {
		expected = model.KnownJurisdictions
	}
	present := make(map[model.Jurisdiction]bool, len(groups))
	for _, g := range groups {
		present[g.jurisdiction] = true
	}

	missing := []model.Jurisdiction{}
	seen := make(map[model.Jurisdiction]bool)
	for _, j := range expected {
		if !present[j] && !seen[j] {
			seen[j] = true
			missing = append(missing, j)
		}
	}
	sort.SliceStable(missing, func(i, k int) bool {
		return missing[i].SortKey() < missing[k].SortKey()
	})
	return missing
}

func nonEmpty(items []string) []string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
