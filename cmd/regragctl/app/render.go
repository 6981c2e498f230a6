package app

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/biz"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	errStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	answerStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

// emit 按输出格式写出 v，text 格式调用 text 渲染。
func emit(w io.Writer, format string, v interface{}, text func(io.Writer)) error {
	if format == outputJSON {
		b, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode output: %w", err)
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	text(w)
	return nil
}

func statusStyle(s model.SynthesisStatus) lipgloss.Style {
	switch s {
	case model.SynthesisSucceeded:
		return okStyle
	case model.SynthesisDegraded:
		return warnStyle
	default:
		return errStyle
	}
}

func impactStyle(i model.Impact) lipgloss.Style {
	switch i {
	case model.ImpactHigh:
		return errStyle
	case model.ImpactMedium:
		return warnStyle
	default:
		return mutedStyle
	}
}

func sortedJurisdictions[V any](m map[model.Jurisdiction]V) []model.Jurisdiction {
	out := make([]model.Jurisdiction, 0, len(m))
	for j := range m {
		out = append(out, j)
	}
	sort.Slice(out, func(a, b int) bool { return out[a] < out[b] })
	return out
}

func joinJurisdictions(js []model.Jurisdiction) string {
	parts := make([]string, len(js))
	for i, j := range js {
		parts[i] = string(j)
	}
	return strings.Join(parts, ", ")
}

func renderQuery(w io.Writer, r *model.StructuredResponse) {
	if r == nil {
		fmt.Fprintln(w, mutedStyle.Render("(empty response)"))
		return
	}

	fmt.Fprintf(w, "%s  %s  %s\n",
		titleStyle.Render("Answer"),
		statusStyle(r.SynthesisStatus).Render(string(r.SynthesisStatus)),
		mutedStyle.Render(fmt.Sprintf("confidence %.2f (%s)", r.OverallConfidence, r.ConfidenceLevel)),
	)
	fmt.Fprintln(w, answerStyle.Render(r.DirectAnswer))

	if r.NoEvidence {
		fmt.Fprintln(w, warnStyle.Render("No supporting evidence was found in the corpus."))
	}
	if len(r.MissingJurisdictions) > 0 {
		fmt.Fprintf(w, "%s %s\n", warnStyle.Render("Missing jurisdictions:"), joinJurisdictions(r.MissingJurisdictions))
	}
	if r.Truncated {
		fmt.Fprintln(w, mutedStyle.Render("Evidence was truncated to fit the context window."))
	}

	if len(r.JurisdictionBreakdowns) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("By jurisdiction"))
		for _, j := range sortedJurisdictions(r.JurisdictionBreakdowns) {
			b := r.JurisdictionBreakdowns[j]
			fmt.Fprintf(w, "%s %s %s\n", titleStyle.Render(string(j)), b.Summary, mutedStyle.Render(fmt.Sprintf("(relevance %.2f)", b.RelevanceScore)))
			for _, p := range b.KeyPoints {
				fmt.Fprintf(w, "  - %s\n", p)
			}
		}
	}

	if c := r.CrossJurisdiction; c != nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Cross-jurisdiction"))
		renderList(w, "Similarities", c.Similarities)
		renderList(w, "Differences", c.Differences)
		renderList(w, "Unique aspects", c.UniqueAspects)
	}

	if len(r.Conflicts) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Conflicts"))
		for _, c := range r.Conflicts {
			renderConflict(w, c)
		}
	}

	if len(r.Citations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Citations"))
		for i, c := range r.Citations {
			fmt.Fprintf(w, "[%d] %s %s %s\n", i+1, titleStyle.Render(string(c.Jurisdiction)), c.SourceFilename, mutedStyle.Render(fmt.Sprintf("%.2f", c.Confidence)))
			if c.Excerpt != "" {
				fmt.Fprintf(w, "    %s\n", mutedStyle.Render(c.Excerpt))
			}
		}
	}
}

func renderList(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintln(w, titleStyle.Render(title))
	for _, it := range items {
		fmt.Fprintf(w, "  - %s\n", it)
	}
}

func renderConflict(w io.Writer, c model.Conflict) {
	fmt.Fprintf(w, "%s %s/%s %s\n",
		impactStyle(c.Impact).Render(strings.ToUpper(string(c.Impact))),
		c.Kind, c.Topic,
		mutedStyle.Render(joinJurisdictions(c.JurisdictionsInvolved)),
	)
	fmt.Fprintf(w, "  %s\n", c.Description)
	for _, j := range sortedJurisdictions(c.Details) {
		fmt.Fprintf(w, "    %s: %s\n", j, c.Details[j])
	}
	if c.Resolution != "" {
		fmt.Fprintf(w, "  %s %s\n", titleStyle.Render("Resolution:"), c.Resolution)
	}
}

func renderConflicts(w io.Writer, r *model.ConflictReport) {
	if r == nil {
		fmt.Fprintln(w, mutedStyle.Render("(empty report)"))
		return
	}
	s := r.Summary
	fmt.Fprintf(w, "%s %d total  %s  %s  %s\n",
		titleStyle.Render("Conflicts"), s.Total,
		errStyle.Render(fmt.Sprintf("%d high", s.High)),
		warnStyle.Render(fmt.Sprintf("%d medium", s.Medium)),
		mutedStyle.Render(fmt.Sprintf("%d low", s.Low)),
	)
	if len(r.Conflicts) == 0 {
		fmt.Fprintln(w, okStyle.Render("No conflicts detected."))
	}
	for _, c := range r.Conflicts {
		renderConflict(w, c)
	}

	if len(r.Recommendations) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, sectionStyle.Render("Recommendations"))
		for _, rec := range r.Recommendations {
			fmt.Fprintf(w, "%s %s: %s\n", titleStyle.Render("["+rec.Priority+"]"), rec.Topic, rec.Recommendation)
			if rec.Approach != "" {
				fmt.Fprintf(w, "  %s\n", mutedStyle.Render(rec.Approach))
			}
			for i, step := range rec.Steps {
				fmt.Fprintf(w, "  %d. %s\n", i+1, step)
			}
			if rec.Timeline != "" {
				fmt.Fprintf(w, "  %s %s\n", mutedStyle.Render("timeline:"), rec.Timeline)
			}
		}
	}
}

func renderTrends(w io.Writer, r *model.TrendReport) {
	if r == nil || len(r.Buckets) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No dated documents to analyze."))
		return
	}
	for _, b := range r.Buckets {
		fmt.Fprintf(w, "%s %s\n", titleStyle.Render(b.Era.Name), mutedStyle.Render(eraRange(b.Era)))
		fmt.Fprintf(w, "  documents: %d  requirements: %d\n", len(b.DocumentIDs), b.RequirementCount)
		for _, j := range sortedJurisdictions(b.Jurisdictions) {
			fmt.Fprintf(w, "  %s: %d\n", j, b.Jurisdictions[j])
		}
		if b.Summary != "" {
			fmt.Fprintf(w, "  %s\n", b.Summary)
		}
	}
	if len(r.KeyTrends) > 0 || len(r.EmergingAreas) > 0 {
		fmt.Fprintln(w)
	}
	renderList(w, "Key trends", r.KeyTrends)
	renderList(w, "Emerging areas", r.EmergingAreas)
	if len(r.Undated) > 0 {
		fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("%d undated document(s) skipped", len(r.Undated))))
	}
}

func eraRange(e model.Era) string {
	from, to := "...", "..."
	if e.FromYear != 0 {
		from = fmt.Sprint(e.FromYear)
	}
	if e.ToYear != 0 {
		to = fmt.Sprint(e.ToYear)
	}
	return from + "-" + to
}

func renderIngest(w io.Writer, r *biz.IngestReport) {
	if r == nil {
		fmt.Fprintln(w, mutedStyle.Render("(empty report)"))
		return
	}
	fmt.Fprintf(w, "%s %s  %s  %s  %s  %s\n",
		titleStyle.Render("Ingested"), r.Path,
		okStyle.Render(fmt.Sprintf("%d succeeded", r.Succeeded)),
		warnStyle.Render(fmt.Sprintf("%d partial", r.Partial)),
		errStyle.Render(fmt.Sprintf("%d failed", r.Failed)),
		mutedStyle.Render(fmt.Sprintf("%dms", r.DurationMs)),
	)
	for _, d := range r.Documents {
		name := d.SourceFilename
		if name == "" {
			name = d.Item
		}
		line := fmt.Sprintf("  %-9s %s %s %d/%d chunks", d.Status, name, d.Jurisdiction, d.Indexed, d.Chunks)
		if d.Error != "" {
			line += " " + errStyle.Render(d.Error)
		}
		fmt.Fprintln(w, line)
	}
}
