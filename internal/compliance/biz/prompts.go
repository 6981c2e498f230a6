package biz

import (
	"fmt"
	"strings"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/textutil"
)

const (
	analystSystemPrompt = "You are a regulatory compliance analyst covering US, EU and Brazilian anti-money-laundering law. " +
		"Use only the evidence you are given. Never invent citations, thresholds or dates. Reply with a single JSON object and nothing else."

	describerSystemPrompt = "You are a regulatory compliance analyst. Reply with exactly one plain-text sentence."

	promptEvidenceRunes = 1500
)

func formatEvidence(sb *strings.Builder, evidence []model.RetrievedEvidence) {
	for _, ev := range evidence {
		fmt.Fprintf(sb, "[%d] jurisdiction=%s source=%s score=%.3f\n%s\n\n",
			ev.Rank, ev.Chunk.Jurisdiction, ev.SourceFilename, ev.Score,
			textutil.TruncateWithEllipsis(ev.Chunk.Text, promptEvidenceRunes))
	}
}

func breakdownPrompt(profile *taxonomy.LanguageProfile, query string, j model.Jurisdiction, evidence []model.RetrievedEvidence) string {
	var sb strings.Builder
	sb.WriteString("Task: jurisdiction_breakdown\n")
	fmt.Fprintf(&sb, "Jurisdiction: %s\n", j)
	fmt.Fprintf(&sb, "Question: %s\n\nEvidence:\n", query)
	formatEvidence(&sb, evidence)
	sb.WriteString("Summarize what this jurisdiction's evidence says about the question. ")
	sb.WriteString(profile.AnswerInstruction)
	sb.WriteString("\nRespond with JSON: {\"summary\": string, \"key_points\": [string], \"relevance_score\": number between 0 and 1}\n")
	return sb.String()
}

func comparisonPrompt(profile *taxonomy.LanguageProfile, query string, groups []evidenceGroup) string {
	var sb strings.Builder
	sb.WriteString("Task: cross_jurisdiction_comparison\n")
	fmt.Fprintf(&sb, "Question: %s\n\n", query)
	for _, g := range groups {
		fmt.Fprintf(&sb, "Evidence for %s:\n", g.jurisdiction)
		formatEvidence(&sb, g.evidence)
	}
	sb.WriteString("Compare how the jurisdictions address the question. ")
	sb.WriteString(profile.AnswerInstruction)
	sb.WriteString("\nRespond with JSON: {\"similarities\": [string], \"differences\": [string], \"unique_aspects\": [string]}\n")
	return sb.String()
}

func directAnswerPrompt(profile *taxonomy.LanguageProfile, query string, evidence []model.RetrievedEvidence) string {
	var sb strings.Builder
	sb.WriteString("Task: direct_answer\n")
	fmt.Fprintf(&sb, "Question: %s\n\nEvidence:\n", query)
	formatEvidence(&sb, evidence)
	sb.WriteString("Answer the question directly in two to four sentences, naming the jurisdictions involved. ")
	sb.WriteString(profile.AnswerInstruction)
	sb.WriteString("\nRespond with JSON: {\"direct_answer\": string}\n")
	return sb.String()
}

func conflictDescriptionPrompt(c *model.Conflict, topicLabel string) string {
	var sb strings.Builder
	sb.WriteString("Task: conflict_description\n")
	fmt.Fprintf(&sb, "Topic: %s\nKind: %s\nAttribute: %s\n", topicLabel, c.Kind, c.Attribute)
	for _, j := range c.JurisdictionsInvolved {
		fmt.Fprintf(&sb, "- %s: %s\n", j, c.Details[j])
	}
	sb.WriteString("Describe this divergence between the jurisdictions in one neutral sentence. Do not add facts beyond the details listed.\n")
	return sb.String()
}
