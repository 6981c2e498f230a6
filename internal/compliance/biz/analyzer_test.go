package biz

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

func newTestAnalyzer(t *testing.T, chat *fakeChat) *Analyzer {
	opts := &compopts.AnalyzerOptions{DescribeWithLLM: true, LLMTimeout: time.Second}
	var provider llm.ChatProvider
	if chat != nil {
		provider = chat
	}
	return NewAnalyzer(testTaxonomy(t), provider, nil, opts)
}

func chunk(id string, j model.Jurisdiction, lang model.Language, text string) model.Chunk {
	return model.Chunk{ID: id, DocumentID: "doc-" + id, Text: text, Jurisdiction: j, Language: lang}
}

func TestExtractAttributes(t *testing.T) {
	tests := []struct {
		text  string
		value float64
		unit  string
	}{
		{"transactions above $10,000.", 10000, "USD"},
		{"acima de US$ 3,000 por dia", 3000, "USD"},
		{"operações acima de R$ 50.000,00", 50000, "BRL"},
		{"payments of EUR 1.000 or more", 1000, "EUR"},
		{"amounting to 10,000 euros", 10000, "EUR"},
		{"valor de R$ 50 mil", 50000, "BRL"},
		{"above USD 1.5 million", 1.5e6, "USD"},
		{"amounting to EUR 10 000 or more", 10000, "EUR"},
		{"amounting to EUR\u00a01\u00a0000\u00a0000", 1e6, "EUR"},
		{"a partir de 15\u202f000 euros", 15000, "EUR"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			a := ExtractAttributes(tt.text)
			require.NotEmpty(t, a.Thresholds)
			assert.InDelta(t, tt.value, a.Thresholds[0].Value, 1e-6)
			assert.Equal(t, tt.unit, a.Thresholds[0].Unit)
		})
	}

	a := ExtractAttributes("Owners of 25% or 10 per cent of shares.")
	require.Len(t, a.Percentages, 2)
	assert.Equal(t, 25.0, a.Percentages[0].Value)
	assert.Equal(t, 10.0, a.Percentages[1].Value)

	deadlines := []struct {
		text  string
		hours float64
	}{
		{"must be filed within 15 days", 360},
		{"records are kept for five (5) years", 43800},
		{"no prazo de 24 horas", 24},
		{"pelo prazo de cinco anos", 43800},
		{"até um dia útil", 24},
		{"within 3 business days", 72},
	}
	for _, tt := range deadlines {
		a := ExtractAttributes(tt.text)
		require.Len(t, a.Deadlines, 1, tt.text)
		assert.Equal(t, tt.hours, a.Deadlines[0].Value, tt.text)
	}
}

func TestParseAmount(t *testing.T) {
	tests := map[string]float64{
		"10,000":       10000,
		"10.000":       10000,
		"1,000,000":    1e6,
		"50.000,00":    50000,
		"10,000.50":    10000.5,
		"1.5":          1.5,
		"2,75":         2.75,
		"3000":         3000,
		"1.234.567,89": 1234567.89,
		"10 000":       10000,
		"10 000,50":    10000.5,
		"1\u202f500":   1500,
	}
	for in, want := range tests {
		got, ok := parseAmount(in)
		require.True(t, ok, in)
		assert.InDelta(t, want, got, 1e-6, in)
	}
}

func TestFormatQuantity(t *testing.T) {
	assert.Equal(t, "USD 10,000", formatQuantity(Quantity{Value: 10000, Unit: "USD"}))
	assert.Equal(t, "BRL 50,000.50", formatQuantity(Quantity{Value: 50000.5, Unit: "BRL"}))
	assert.Equal(t, "25%", formatQuantity(Quantity{Value: 25, Unit: "%"}))
	assert.Equal(t, "5 years", formatQuantity(Quantity{Value: 43800, Unit: "h"}))
	assert.Equal(t, "30 days", formatQuantity(Quantity{Value: 720, Unit: "h"}))
	assert.Equal(t, "15 days", formatQuantity(Quantity{Value: 360, Unit: "h"}))
	assert.Equal(t, "36 hours", formatQuantity(Quantity{Value: 36, Unit: "h"}))
}

func TestAnalyzeConflicts_CurrencyDivergence(t *testing.T) {
	chat := &fakeChat{def: "The US and EU apply the same nominal cash threshold in different currencies.\nSecond line."}
	a := newTestAnalyzer(t, chat)

	us := chunk("us-1", model.JurisdictionUS, model.LanguageEN, "Financial institutions file a report for cash transactions above $10,000.")
	eu := chunk("eu-1", model.JurisdictionEU, model.LanguageEN, "Obliged entities file a report for cash transactions above €10,000.")

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {us},
		model.JurisdictionEU: {eu},
	})
	require.Len(t, conflicts, 1)

	c := conflicts[0]
	assert.Equal(t, model.ConflictRequirement, c.Kind)
	assert.Equal(t, "cash_transaction_reporting", c.Topic)
	assert.Equal(t, AttrThreshold, c.Attribute)
	assert.Equal(t, []string{"eu-1", "us-1"}, c.SupportingChunkIDs)
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionEU, model.JurisdictionUS}, c.JurisdictionsInvolved)
	assert.Equal(t, "USD 10,000", c.Details[model.JurisdictionUS])
	assert.Equal(t, "EUR 10,000", c.Details[model.JurisdictionEU])
	assert.Equal(t, model.ImpactHigh, c.Impact)
	assert.Equal(t, "Apply the stricter threshold across jurisdictions", c.Resolution)
	assert.Equal(t, "The US and EU apply the same nominal cash threshold in different currencies.", c.Description)
	assert.Len(t, c.ID, 16)

	again := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionEU: {eu},
		model.JurisdictionUS: {us},
	})
	require.Len(t, again, 1)
	assert.Equal(t, c.ID, again[0].ID, "conflict ids are deterministic")
}

func TestAnalyzeConflicts_SpaceGroupedAmount(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	us := chunk("us-1", model.JurisdictionUS, model.LanguageEN, "Financial institutions file a report for cash transactions above $10,000.")
	eu := chunk("eu-1", model.JurisdictionEU, model.LanguageEN, "Obliged entities file a report for cash transactions amounting to EUR 10 000 or more.")

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {us},
		model.JurisdictionEU: {eu},
	})
	require.Len(t, conflicts, 1)
	assert.Equal(t, AttrThreshold, conflicts[0].Attribute)
	assert.Equal(t, "EUR 10,000", conflicts[0].Details[model.JurisdictionEU])
	assert.Equal(t, "USD 10,000", conflicts[0].Details[model.JurisdictionUS])
	assert.Equal(t, model.ImpactHigh, conflicts[0].Impact)
}

func TestAnalyzeConflicts_DescriptionFallsBackToTemplate(t *testing.T) {
	a := newTestAnalyzer(t, &fakeChat{err: errors.New("model unavailable")})

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {chunk("us-1", model.JurisdictionUS, model.LanguageEN, "Report cash transactions above $10,000.")},
		model.JurisdictionBR: {chunk("br-1", model.JurisdictionBR, model.LanguagePT, "Comunicar operações em espécie acima de R$ 50.000,00.")},
	})
	require.Len(t, conflicts, 1)
	assert.Equal(t,
		"Cash Transaction Reporting threshold differs across jurisdictions (BR: BRL 50,000; US: USD 10,000).",
		conflicts[0].Description)
	assert.Equal(t, model.ImpactHigh, conflicts[0].Impact)
}

func TestAnalyzeConflicts_SameValueNoConflict(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {chunk("us-1", model.JurisdictionUS, model.LanguageEN, "File a report for cash transactions above $10,000.")},
		model.JurisdictionEU: {chunk("eu-1", model.JurisdictionEU, model.LanguageEN, "File a report for cash transactions above USD 10,000.")},
	})
	assert.Empty(t, conflicts)
}

func TestAnalyzeConflicts_SingleJurisdictionNoConflict(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {
			chunk("us-1", model.JurisdictionUS, model.LanguageEN, "Report cash transactions above $10,000."),
			chunk("us-2", model.JurisdictionUS, model.LanguageEN, "Report cash transactions above $3,000."),
		},
		model.JurisdictionUnknown: {chunk("x-1", model.JurisdictionUnknown, model.LanguageEN, "Report cash transactions above €1,000.")},
	})
	assert.Empty(t, conflicts)
}

func TestAnalyzeConflicts_Timeline(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {chunk("us-1", model.JurisdictionUS, model.LanguageEN, "Suspicious activity reports must be filed within 30 days.")},
		model.JurisdictionEU: {chunk("eu-1", model.JurisdictionEU, model.LanguageEN, "Suspicious transactions must be reported within 24 hours.")},
	})
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, model.ConflictTimeline, c.Kind)
	assert.Equal(t, AttrDeadline, c.Attribute)
	assert.Equal(t, "30 days", c.Details[model.JurisdictionUS])
	assert.Equal(t, "24 hours", c.Details[model.JurisdictionEU])
	assert.Equal(t, model.ImpactHigh, c.Impact)
	assert.Equal(t, "Follow the stricter (shorter) timeline", c.Resolution)
}

func TestAnalyzeConflicts_PercentageAndDefinition(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {chunk("us-1", model.JurisdictionUS, model.LanguageEN,
			"A beneficial owner means each individual who owns 25 percent or more of the equity interests.")},
		model.JurisdictionEU: {chunk("eu-1", model.JurisdictionEU, model.LanguageEN,
			"Beneficial owner means a shareholding of 25% plus one share or an ownership interest of more than 25%.")},
		model.JurisdictionBR: {chunk("br-1", model.JurisdictionBR, model.LanguagePT,
			"Considera-se beneficiário final a pessoa natural que possui mais de 10% do capital.")},
	})
	require.Len(t, conflicts, 2)

	pct := conflicts[0]
	assert.Equal(t, model.ConflictRequirement, pct.Kind)
	assert.Equal(t, AttrPercentage, pct.Attribute)
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionBR, model.JurisdictionEU, model.JurisdictionUS}, pct.JurisdictionsInvolved)
	assert.Equal(t, "10%", pct.Details[model.JurisdictionBR])
	assert.Equal(t, model.ImpactHigh, pct.Impact)

	def := conflicts[1]
	assert.Equal(t, model.ConflictDefinition, def.Kind)
	// 定义只在同语言辖区之间比较
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionEU, model.JurisdictionUS}, def.JurisdictionsInvolved)
	assert.Equal(t, model.ImpactMedium, def.Impact)
	assert.Equal(t, "Adopt the broader definition", def.Resolution)
}

func TestAnalyzeConflicts_Procedure(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	conflicts := a.AnalyzeConflicts(context.Background(), map[model.Jurisdiction][]model.Chunk{
		model.JurisdictionUS: {chunk("us-1", model.JurisdictionUS, model.LanguageEN,
			"Covered institutions must verify the identity of each customer as part of customer due diligence.")},
		model.JurisdictionEU: {chunk("eu-1", model.JurisdictionEU, model.LanguageEN,
			"Customer due diligence requires obliged entities to identify the customer and screen against sanctions lists.")},
	})
	require.Len(t, conflicts, 1)
	c := conflicts[0]
	assert.Equal(t, model.ConflictProcedure, c.Kind)
	assert.Equal(t, "verify_identity", c.Details[model.JurisdictionUS])
	assert.Equal(t, "identify, screen", c.Details[model.JurisdictionEU])
	assert.Equal(t, model.ImpactLow, c.Impact)
}

func TestBuildConflictReport(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	report := a.BuildConflictReport([]model.Conflict{
		{Topic: "cash_transaction_reporting", Kind: model.ConflictRequirement, Impact: model.ImpactHigh, Resolution: resolutions[model.ConflictRequirement]},
		{Topic: "beneficial_ownership", Kind: model.ConflictDefinition, Impact: model.ImpactMedium},
		{Topic: "customer_due_diligence", Kind: model.ConflictProcedure, Impact: model.ImpactLow},
	})
	assert.NotEmpty(t, report.ID)
	assert.Equal(t, model.ConflictSummary{Total: 3, High: 1, Medium: 1, Low: 1}, report.Summary)
	require.Len(t, report.Recommendations, 1)
	rec := report.Recommendations[0]
	assert.Equal(t, "high", rec.Priority)
	assert.Equal(t, "Cash Transaction Reporting", rec.Topic)
	assert.Equal(t, "Apply the stricter threshold across jurisdictions", rec.Recommendation)
	assert.Len(t, rec.Steps, 3)
	assert.Equal(t, "30 days", rec.Timeline)

	empty := a.BuildConflictReport(nil)
	assert.NotNil(t, empty.Conflicts)
	assert.Empty(t, empty.Recommendations)
}

func TestAnalyzeTrends(t *testing.T) {
	a := newTestAnalyzer(t, nil)
	date := func(y int) *time.Time {
		d := time.Date(y, 1, 1, 0, 0, 0, 0, time.UTC)
		return &d
	}

	docs := []model.Document{
		{ID: "d1", Jurisdiction: model.JurisdictionEU, PublishedAt: date(2010)},
		{ID: "d2", Jurisdiction: model.JurisdictionUS, PublishedAt: date(2016)},
		{ID: "d3", Jurisdiction: model.JurisdictionBR, PublishedAt: date(2021)},
		{ID: "d4", Jurisdiction: model.JurisdictionUS, RawText: "Customer due diligence applies."},
	}
	chunks := []model.Chunk{
		{ID: "d1-0", DocumentID: "d1", Text: "Customer due diligence applies to all accounts."},
		{ID: "d2-0", DocumentID: "d2", Text: "Customer due diligence is required."},
		{ID: "d2-1", DocumentID: "d2", Text: "Know your customer checks must be documented. The beneficial owner threshold is 25%."},
		{ID: "d3-0", DocumentID: "d3", Text: "Devida diligência do cliente é obrigatória."},
		{ID: "d3-1", DocumentID: "d3", Text: "Conheça seu cliente deve ser aplicado."},
		{ID: "d3-2", DocumentID: "d3", Text: "KYC procedures apply."},
		{ID: "d3-3", DocumentID: "d3", Text: "Beneficiário final deve ser identificado."},
	}

	report := a.AnalyzeTrends(context.Background(), docs, chunks)
	require.Len(t, report.Buckets, 3)
	assert.Equal(t, []string{"d4"}, report.Undated)

	pre, mid, post := report.Buckets[0], report.Buckets[1], report.Buckets[2]
	assert.Equal(t, "pre-2015", pre.Era.Name)
	assert.Equal(t, []string{"d1"}, pre.DocumentIDs)
	assert.Equal(t, 1, pre.TopicCounts["customer_due_diligence"])
	assert.Equal(t, 2, mid.TopicCounts["customer_due_diligence"])
	assert.Equal(t, 1, mid.TopicCounts["beneficial_ownership"])
	assert.Equal(t, 1, mid.RequirementCount)
	assert.Equal(t, 3, post.TopicCounts["customer_due_diligence"])
	assert.Equal(t, 1, post.Jurisdictions[model.JurisdictionBR])

	assert.Equal(t,
		"pre-2015: 1 document(s) (EU 1); most frequent topic Customer Due Diligence (1 chunks); 0 quantitative requirement(s).",
		pre.Summary)

	require.Len(t, report.KeyTrends, 1)
	assert.Contains(t, report.KeyTrends[0], "Customer Due Diligence rising: 1 -> 2 -> 3")
	assert.Equal(t, []string{"Beneficial Ownership"}, report.EmergingAreas)
}

func TestMapRequirements(t *testing.T) {
	a := newTestAnalyzer(t, nil)

	chunks := []model.Chunk{
		{ID: "us-0", DocumentID: "us", Jurisdiction: model.JurisdictionUS, Language: model.LanguageEN,
			Text: "Background. Banks must file a CTR for cash transactions over $10,000."},
		{ID: "eu-0", DocumentID: "eu", Jurisdiction: model.JurisdictionEU, Language: model.LanguageEN,
			Text: "Cash transactions are described in Annex I."},
		{ID: "br-0", DocumentID: "br", Jurisdiction: model.JurisdictionBR, Language: model.LanguagePT,
			Text: "As instituições devem comunicar operações em espécie."},
	}
	names := map[string]string{"us": "us/31_cfr_1010.txt", "br": "br/circular_3978.txt"}

	m := a.MapRequirements(chunks, names, "")
	cash := m["cash_transaction_reporting"]
	require.NotNil(t, cash)
	require.Len(t, cash[model.JurisdictionUS], 1)
	assert.Equal(t, "Banks must file a CTR for cash transactions over $10,000.", cash[model.JurisdictionUS][0].Excerpt)
	assert.Equal(t, "us/31_cfr_1010.txt", cash[model.JurisdictionUS][0].SourceFilename)
	require.Len(t, cash[model.JurisdictionBR], 1)
	assert.Empty(t, cash[model.JurisdictionEU])

	assert.Empty(t, a.MapRequirements(chunks, names, "record_keeping"))
}
