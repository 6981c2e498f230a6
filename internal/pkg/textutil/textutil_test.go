package textutil

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0}, []float32{0, 1}, 0},
		{"opposite", []float32{1, 0}, []float32{-1, 0}, -1},
		{"length mismatch", []float32{1}, []float32{1, 2}, 0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestNormalizeAndClamp(t *testing.T) {
	assert.Equal(t, 1.0, NormalizeCosineSimilarity(1))
	assert.Equal(t, 0.5, NormalizeCosineSimilarity(0))
	assert.Equal(t, 0.0, Clamp01(-0.2))
	assert.Equal(t, 1.0, Clamp01(1.7))
	assert.Equal(t, 0.0, Clamp01(math.NaN()))
}

func TestHashString(t *testing.T) {
	h := HashString("bsa_31_cfr_1010.txt", 16)
	assert.Len(t, h, 16)
	assert.Equal(t, h, HashString("bsa_31_cfr_1010.txt", 16))
	assert.Len(t, HashString("x", 0), 64)
}

func TestTruncateWithEllipsis(t *testing.T) {
	assert.Equal(t, "short", TruncateWithEllipsis("short", 10))
	out := TruncateWithEllipsis("abcdefghijklmnop", 10)
	assert.Equal(t, "abcdefg...", out)
	assert.LessOrEqual(t, len([]rune(out)), 10)
}

func TestSplitParagraphs(t *testing.T) {
	text := "First paragraph.\r\n\r\nSecond one\nstill second.\n \n\nThird."
	assert.Equal(t, []string{"First paragraph.", "Second one\nstill second.", "Third."}, SplitParagraphs(text))
}

func TestSplitSentences(t *testing.T) {
	text := "Banks must verify identity. Records are kept for 5 years; reports go to FinCEN! Is it U.S.A.? yes"
	assert.Equal(t, []string{
		"Banks must verify identity.",
		"Records are kept for 5 years;",
		"reports go to FinCEN!",
		"Is it U.S.A.?",
		"yes",
	}, SplitSentences(text))
}

func TestFoldAndPhrase(t *testing.T) {
	assert.Equal(t, "obrigatorio", Fold("Obrigatório"))
	folded := Fold("A due diligence é obrigatória para PEPs.")
	assert.True(t, ContainsPhrase(folded, "due diligence"))
	assert.True(t, ContainsPhrase(folded, "PEPs"))
	assert.True(t, ContainsPhrase(folded, "pep"))
	assert.False(t, ContainsPhrase(folded, "pe"))
	assert.True(t, ContainsPhrase(Fold("cash transactions above"), "cash transaction"))
	assert.False(t, ContainsPhrase(Fold("cashier"), "cash"))
	assert.Equal(t, []string{"a", "due", "diligence", "e", "obrigatoria", "para", "peps"}, Words("A due diligence é obrigatória para PEPs."))
}

func TestCountTokens(t *testing.T) {
	assert.Equal(t, 4, CountTokens("  one two\nthree\tfour "))
	assert.Equal(t, 0, CountTokens(""))
}
