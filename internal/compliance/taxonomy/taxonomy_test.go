package taxonomy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

func TestDefaultTaxonomyIsValid(t *testing.T) {
	tx := Default()
	require.NotNil(t, tx)
	assert.Equal(t, model.LanguageEN, tx.DefaultLanguage)
	assert.Len(t, tx.Eras, 3)
	assert.NotNil(t, tx.Profile(model.LanguagePT))
	// 未知语言回退到默认语言
	assert.Equal(t, model.LanguageEN, tx.Profile("de").Language)
}

func TestMatchJurisdiction(t *testing.T) {
	tx := Default()
	tests := []struct {
		filename string
		expected model.Jurisdiction
	}{
		{"Bank_Secrecy_Act_31_CFR_1010.txt", model.JurisdictionUS},
		{"corpus/us/fincen-guidance.md", model.JurisdictionUS},
		{"CELEX_32015L0849_EN.txt", model.JurisdictionEU},
		{"eu/6th-AMLD-directive.pdf.txt", model.JurisdictionEU},
		{"Circular_BCB_3978.txt", model.JurisdictionBR},
		{"Lei 9613 de 1998.txt", model.JurisdictionBR},
		{"meeting-notes.txt", model.JurisdictionUnknown},
		{"", model.JurisdictionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			assert.Equal(t, tt.expected, tx.MatchJurisdiction(tt.filename))
		})
	}
}

func TestTopicsOf(t *testing.T) {
	tx := Default()
	assert.Equal(t, []string{"cash_transaction_reporting"},
		tx.TopicsOf("Financial institutions file a report for cash transactions above $10,000."))
	assert.Contains(t, tx.TopicsOf("A instituição deve identificar o beneficiário final e pessoas expostas politicamente."), "beneficial_ownership")
	assert.Contains(t, tx.TopicsOf("A instituição deve identificar o beneficiário final e pessoas expostas politicamente."), "politically_exposed_persons")
	assert.Empty(t, tx.TopicsOf("Nothing regulatory here."))
}

func TestProceduresOf(t *testing.T) {
	tx := Default()
	tp, ok := tx.Topic("customer_due_diligence")
	require.True(t, ok)
	assert.Equal(t, []string{"identify", "verify_identity"}, tp.ProceduresOf("Banks must identify and verify each customer."))
	assert.Equal(t, []string{"identify", "verify_identity"}, tp.ProceduresOf("O banco deve identificar e verificar o cliente."))
}

func TestIsPrimarySourceAndEras(t *testing.T) {
	tx := Default()
	assert.True(t, tx.IsPrimarySource("Bank_Secrecy_Act.txt"))
	assert.True(t, tx.IsPrimarySource("Circular_3978.txt"))
	assert.False(t, tx.IsPrimarySource("blog_post_summary.txt"))

	era, ok := tx.EraOf(2001)
	require.True(t, ok)
	assert.Equal(t, "pre-2015", era.Name)
	era, _ = tx.EraOf(2015)
	assert.Equal(t, "2015-2018", era.Name)
	era, _ = tx.EraOf(2020)
	assert.Equal(t, "post-2018", era.Name)

	custom := tx.WithEras([]model.Era{{Name: "all"}})
	era, _ = custom.EraOf(1990)
	assert.Equal(t, "all", era.Name)
	assert.Len(t, tx.Eras, 3)
}

func TestLoad(t *testing.T) {
	t.Run("empty path uses built-in", func(t *testing.T) {
		tx, err := Load("")
		require.NoError(t, err)
		assert.NotEmpty(t, tx.Topics)
	})

	t.Run("missing file is a taxonomy error", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTaxonomyMissing))
		assert.True(t, errors.IsConfiguration(err))
	})

	t.Run("no topics is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tx.yaml")
		require.NoError(t, os.WriteFile(path, []byte("default_language: en\njurisdictions:\n  - {jurisdiction: US, keywords: [fincen]}\n"), 0o600))
		_, err := Load(path)
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrTaxonomyMissing))
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("topics: [unterminated"))
		require.Error(t, err)
		assert.True(t, errors.IsConfiguration(err))
	})
}
