package biz

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

const ptParagraph = "As instituições financeiras devem comunicar ao COAF as operações em espécie " +
	"de valor igual ou superior a cinquenta mil reais. A comunicação deve ser feita no prazo de um dia útil, " +
	"sem dar ciência aos envolvidos, e os registros das operações devem ser mantidos pelo prazo de cinco anos " +
	"para que possam ser disponibilizados ao órgão de supervisão quando solicitados pela autoridade competente."

const enParagraph = "Each financial institution shall file a report of each deposit, withdrawal, exchange of currency " +
	"or other payment or transfer, by, through, or to such financial institution which involves a transaction in " +
	"currency of more than $10,000. The report must be filed within 15 days and the records shall be retained for " +
	"a period of five years from the date of the transaction so that they are available to the regulator."

func TestLanguageDetector(t *testing.T) {
	tax := testTaxonomy(t)
	d := NewLanguageDetector(tax, 2000)

	assert.Equal(t, model.LanguagePT, d.Detect(ptParagraph, 50))
	assert.Equal(t, model.LanguageEN, d.Detect(enParagraph, 50))

	// 词数不足时回退默认语言
	assert.Equal(t, model.LanguageEN, d.Detect("operações em espécie", 50))

	assert.Equal(t, model.LanguagePT, d.DetectQuery("Qual é o limite para operações em espécie no Brasil?"))
	assert.Equal(t, model.LanguageEN, d.DetectQuery("What is the cash reporting threshold in the US?"))
	assert.Equal(t, model.LanguageEN, d.DetectQuery("CTR"))
}

func TestNormalize(t *testing.T) {
	n := NewNormalizer(testTaxonomy(t), testOptions())

	doc, err := n.Normalize("# Circular 3.978 BCB\n\n"+ptParagraph, "br/bcb_circular_3978_2020.txt")
	require.NoError(t, err)
	assert.Equal(t, model.JurisdictionBR, doc.Jurisdiction)
	assert.Equal(t, model.LanguagePT, doc.Language)
	assert.Equal(t, "Circular 3.978 BCB", doc.Title)
	require.NotNil(t, doc.PublishedAt)
	assert.Equal(t, 2020, doc.PublishedAt.Year())
	assert.Len(t, doc.ID, 16)
	assert.False(t, doc.IngestedAt.IsZero())
}

func TestNormalize_DeterministicID(t *testing.T) {
	n := NewNormalizer(testTaxonomy(t), testOptions())

	a, err := n.Normalize(enParagraph, "us/bank_secrecy_act.txt")
	require.NoError(t, err)
	b, err := n.Normalize(enParagraph+" amended", "US/./bank_secrecy_act.txt")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.Equal(t, model.JurisdictionUS, a.Jurisdiction)
}

func TestNormalize_UnknownJurisdiction(t *testing.T) {
	n := NewNormalizer(testTaxonomy(t), testOptions())

	doc, err := n.Normalize("Some guidance.", "notes/internal-memo.md")
	require.NoError(t, err)
	assert.Equal(t, model.JurisdictionUnknown, doc.Jurisdiction)
	assert.Equal(t, model.LanguageEN, doc.Language)
	assert.Nil(t, doc.PublishedAt)
}

func TestNormalize_EmptyText(t *testing.T) {
	n := NewNormalizer(testTaxonomy(t), testOptions())

	_, err := n.Normalize("  \n\n ", "eu/amld5.txt")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrIngestion))
}

func TestNormalize_TitleFallback(t *testing.T) {
	assert.Equal(t, "amld5_directive", extractTitle("", "eu/amld5_directive.txt"))
	long := strings.Repeat("x", 300)
	assert.Len(t, []rune(extractTitle(long, "a.txt")), maxTitleRunes)
}

func TestPublishedAt(t *testing.T) {
	n := NewNormalizer(testTaxonomy(t), testOptions())

	tests := []struct {
		name     string
		text     string
		filename string
		want     string
	}{
		{"filename year", "no date here", "directive_2015_849.txt", "2015-01-01"},
		{"filename number out of range", "no date", "circular_3978.txt", ""},
		{"slash date", "Publicado em 24/01/2020 pelo Banco Central.", "circular.txt", "2020-01-24"},
		{"iso date", "Effective 2019-06-30.", "guidance.txt", "2019-06-30"},
		{"english month first", "Issued on May 11, 2016 by FinCEN.", "cdd_rule.txt", "2016-05-11"},
		{"english day first", "Adopted 30 May 2018.", "amld.txt", "2018-05-30"},
		{"portuguese", "Brasília, 23 de janeiro de 2020.", "circular.txt", "2020-01-23"},
		{"earliest wins", "Revised 2021-01-01, originally 5 March 2010.", "x.txt", "2021-01-01"},
		{"invalid day", "Dated 31/02/2020.", "x.txt", ""},
		{"none", "No date at all.", "x.txt", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := n.publishedAt(tt.text, tt.filename)
			if tt.want == "" {
				assert.False(t, ok)
				return
			}
			require.True(t, ok)
			want, _ := time.Parse("2006-01-02", tt.want)
			assert.Equal(t, want, got)
		})
	}
}
