package compliance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
)

func TestDefaultsValid(t *testing.T) {
	assert.Empty(t, NewOptions().Validate())
}

func TestOverlapMustBeBelowMax(t *testing.T) {
	o := NewOptions()
	o.Chunker.OverlapSize = o.Chunker.MaxChunkSize
	errs := o.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "OverlapSize")
}

func TestInvalidStoreAndScore(t *testing.T) {
	o := NewOptions()
	o.VectorStore = "faiss"
	o.Retriever.MinScore = 1.5
	assert.Len(t, o.Validate(), 2)
}

func TestParseEras(t *testing.T) {
	eras, err := ParseEras([]string{"pre-2015:..2014", "2015-2018:2015..2018", "post-2018:2019.."})
	require.NoError(t, err)
	assert.Equal(t, []model.Era{
		{Name: "pre-2015", ToYear: 2014},
		{Name: "2015-2018", FromYear: 2015, ToYear: 2018},
		{Name: "post-2018", FromYear: 2019},
	}, eras)

	_, err = ParseEras([]string{"bad"})
	assert.Error(t, err)
	_, err = ParseEras([]string{"x:2020..2010"})
	assert.Error(t, err)
}
