package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ingestRequest struct {
	Path  string `json:"path" binding:"required,sourcepath"`
	Label string `json:"label" binding:"omitempty,nowhitespace"`
}

type queryRequest struct {
	Text string `json:"text" binding:"required,notblank,max=20"`
}

func TestSourcePath(t *testing.T) {
	v := New()
	tests := []struct {
		path string
		ok   bool
	}{
		{"./corpus", true},
		{"/data/eu/gdpr.txt", true},
		{"s3://regulations/eu/", true},
		{"s3://regulations", true},
		{"s3:///prefix", false},
		{"https://example.com/doc.txt", false},
		{"bad\x00path", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := v.Validate(&ingestRequest{Path: tt.path})
			assert.Equal(t, tt.ok, err == nil, "err = %v", err)
		})
	}
}

func TestTranslateUsesJSONNames(t *testing.T) {
	v := New()
	err := v.Validate(&ingestRequest{Label: "two words"})
	require.Error(t, err)

	verrs := v.Translate(err, "en-US,en;q=0.9")
	require.NotNil(t, verrs)
	assert.Equal(t, []string{"path", "label"}, verrs.Fields())
	assert.Contains(t, verrs.Error(), "path is a required field")
	assert.Contains(t, verrs.Error(), "label must not contain whitespace characters")
}

func TestTranslateChinese(t *testing.T) {
	v := New()
	err := v.Validate(&queryRequest{Text: "   "})
	require.Error(t, err)

	verrs := v.Translate(err, "zh-CN")
	require.NotNil(t, verrs)
	assert.Equal(t, "text不能为空白", verrs.Error())
}

func TestTranslateNonValidationError(t *testing.T) {
	assert.Nil(t, New().Translate(assert.AnError, LangEN))
}

func TestGinValidator(t *testing.T) {
	g := ginValidator{v: New()}
	assert.NoError(t, g.ValidateStruct(nil))
	assert.NoError(t, g.ValidateStruct(&queryRequest{Text: "ok"}))
	assert.Error(t, g.ValidateStruct([]queryRequest{{Text: "ok"}, {Text: ""}}))
}
