package biz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLLMJSON(t *testing.T) {
	type answer struct {
		DirectAnswer string `json:"direct_answer"`
	}

	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{"plain", `{"direct_answer": "ok"}`, "ok", false},
		{"fenced", "```json\n{\"direct_answer\": \"fenced\"}\n```", "fenced", false},
		{"surrounding prose", "Sure! Here it is: {\"direct_answer\": \"x\"} Hope this helps.", "x", false},
		{"no object", "I cannot answer that.", "", true},
		{"broken", `{"direct_answer": }`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var a answer
			err := parseLLMJSON(tt.content, &a)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, a.DirectAnswer)
		})
	}
}
