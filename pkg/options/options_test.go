package options

import (
	"errors"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
)

type stubGroup struct{ errs []error }

func (s *stubGroup) Validate() []error { return s.errs }
func (s *stubGroup) AddFlags(*pflag.FlagSet, ...string) {}

func TestJoin(t *testing.T) {
	assert.Equal(t, "", Join())
	assert.Equal(t, "", Join(""))
	assert.Equal(t, "compliance.", Join("compliance"))
	assert.Equal(t, "compliance.retriever.", Join("compliance", "retriever"))
}

func TestValidateAllKeepsOrder(t *testing.T) {
	first, second := errors.New("http.addr is required"), errors.New("llm.chat-model is required")
	errs := ValidateAll(&stubGroup{errs: []error{first}}, &stubGroup{}, &stubGroup{errs: []error{second}})
	assert.Equal(t, []error{first, second}, errs)
	assert.Empty(t, ValidateAll())
}
