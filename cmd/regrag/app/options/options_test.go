package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

func TestFlagsUseConfigKeys(t *testing.T) {
	opts := NewServerOptions()
	fss := opts.Flags()

	lookup := func(section, name string) bool {
		fs, ok := fss.FlagSets[section]
		return ok && fs.Lookup(name) != nil
	}
	assert.True(t, lookup("http", "http.addr"))
	assert.True(t, lookup("http", "http.swagger"))
	assert.True(t, lookup("compliance", "compliance.retriever.top-k"))
	assert.True(t, lookup("llm", "llm.embedding.provider"))
	assert.True(t, lookup("cache", "cache.redis.host"))
	assert.True(t, lookup("pool", "pool.expiry-duration"))
	assert.True(t, lookup("middleware", "middleware.timeout.timeout"))
}

func TestDefaultsAreValid(t *testing.T) {
	opts := NewServerOptions()
	require.NoError(t, opts.Complete())
	assert.NoError(t, opts.Validate())

	cfg, err := opts.Config()
	require.NoError(t, err)
	assert.Same(t, opts.ComplianceOptions, cfg.ComplianceOptions)
}

func TestValidateSelectedVectorStore(t *testing.T) {
	t.Setenv("PGVECTOR_DSN", "")

	opts := NewServerOptions()
	opts.ComplianceOptions.VectorStore = compopts.StorePgVector
	require.NoError(t, opts.Complete())

	err := opts.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pgvector.dsn")

	opts.PgVectorOptions.DSN = "postgres://regrag@localhost/regrag"
	assert.NoError(t, opts.Validate())
}
