package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/pkg/app/cliflag"
)

type testOptions struct {
	Addr  string `mapstructure:"addr"`
	Model string `mapstructure:"model"`
	Level string `mapstructure:"level"`
	Token string `mapstructure:"token"`

	completed bool
}

func (o *testOptions) Flags() cliflag.NamedFlagSets {
	var fss cliflag.NamedFlagSets
	fs := fss.FlagSet("test")
	fs.StringVar(&o.Addr, "addr", ":8080", "listen address")
	fs.StringVar(&o.Model, "model", "m0", "model name")
	fs.StringVar(&o.Level, "level", "info", "log level")
	fs.StringVar(&o.Token, "token", "", "api token")
	return fss
}

func (o *testOptions) Complete() error {
	o.completed = true
	return nil
}

func (o *testOptions) Validate() error { return nil }

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "apptest.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestConfigPrecedence(t *testing.T) {
	cfg := writeConfig(t, `
addr: ":9000"
model: from-file
level: ${APPTEST_LEVEL_SOURCE}
token: ${APPTEST_UNDEFINED_TOKEN}
`)
	t.Setenv("APPTEST_MODEL", "from-env")
	t.Setenv("APPTEST_LEVEL_SOURCE", "debug")

	opts := &testOptions{}
	var ran bool
	a := NewApp(
		WithName("apptest"),
		WithOptions(opts),
		WithDotenvFiles(),
		WithRunFunc(func(context.Context) error {
			ran = true
			return nil
		}),
	)
	a.Command().SetArgs([]string{"--config", cfg, "--addr", ":7000"})
	require.NoError(t, a.Command().Execute())

	assert.True(t, ran)
	assert.True(t, opts.completed)
	assert.Equal(t, ":7000", opts.Addr, "flag beats file")
	assert.Equal(t, "from-env", opts.Model, "env beats file")
	assert.Equal(t, "debug", opts.Level, "${VAR} expanded from the environment")
	assert.Equal(t, "${APPTEST_UNDEFINED_TOKEN}", opts.Token, "undefined references are kept")
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	opts := &testOptions{}
	a := NewApp(
		WithName("apptest"),
		WithOptions(opts),
		WithDotenvFiles(),
		WithConfigDirs(t.TempDir()),
	)
	a.Command().SetArgs(nil)
	require.NoError(t, a.Command().Execute())

	assert.Equal(t, ":8080", opts.Addr)
	assert.Equal(t, "m0", opts.Model)
}

func TestExplicitConfigMustExist(t *testing.T) {
	a := NewApp(WithName("apptest"), WithOptions(&testOptions{}), WithDotenvFiles())
	a.Command().SetArgs([]string{"--config", filepath.Join(t.TempDir(), "missing.yaml")})

	err := a.Command().Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestEnvPrefixFromName(t *testing.T) {
	a := NewApp(WithName("reg-rag"), WithDotenvFiles())
	assert.Equal(t, "REG_RAG", a.envPrefix)
	assert.Equal(t, "reg-rag", a.Command().Use)
}
