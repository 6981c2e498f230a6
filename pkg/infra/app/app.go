// Package app wires a cobra command to a layered configuration source.
//
// 配置优先级: 命令行 flag > 环境变量 (含 .env) > 配置文件 > 默认值。
// flag 名即配置键，例如 --llm.chat-model 对应 YAML 中的 llm.chat-model
// 以及环境变量 REGRAG_LLM_CHAT_MODEL。
package app

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/kart-io/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/gregorizeidler-cw/RegRAG/pkg/app/cliflag"
)

// RunFunc is invoked once options are loaded, completed and validated.
// ctx is cancelled on SIGINT or SIGTERM.
type RunFunc func(ctx context.Context) error

// Option configures an App.
type Option func(*App)

// App is a single-command binary backed by viper.
type App struct {
	name      string
	short     string
	long      string
	envPrefix string
	searchDir []string
	dotenv    []string

	options CliOptions
	run     RunFunc

	v   *viper.Viper
	cmd *cobra.Command
}

func WithName(name string) Option { return func(a *App) { a.name = name } }

func WithShortDescription(desc string) Option { return func(a *App) { a.short = desc } }

func WithDescription(desc string) Option { return func(a *App) { a.long = desc } }

func WithOptions(opts CliOptions) Option { return func(a *App) { a.options = opts } }

func WithRunFunc(run RunFunc) Option { return func(a *App) { a.run = run } }

// WithEnvPrefix overrides the environment prefix. 默认由 name 推导 (regrag -> REGRAG)。
func WithEnvPrefix(prefix string) Option { return func(a *App) { a.envPrefix = prefix } }

// WithConfigDirs replaces the directories searched for <name>.yaml.
func WithConfigDirs(dirs ...string) Option { return func(a *App) { a.searchDir = dirs } }

// WithDotenvFiles replaces the dotenv files loaded before the environment is
// bound. No files disables dotenv loading.
func WithDotenvFiles(files ...string) Option { return func(a *App) { a.dotenv = files } }

// NewApp creates a new application instance.
func NewApp(opts ...Option) *App {
	a := &App{
		name:   filepath.Base(os.Args[0]),
		dotenv: []string{".env"},
		v:      viper.New(),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.envPrefix == "" {
		a.envPrefix = strings.ToUpper(strings.ReplaceAll(a.name, "-", "_"))
	}
	if a.searchDir == nil {
		a.searchDir = []string{".", "./configs", "/etc/" + a.name}
		if home, err := os.UserHomeDir(); err == nil {
			a.searchDir = append(a.searchDir, filepath.Join(home, "."+a.name))
		}
	}

	a.cmd = a.newCommand()
	return a
}

func (a *App) newCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          a.name,
		Short:        a.short,
		Long:         a.long,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version.PrintAndExitIfRequested()
			if err := a.load(cmd.Flags()); err != nil {
				return err
			}
			if a.run == nil {
				return nil
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			return a.run(ctx)
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	pfs := cmd.PersistentFlags()
	pfs.StringP("config", "c", "", "Path to a YAML config file. Searched as "+a.name+".yaml when empty.")
	version.AddFlags(pfs)

	if a.options == nil {
		return cmd
	}
	sections := a.options.Flags()
	for _, name := range sections.Order {
		cmd.Flags().AddFlagSet(sections.FlagSets[name])
	}
	cmd.SetUsageFunc(func(c *cobra.Command) error {
		w := c.OutOrStderr()
		fmt.Fprintf(w, "Usage:\n  %s\n\nGlobal flags:\n\n%s", c.UseLine(), c.PersistentFlags().FlagUsages())
		cliflag.PrintSections(w, sections)
		return nil
	})
	return cmd
}

// load layers dotenv, config file, environment and flags into the options,
// then completes and validates them.
func (a *App) load(flags *pflag.FlagSet) error {
	// godotenv.Load 不覆盖进程中已存在的变量
	for _, f := range a.dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	if err := a.readConfig(flags); err != nil {
		return err
	}

	a.v.SetEnvPrefix(a.envPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	a.v.AutomaticEnv()
	if err := a.v.BindPFlags(flags); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if a.options == nil {
		return nil
	}
	if err := a.decode(flags); err != nil {
		return err
	}
	if err := a.options.Complete(); err != nil {
		return err
	}
	return a.options.Validate()
}

func (a *App) readConfig(flags *pflag.FlagSet) error {
	path, _ := flags.GetString("config")
	if path != "" {
		a.v.SetConfigFile(path)
	} else {
		a.v.SetConfigName(a.name)
		a.v.SetConfigType("yaml")
		for _, dir := range a.searchDir {
			a.v.AddConfigPath(dir)
		}
	}

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
		return nil
	}

	// YAML 中的 ${VAR} 引用在此展开；未定义的变量保持原样
	for _, key := range a.v.AllKeys() {
		s, ok := a.v.Get(key).(string)
		if !ok || !strings.Contains(s, "$") {
			continue
		}
		expanded := os.Expand(s, func(name string) string {
			if val, ok := os.LookupEnv(name); ok && val != "" {
				return val
			}
			return "${" + name + "}"
		})
		if expanded != s {
			a.v.Set(key, expanded)
		}
	}
	return nil
}

// decode unmarshals viper into the options. Unmarshal overwrites flag-backed
// fields with merged values, so explicitly set flags are applied again last.
func (a *App) decode(flags *pflag.FlagSet) error {
	explicit := map[string]string{}
	flags.Visit(func(f *pflag.Flag) { explicit[f.Name] = f.Value.String() })

	if err := a.v.Unmarshal(a.options); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	for name, val := range explicit {
		if err := flags.Set(name, val); err != nil {
			return fmt.Errorf("failed to re-apply flag --%s: %w", name, err)
		}
	}
	return nil
}

// Run executes the command with a context cancelled on the first SIGINT or
// SIGTERM. A second signal exits immediately.
func (a *App) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
		<-sig
		os.Exit(1)
	}()

	if err := a.cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Command returns the cobra command.
func (a *App) Command() *cobra.Command {
	return a.cmd
}

// Viper exposes the merged configuration for callers that read keys outside
// the options tree.
func (a *App) Viper() *viper.Viper {
	return a.v
}
