// Package app implements the regragctl command tree.
package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/biz"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/handler"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/app"
)

const (
	outputText = "text"
	outputJSON = "json"
)

// globalOptions 所有子命令共享的选项。
type globalOptions struct {
	Server  string
	Output  string
	Timeout time.Duration
}

func (o *globalOptions) validate() error {
	switch o.Output {
	case outputText, outputJSON:
	default:
		return fmt.Errorf("unsupported output %q, expected %s or %s", o.Output, outputText, outputJSON)
	}
	if !strings.HasPrefix(o.Server, "http://") && !strings.HasPrefix(o.Server, "https://") {
		return fmt.Errorf("server must be an http(s) URL, got %q", o.Server)
	}
	if o.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

func (o *globalOptions) client() *apiClient {
	return newAPIClient(o.Server, o.Timeout)
}

// NewCommand 创建 regragctl 根命令。
func NewCommand() *cobra.Command {
	opts := &globalOptions{
		Server:  "http://localhost:8080",
		Output:  outputText,
		Timeout: 5 * time.Minute,
	}

	cmd := &cobra.Command{
		Use:           "regragctl",
		Short:         "Command line client for the RegRAG compliance service",
		Long:          "regragctl ingests regulatory documents and queries a running regrag server for answers, conflicts and trends.",
		Version:       app.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return opts.validate()
		},
	}

	fs := cmd.PersistentFlags()
	fs.StringVar(&opts.Server, "server", opts.Server, "Base URL of the regrag server.")
	fs.StringVarP(&opts.Output, "output", "o", opts.Output, "Output format: text or json.")
	fs.DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Request timeout.")

	cmd.AddCommand(
		newIngestCommand(opts),
		newQueryCommand(opts),
		newConflictsCommand(opts),
		newTrendsCommand(opts),
	)
	return cmd
}

func newIngestCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ingest <path|s3://bucket/prefix>",
		Short: "Ingest a file, a directory or an S3 prefix",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := post[*biz.IngestReport](commandContext(cmd), opts.client(), "/ingest", handler.IngestRequest{Path: args[0]})
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.Output, report, func(w io.Writer) { renderIngest(w, report) })
		},
	}
}

func newQueryCommand(opts *globalOptions) *cobra.Command {
	var (
		jurisdictions []string
		topK          int
		analyze       bool
	)

	cmd := &cobra.Command{
		Use:   "query <text>",
		Short: "Ask a compliance question across jurisdictions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := handler.QueryRequest{
				Text:          strings.Join(args, " "),
				Jurisdictions: jurisdictions,
				TopK:          topK,
				Analyze:       analyze,
			}
			resp, err := post[*model.StructuredResponse](commandContext(cmd), opts.client(), "/query", req)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.Output, resp, func(w io.Writer) { renderQuery(w, resp) })
		},
	}

	cmd.Flags().StringSliceVarP(&jurisdictions, "jurisdiction", "j", nil, "Restrict retrieval to these jurisdictions (US, EU, BR).")
	cmd.Flags().IntVar(&topK, "top-k", 0, "Number of chunks to retrieve (server default when 0).")
	cmd.Flags().BoolVar(&analyze, "analyze", false, "Run conflict analysis even for a single jurisdiction.")
	return cmd
}

func newConflictsCommand(opts *globalOptions) *cobra.Command {
	var req handler.ConflictsRequest

	cmd := &cobra.Command{
		Use:   "conflicts",
		Short: "Detect regulatory conflicts between jurisdictions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := post[*model.ConflictReport](commandContext(cmd), opts.client(), "/conflicts", req)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.Output, report, func(w io.Writer) { renderConflicts(w, report) })
		},
	}

	cmd.Flags().StringVar(&req.Topic, "topic", "", "Only analyze this taxonomy topic.")
	cmd.Flags().StringSliceVarP(&req.Jurisdictions, "jurisdiction", "j", nil, "Jurisdictions to compare.")
	return cmd
}

func newTrendsCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "trends",
		Short: "Summarize regulatory trends by era",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			report, err := get[*model.TrendReport](commandContext(cmd), opts.client(), "/trends", nil)
			if err != nil {
				return err
			}
			return emit(cmd.OutOrStdout(), opts.Output, report, func(w io.Writer) { renderTrends(w, report) })
		},
	}
}

// commandContext 返回命令上下文，未设置时回退到 Background。
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
