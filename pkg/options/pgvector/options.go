// Package pgvectoropts provides options for the pgvector store.
package pgvectoropts

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options pgvector 连接配置。
type Options struct {
	// DSN postgres 连接串，为空时读取 PGVECTOR_DSN。
	DSN      string `json:"-" mapstructure:"dsn"`
	Table    string `json:"table" mapstructure:"table"`
	MaxConns int32  `json:"max-conns" mapstructure:"max-conns"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Table:    "regrag_chunks",
		MaxConns: 10,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pgvector."
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Postgres DSN for the pgvector store (prefer PGVECTOR_DSN).")
	fs.StringVar(&o.Table, p+"table", o.Table, "Table holding chunk vectors.")
	fs.Int32Var(&o.MaxConns, p+"max-conns", o.MaxConns, "Maximum pool connections.")
}

// Complete reads the DSN from the environment when unset.
func (o *Options) Complete() error {
	if o.DSN == "" {
		o.DSN = os.Getenv("PGVECTOR_DSN")
	}
	return nil
}

// Validate validates the options. DSN 只在选中 pgvector 后端时检查。
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.Table == "" {
		errs = append(errs, fmt.Errorf("pgvector table is required"))
	}
	if o.MaxConns <= 0 {
		errs = append(errs, fmt.Errorf("pgvector max-conns must be positive"))
	}
	return errs
}
