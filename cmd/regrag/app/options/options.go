// Package options contains flags and options for initializing the RegRAG server.
package options

import (
	"fmt"

	utilerrors "k8s.io/apimachinery/pkg/util/errors"

	compliancesvc "github.com/gregorizeidler-cw/RegRAG/internal/compliance"
	"github.com/gregorizeidler-cw/RegRAG/pkg/app/cliflag"
	genericoptions "github.com/gregorizeidler-cw/RegRAG/pkg/options"
	cacheopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/cache"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
	dbopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/database"
	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
	llmopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/llm"
	logopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/logger"
	mwopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/middleware"
	milvusopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/milvus"
	pgvectoropts "github.com/gregorizeidler-cw/RegRAG/pkg/options/pgvector"
	poolopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/pool"
	storageopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/storage"
	tracingopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/tracing"
)

// ServerOptions contains the configuration for the RegRAG server.
// mapstructure 键与 flag 前缀一致，例如 --compliance.retriever.top-k 对应 compliance.retriever.top-k。
type ServerOptions struct {
	HTTPOptions       *httpopts.Options     `json:"http" mapstructure:"http"`
	MiddlewareOptions *mwopts.Options       `json:"middleware" mapstructure:"middleware"`
	LogOptions        *logopts.Options      `json:"log" mapstructure:"log"`
	ComplianceOptions *compopts.Options     `json:"compliance" mapstructure:"compliance"`
	LLMOptions        *llmopts.Options      `json:"llm" mapstructure:"llm"`
	DatabaseOptions   *dbopts.Options       `json:"database" mapstructure:"database"`
	MilvusOptions     *milvusopts.Options   `json:"milvus" mapstructure:"milvus"`
	PgVectorOptions   *pgvectoropts.Options `json:"pgvector" mapstructure:"pgvector"`
	CacheOptions      *cacheopts.Options    `json:"cache" mapstructure:"cache"`
	StorageOptions    *storageopts.Options  `json:"storage" mapstructure:"storage"`
	TracingOptions    *tracingopts.Options  `json:"tracing" mapstructure:"tracing"`
	PoolOptions       *poolopts.Options     `json:"pool" mapstructure:"pool"`
}

// NewServerOptions creates a ServerOptions instance with default values.
func NewServerOptions() *ServerOptions {
	return &ServerOptions{
		HTTPOptions:       httpopts.NewOptions(),
		MiddlewareOptions: mwopts.NewOptions(),
		LogOptions:        logopts.NewOptions(),
		ComplianceOptions: compopts.NewOptions(),
		LLMOptions:        llmopts.NewOptions(),
		DatabaseOptions:   dbopts.NewOptions(),
		MilvusOptions:     milvusopts.NewOptions(),
		PgVectorOptions:   pgvectoropts.NewOptions(),
		CacheOptions:      cacheopts.NewOptions(),
		StorageOptions:    storageopts.NewOptions(),
		TracingOptions:    tracingopts.NewOptions(),
		PoolOptions:       poolopts.NewOptions(),
	}
}

// Flags returns flags for a specific server by section name.
func (o *ServerOptions) Flags() (fss cliflag.NamedFlagSets) {
	o.HTTPOptions.AddFlags(fss.FlagSet("http"))
	o.MiddlewareOptions.AddFlags(fss.FlagSet("middleware"))
	o.LogOptions.AddFlags(fss.FlagSet("log"))
	o.ComplianceOptions.AddFlags(fss.FlagSet("compliance"))
	o.LLMOptions.AddFlags(fss.FlagSet("llm"))
	o.DatabaseOptions.AddFlags(fss.FlagSet("database"))
	o.MilvusOptions.AddFlags(fss.FlagSet("milvus"))
	o.PgVectorOptions.AddFlags(fss.FlagSet("pgvector"))
	o.CacheOptions.AddFlags(fss.FlagSet("cache"))
	o.StorageOptions.AddFlags(fss.FlagSet("storage"))
	o.TracingOptions.AddFlags(fss.FlagSet("tracing"))
	o.PoolOptions.AddFlags(fss.FlagSet("pool"))
	return fss
}

// Complete completes all the required options.
func (o *ServerOptions) Complete() error {
	if err := o.MiddlewareOptions.Complete(); err != nil {
		return fmt.Errorf("middleware: %w", err)
	}
	if err := o.LLMOptions.Complete(); err != nil {
		return fmt.Errorf("llm: %w", err)
	}
	if err := o.PgVectorOptions.Complete(); err != nil {
		return fmt.Errorf("pgvector: %w", err)
	}
	if err := o.CacheOptions.Complete(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := o.TracingOptions.Complete(); err != nil {
		return fmt.Errorf("tracing: %w", err)
	}
	if err := o.PoolOptions.Complete(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if o.TracingOptions.ServiceName == "" {
		o.TracingOptions.ServiceName = compliancesvc.Name
	}
	return nil
}

// Validate checks whether the options in ServerOptions are valid.
func (o *ServerOptions) Validate() error {
	errs := genericoptions.ValidateAll(
		o.HTTPOptions,
		o.MiddlewareOptions,
		o.LogOptions,
		o.ComplianceOptions,
		o.LLMOptions,
		o.DatabaseOptions,
		o.CacheOptions,
		o.StorageOptions,
		o.TracingOptions,
		o.PoolOptions,
	)

	// 只校验选中的向量库后端
	switch o.ComplianceOptions.VectorStore {
	case compopts.StoreMilvus:
		errs = append(errs, o.MilvusOptions.Validate()...)
	case compopts.StorePgVector:
		errs = append(errs, o.PgVectorOptions.Validate()...)
		if o.PgVectorOptions.DSN == "" {
			errs = append(errs, fmt.Errorf("pgvector.dsn (or PGVECTOR_DSN) is required when compliance.vector-store=pgvector"))
		}
	}

	return utilerrors.NewAggregate(errs)
}

// Config builds a compliancesvc.Config based on ServerOptions.
func (o *ServerOptions) Config() (*compliancesvc.Config, error) {
	return &compliancesvc.Config{
		HTTPOptions:       o.HTTPOptions,
		MiddlewareOptions: o.MiddlewareOptions,
		LogOptions:        o.LogOptions,
		ComplianceOptions: o.ComplianceOptions,
		LLMOptions:        o.LLMOptions,
		DatabaseOptions:   o.DatabaseOptions,
		MilvusOptions:     o.MilvusOptions,
		PgVectorOptions:   o.PgVectorOptions,
		CacheOptions:      o.CacheOptions,
		StorageOptions:    o.StorageOptions,
		TracingOptions:    o.TracingOptions,
		PoolOptions:       o.PoolOptions,
	}, nil
}
