// Package cache provides cache configuration options.
package cache

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
	redisopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/redis"
)

var _ options.IOptions = (*Options)(nil)

// Options 查询缓存与 embedding 缓存配置，两者共用一个 Redis 连接。
type Options struct {
	// Enabled 是否启用查询缓存。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// TTL 查询缓存过期时间。
	TTL time.Duration `json:"ttl" mapstructure:"ttl"`

	// KeyPrefix 查询缓存键前缀。
	KeyPrefix string `json:"key-prefix" mapstructure:"key-prefix"`

	// EmbeddingEnabled 是否缓存 embedding 结果。
	EmbeddingEnabled bool `json:"embedding-enabled" mapstructure:"embedding-enabled"`

	// EmbeddingTTL embedding 缓存过期时间。
	EmbeddingTTL time.Duration `json:"embedding-ttl" mapstructure:"embedding-ttl"`

	// Redis Redis 连接配置。
	Redis *redisopts.Options `json:"redis" mapstructure:"redis"`
}

// NewOptions 创建默认缓存配置。
func NewOptions() *Options {
	return &Options{
		TTL:          1 * time.Hour,
		KeyPrefix:    "regrag:query:",
		EmbeddingTTL: 7 * 24 * time.Hour,
		Redis:        redisopts.NewOptions(),
	}
}

// Active 是否需要 Redis 连接。
func (o *Options) Active() bool {
	return o != nil && (o.Enabled || o.EmbeddingEnabled)
}

// AddFlags adds flags for cache options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "cache."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable the query result cache.")
	fs.DurationVar(&o.TTL, p+"ttl", o.TTL, "Query cache TTL.")
	fs.StringVar(&o.KeyPrefix, p+"key-prefix", o.KeyPrefix, "Query cache key prefix.")
	fs.BoolVar(&o.EmbeddingEnabled, p+"embedding-enabled", o.EmbeddingEnabled, "Cache embeddings in redis.")
	fs.DurationVar(&o.EmbeddingTTL, p+"embedding-ttl", o.EmbeddingTTL, "Embedding cache TTL.")

	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	o.Redis.AddFlags(fs, append(append([]string{}, prefixes...), "cache")...)
}

// Validate validates the cache options.
func (o *Options) Validate() []error {
	if !o.Active() {
		return nil
	}

	var errs []error
	if o.TTL <= 0 || o.EmbeddingTTL <= 0 {
		errs = append(errs, fmt.Errorf("cache ttl values must be positive"))
	}
	if o.Redis == nil {
		return append(errs, fmt.Errorf("cache requires redis options"))
	}
	return append(errs, o.Redis.Validate()...)
}

// Complete completes the cache options with defaults.
func (o *Options) Complete() error {
	if o.Redis == nil {
		o.Redis = redisopts.NewOptions()
	}
	return o.Redis.Complete()
}
