// Package storageopts provides options for the S3 document source.
package storageopts

import (
	"fmt"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options S3 兼容对象存储配置。
type Options struct {
	// Enabled 是否允许 s3:// 摄取路径。
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	Region string `json:"region" mapstructure:"region"`

	// Endpoint 自定义端点 (MinIO 等)，为空时使用 AWS 默认端点。
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	AccessKey string `json:"-" mapstructure:"access-key"`
	SecretKey string `json:"-" mapstructure:"secret-key"`

	UsePathStyle bool `json:"use-path-style" mapstructure:"use-path-style"`

	// MaxObjectSize 单个对象大小上限 (字节)。
	MaxObjectSize int64 `json:"max-object-size" mapstructure:"max-object-size"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Region:        "us-east-1",
		MaxObjectSize: 32 << 20,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "storage."
	fs.BoolVar(&o.Enabled, p+"enabled", o.Enabled, "Enable ingestion from s3:// paths.")
	fs.StringVar(&o.Region, p+"region", o.Region, "S3 region.")
	fs.StringVar(&o.Endpoint, p+"endpoint", o.Endpoint, "Custom S3 endpoint, e.g. a MinIO address.")
	fs.StringVar(&o.AccessKey, p+"access-key", o.AccessKey, "S3 access key. Empty uses the default credential chain.")
	fs.StringVar(&o.SecretKey, p+"secret-key", o.SecretKey, "S3 secret key.")
	fs.BoolVar(&o.UsePathStyle, p+"use-path-style", o.UsePathStyle, "Use path-style bucket addressing.")
	fs.Int64Var(&o.MaxObjectSize, p+"max-object-size", o.MaxObjectSize, "Maximum object size in bytes.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil || !o.Enabled {
		return nil
	}

	var errs []error
	if o.Region == "" {
		errs = append(errs, fmt.Errorf("storage region is required"))
	}
	if (o.AccessKey == "") != (o.SecretKey == "") {
		errs = append(errs, fmt.Errorf("storage access-key and secret-key must be set together"))
	}
	if o.MaxObjectSize < 0 {
		errs = append(errs, fmt.Errorf("storage max-object-size must not be negative"))
	}
	return errs
}
