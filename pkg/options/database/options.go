// Package database 提供关系库（文档元数据）连接配置。
package database

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// 支持的驱动。sqlite 为纯 Go 实现，sqlite3 走 cgo。
const (
	DriverSQLite   = "sqlite"
	DriverSQLite3  = "sqlite3"
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
)

// Options 关系库配置。
type Options struct {
	Driver                string        `json:"driver" mapstructure:"driver"`
	DSN                   string        `json:"-" mapstructure:"dsn"`
	MaxIdleConnections    int           `json:"max-idle-connections" mapstructure:"max-idle-connections"`
	MaxOpenConnections    int           `json:"max-open-connections" mapstructure:"max-open-connections"`
	MaxConnectionLifeTime time.Duration `json:"max-connection-life-time" mapstructure:"max-connection-life-time"`
	// LogLevel silent/error/warn/info
	LogLevel      string        `json:"log-level" mapstructure:"log-level"`
	SlowThreshold time.Duration `json:"slow-threshold" mapstructure:"slow-threshold"`
	AutoMigrate   bool          `json:"auto-migrate" mapstructure:"auto-migrate"`
}

// NewOptions 默认使用本地 sqlite 文件。
func NewOptions() *Options {
	return &Options{
		Driver:                DriverSQLite,
		DSN:                   "regrag.db",
		MaxIdleConnections:    4,
		MaxOpenConnections:    16,
		MaxConnectionLifeTime: 30 * time.Minute,
		LogLevel:              "warn",
		SlowThreshold:         200 * time.Millisecond,
		AutoMigrate:           true,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "database."
	fs.StringVar(&o.Driver, p+"driver", o.Driver, "Database driver: sqlite, sqlite3, postgres or mysql.")
	fs.StringVar(&o.DSN, p+"dsn", o.DSN, "Database DSN (file path for sqlite).")
	fs.IntVar(&o.MaxIdleConnections, p+"max-idle-connections", o.MaxIdleConnections, "Maximum idle connections.")
	fs.IntVar(&o.MaxOpenConnections, p+"max-open-connections", o.MaxOpenConnections, "Maximum open connections.")
	fs.DurationVar(&o.MaxConnectionLifeTime, p+"max-connection-life-time", o.MaxConnectionLifeTime, "Maximum connection lifetime.")
	fs.StringVar(&o.LogLevel, p+"log-level", o.LogLevel, "SQL log level: silent, error, warn or info.")
	fs.DurationVar(&o.SlowThreshold, p+"slow-threshold", o.SlowThreshold, "Queries slower than this are logged as warnings.")
	fs.BoolVar(&o.AutoMigrate, p+"auto-migrate", o.AutoMigrate, "Create or update tables at startup.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	switch o.Driver {
	case DriverSQLite, DriverSQLite3, DriverPostgres, DriverMySQL:
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", o.Driver))
	}
	if o.DSN == "" {
		errs = append(errs, fmt.Errorf("database dsn is required"))
	}
	switch o.LogLevel {
	case "silent", "error", "warn", "info":
	default:
		errs = append(errs, fmt.Errorf("invalid database log level %q", o.LogLevel))
	}
	return errs
}
