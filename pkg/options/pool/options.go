// Package poolopts provides worker pool options.
package poolopts

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Options ants 池的行为配置，容量由 compliance.ingest-workers 与 compliance.indexer.max-concurrency 决定。
type Options struct {
	ExpiryDuration   time.Duration `json:"expiry-duration" mapstructure:"expiry-duration"`
	PreAlloc         bool          `json:"pre-alloc" mapstructure:"pre-alloc"`
	Nonblocking      bool          `json:"nonblocking" mapstructure:"nonblocking"`
	MaxBlockingTasks int           `json:"max-blocking-tasks" mapstructure:"max-blocking-tasks"`
	// ShutdownTimeout 退出时等待在途任务的时间
	ShutdownTimeout time.Duration `json:"shutdown-timeout" mapstructure:"shutdown-timeout"`
}

// NewOptions creates default pool options.
func NewOptions() *Options {
	return &Options{
		ExpiryDuration:  10 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// AddFlags adds flags for pool options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "pool."
	fs.DurationVar(&o.ExpiryDuration, p+"expiry-duration", o.ExpiryDuration, "Idle worker expiry")
	fs.BoolVar(&o.PreAlloc, p+"pre-alloc", o.PreAlloc, "Pre-allocate worker queues")
	fs.BoolVar(&o.Nonblocking, p+"nonblocking", o.Nonblocking, "Fail task submission instead of waiting when a pool is full")
	fs.IntVar(&o.MaxBlockingTasks, p+"max-blocking-tasks", o.MaxBlockingTasks, "Maximum tasks waiting for a worker (0 = unlimited)")
	fs.DurationVar(&o.ShutdownTimeout, p+"shutdown-timeout", o.ShutdownTimeout, "Time to wait for in-flight tasks on shutdown")
}

// Validate validates the pool options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	if o.MaxBlockingTasks < 0 {
		errs = append(errs, fmt.Errorf("pool.max-blocking-tasks cannot be negative"))
	}
	return errs
}

// Complete fills in defaults.
func (o *Options) Complete() error {
	if o.ExpiryDuration <= 0 {
		o.ExpiryDuration = 10 * time.Second
	}
	if o.ShutdownTimeout <= 0 {
		o.ShutdownTimeout = 30 * time.Second
	}
	return nil
}
