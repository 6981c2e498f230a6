package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	options "github.com/gregorizeidler-cw/RegRAG/pkg/options/redis"
)

func TestNewRejectsInvalidOptions(t *testing.T) {
	_, err := New(context.Background(), nil)
	assert.Error(t, err)

	opts := options.NewOptions()
	opts.Port = 0
	_, err = New(context.Background(), opts)
	assert.ErrorContains(t, err, "invalid redis options")
}

func TestNewUnreachable(t *testing.T) {
	opts := options.NewOptions()
	opts.Host = "127.0.0.1"
	opts.Port = 1
	opts.DialTimeout = 200 * time.Millisecond
	opts.MaxRetries = -1

	_, err := New(context.Background(), opts)
	assert.ErrorContains(t, err, "failed to connect to redis")
}
