package compliancesvc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/pool"
	"github.com/gregorizeidler-cw/RegRAG/pkg/infra/server"
	httpopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/http"
)

func TestPoolRunnerDrainsPoolsOnStop(t *testing.T) {
	pools := pool.NewManager()
	p, err := pools.Register(pool.IngestPool, pool.DefaultConfig(1))
	require.NoError(t, err)

	var r server.Runnable = &poolRunner{pools: pools, timeout: time.Second}
	assert.Equal(t, "worker-pools", r.Name())

	opts := httpopts.NewOptions()
	opts.Addr = "127.0.0.1:0"
	m := server.NewManager(server.WithHTTPOptions(opts))
	m.AddServer(r)

	ctx := context.Background()
	require.NoError(t, m.Start(ctx))
	require.NoError(t, p.Submit(func() {}))
	require.NoError(t, m.Stop(ctx))

	assert.ErrorIs(t, p.Submit(func() {}), pool.ErrPoolClosed)
}
