package resilience

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/httpclient"
)

var errUpstream = &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable, Body: "down"}

func fastRetry(attempts int) *RetryConfig {
	return &RetryConfig{MaxAttempts: attempts, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, Multiplier: 1}
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker("test", &BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute, HalfOpenMaxCalls: 1})
	b.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		assert.Error(t, b.Execute(func() error { return errUpstream }))
	}
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Execute(func() error { return nil }), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	now := time.Unix(0, 0)
	b := NewBreaker("test", &BreakerConfig{MaxFailures: 1, OpenTimeout: time.Second, HalfOpenMaxCalls: 1})
	b.now = func() time.Time { return now }

	_ = b.Execute(func() error { return errUpstream })
	now = now.Add(2 * time.Second)
	_ = b.Execute(func() error { return errUpstream })
	assert.Equal(t, StateOpen, b.State())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestRetryStopsOnNonRetryable(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(5), func() error {
		calls++
		return &httpclient.StatusError{StatusCode: http.StatusBadRequest}
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryExhausts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastRetry(3), func() error {
		calls++
		return errUpstream
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, errUpstream)
}

func TestIsRetryableError(t *testing.T) {
	assert.False(t, IsRetryableError(nil))
	assert.False(t, IsRetryableError(context.Canceled))
	assert.False(t, IsRetryableError(ErrCircuitOpen))
	assert.False(t, IsRetryableError(errors.New("bad prompt")))
	assert.True(t, IsRetryableError(errUpstream))
	assert.True(t, IsRetryableError(&httpclient.StatusError{StatusCode: http.StatusTooManyRequests}))
}

type flakyProvider struct {
	failures int
	calls    int
}

func (f *flakyProvider) Name() string { return "flaky" }

func (f *flakyProvider) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errUpstream
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1}
	}
	return out, nil
}

func (f *flakyProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	v, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return v[0], nil
}

func (f *flakyProvider) Chat(context.Context, []llm.Message) (string, error) {
	f.calls++
	return "", errUpstream
}

func (f *flakyProvider) Generate(context.Context, string, string) (*llm.GenerateResponse, error) {
	f.calls++
	return nil, errUpstream
}

func TestWrapRetriesEmbeddings(t *testing.T) {
	inner := &flakyProvider{failures: 2}
	p := Wrap(inner, fastRetry(3), nil)

	vecs, err := p.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, 3, inner.calls)
	assert.Equal(t, "flaky", p.Name())
}

func TestWrapLimitsChatAttempts(t *testing.T) {
	inner := &flakyProvider{}
	p := Wrap(inner, fastRetry(5), nil)

	_, err := p.Generate(context.Background(), "q", "")
	require.Error(t, err)
	assert.Equal(t, 2, inner.calls)

	stats := p.Stats()
	assert.Contains(t, stats, "chat")
	assert.Contains(t, stats, "embedding")
}
