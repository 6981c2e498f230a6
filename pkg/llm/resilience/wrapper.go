package resilience

import (
	"context"
	"errors"
	"io"
	"net"

	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/httpclient"
)

// Provider 给 llm.Provider 的 Embedding 与 Chat 各配一个熔断器。
// 二者分开计数，生成模型故障不会阻断检索。
type Provider struct {
	inner      llm.Provider
	embedRetry *RetryConfig
	chatRetry  *RetryConfig
	embedCB    *Breaker
	chatCB     *Breaker
}

// Wrap 用重试与熔断包装 p。chat 调用只尝试一次重试以免拖长查询。
func Wrap(p llm.Provider, retry *RetryConfig, breaker *BreakerConfig) *Provider {
	if retry == nil {
		retry = DefaultRetryConfig()
	}
	chatRetry := *retry
	if chatRetry.MaxAttempts > 2 {
		chatRetry.MaxAttempts = 2
	}
	return &Provider{
		inner:      p,
		embedRetry: retry,
		chatRetry:  &chatRetry,
		embedCB:    NewBreaker(p.Name()+"-embed", breaker),
		chatCB:     NewBreaker(p.Name()+"-chat", breaker),
	}
}

// Embed 实现 llm.EmbeddingProvider。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return Do(ctx, p.embedRetry, p.embedCB, func(ctx context.Context) ([][]float32, error) {
		return p.inner.Embed(ctx, texts)
	})
}

// EmbedSingle 实现 llm.EmbeddingProvider。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	return Do(ctx, p.embedRetry, p.embedCB, func(ctx context.Context) ([]float32, error) {
		return p.inner.EmbedSingle(ctx, text)
	})
}

// Chat 实现 llm.ChatProvider。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	return Do(ctx, p.chatRetry, p.chatCB, func(ctx context.Context) (string, error) {
		return p.inner.Chat(ctx, messages)
	})
}

// Generate 实现 llm.ChatProvider。
func (p *Provider) Generate(ctx context.Context, prompt, systemPrompt string) (*llm.GenerateResponse, error) {
	return Do(ctx, p.chatRetry, p.chatCB, func(ctx context.Context) (*llm.GenerateResponse, error) {
		return p.inner.Generate(ctx, prompt, systemPrompt)
	})
}

// Name 返回底层供应商名称。
func (p *Provider) Name() string {
	return p.inner.Name()
}

// Stats 返回两个熔断器的状态。
func (p *Provider) Stats() map[string]interface{} {
	return map[string]interface{}{
		"embedding": p.embedCB.Stats(),
		"chat":      p.chatCB.Stats(),
	}
}

var _ llm.Provider = (*Provider)(nil)

// IsRetryableError 网络错误、429/408/5xx 可重试；取消、超时与熔断不重试。
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCircuitOpen) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)
}
