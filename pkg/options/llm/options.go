// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/gregorizeidler-cw/RegRAG/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// ProviderOptions 定义单个 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（ollama, openai, gemini）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，gemini 忽略。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥。
	APIKey string `json:"-" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries HTTP 层最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// Organization 组织 ID（OpenAI 可选）。
	Organization string `json:"organization" mapstructure:"organization"`

	Temperature float64 `json:"temperature" mapstructure:"temperature"`
	MaxTokens   int     `json:"max-tokens" mapstructure:"max-tokens"`

	// Dimensions 请求的向量维度，仅 openai embedding 支持。
	Dimensions int `json:"dimensions" mapstructure:"dimensions"`

	name string
}

func newProviderOptions(name, model string) *ProviderOptions {
	return &ProviderOptions{
		Provider:    "ollama",
		BaseURL:     "http://localhost:11434",
		Model:       model,
		Timeout:     120 * time.Second,
		MaxRetries:  2,
		Temperature: 0.1,
		MaxTokens:   2048,
		name:        name,
	}
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	o := newProviderOptions("embedding", "nomic-embed-text")
	o.Timeout = 30 * time.Second
	return o
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return newProviderOptions("chat", "qwen2.5:7b")
}

// ToConfigMap 转换为供应商工厂使用的配置 map。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	m := map[string]any{
		"base_url":     o.BaseURL,
		"api_key":      o.APIKey,
		"timeout":      o.Timeout,
		"max_retries":  o.MaxRetries,
		"organization": o.Organization,
		"temperature":  o.Temperature,
		"max_tokens":   o.MaxTokens,
		"json_mode":    true,
	}
	if o.name == "embedding" {
		m["embed_model"] = o.Model
		if o.Dimensions > 0 {
			m["dimensions"] = o.Dimensions
		}
	} else {
		m["chat_model"] = o.Model
	}
	return m
}

// AddFlags adds flags for one provider.
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + o.name + "."
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "Provider name (ollama, openai, gemini).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "Provider API base URL.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "Provider API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "Model name.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "Request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "Maximum HTTP retries.")
	fs.StringVar(&o.Organization, p+"organization", o.Organization, "Organization ID (openai, optional).")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum completion tokens.")
	fs.IntVar(&o.Dimensions, p+"dimensions", o.Dimensions, "Requested embedding dimensions (openai only).")
}

// Validate validates the provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	switch o.Provider {
	case "ollama", "openai":
		if o.BaseURL == "" {
			errs = append(errs, fmt.Errorf("%s.base-url is required", o.name))
		}
	case "gemini":
	default:
		errs = append(errs, fmt.Errorf("%s.provider %q is not supported", o.name, o.Provider))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("%s.model is required", o.name))
	}
	if (o.Provider == "openai" || o.Provider == "gemini") && o.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s.api-key is required for %s", o.name, o.Provider))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("%s.timeout must be positive", o.name))
	}
	return errs
}

// Complete 未配置 api key 时按供应商读取环境变量。
func (o *ProviderOptions) Complete() error {
	if o.APIKey != "" {
		return nil
	}
	switch o.Provider {
	case "openai":
		o.APIKey = os.Getenv("OPENAI_API_KEY")
	case "gemini":
		o.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	return nil
}

// ResilienceOptions 重试与熔断配置。
type ResilienceOptions struct {
	MaxAttempts      int           `json:"max-attempts" mapstructure:"max-attempts"`
	InitialDelay     time.Duration `json:"initial-delay" mapstructure:"initial-delay"`
	MaxDelay         time.Duration `json:"max-delay" mapstructure:"max-delay"`
	BreakerFailures  int           `json:"breaker-failures" mapstructure:"breaker-failures"`
	BreakerOpenAfter time.Duration `json:"breaker-open-timeout" mapstructure:"breaker-open-timeout"`
}

// Options LLM 配置：embedding 与 chat 可来自不同供应商。
type Options struct {
	Embedding  *ProviderOptions   `json:"embedding" mapstructure:"embedding"`
	Chat       *ProviderOptions   `json:"chat" mapstructure:"chat"`
	Resilience *ResilienceOptions `json:"resilience" mapstructure:"resilience"`
}

// NewOptions creates default LLM options.
func NewOptions() *Options {
	return &Options{
		Embedding: NewEmbeddingOptions(),
		Chat:      NewChatOptions(),
		Resilience: &ResilienceOptions{
			MaxAttempts:      3,
			InitialDelay:     500 * time.Millisecond,
			MaxDelay:         8 * time.Second,
			BreakerFailures:  5,
			BreakerOpenAfter: 30 * time.Second,
		},
	}
}

// AddFlags adds flags for LLM options.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := append(append([]string{}, prefixes...), "llm")
	o.Embedding.name = "embedding"
	o.Chat.name = "chat"
	o.Embedding.AddFlags(fs, p...)
	o.Chat.AddFlags(fs, p...)

	r := options.Join(p...) + "resilience."
	fs.IntVar(&o.Resilience.MaxAttempts, r+"max-attempts", o.Resilience.MaxAttempts, "Maximum attempts per provider call.")
	fs.DurationVar(&o.Resilience.InitialDelay, r+"initial-delay", o.Resilience.InitialDelay, "Initial retry backoff.")
	fs.DurationVar(&o.Resilience.MaxDelay, r+"max-delay", o.Resilience.MaxDelay, "Maximum retry backoff.")
	fs.IntVar(&o.Resilience.BreakerFailures, r+"breaker-failures", o.Resilience.BreakerFailures, "Consecutive failures before the circuit opens.")
	fs.DurationVar(&o.Resilience.BreakerOpenAfter, r+"breaker-open-timeout", o.Resilience.BreakerOpenAfter, "Time the circuit stays open before probing.")
}

// Validate validates LLM options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error
	errs = append(errs, o.Embedding.Validate()...)
	errs = append(errs, o.Chat.Validate()...)
	if o.Resilience != nil && o.Resilience.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("llm.resilience.max-attempts must be at least 1"))
	}
	return errs
}

// Complete completes both provider options.
func (o *Options) Complete() error {
	o.Embedding.name = "embedding"
	o.Chat.name = "chat"
	if err := o.Embedding.Complete(); err != nil {
		return err
	}
	return o.Chat.Complete()
}
