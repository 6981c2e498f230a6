// Package gemini 基于 generative-ai-go SDK 提供 Google Gemini 供应商。
package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
)

const ProviderName = "gemini"

// maxBatchSize BatchEmbedContents 单次请求上限。
const maxBatchSize = 100

func init() {
	llm.RegisterProvider(ProviderName, NewProvider)
}

// Config Gemini 供应商配置。
type Config struct {
	APIKey      string
	EmbedModel  string
	ChatModel   string
	Temperature float32
	MaxTokens   int32
	JSONMode    bool
	Timeout     time.Duration
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		EmbedModel:  "text-embedding-004",
		ChatModel:   "gemini-1.5-flash",
		Temperature: 0.1,
		MaxTokens:   2048,
		JSONMode:    true,
		Timeout:     60 * time.Second,
	}
}

// Provider Gemini 供应商实现。
type Provider struct {
	config *Config
	client *genai.Client
}

// NewProvider 从配置 map 创建供应商，api_key 必填。
func NewProvider(configMap map[string]any) (llm.Provider, error) {
	def := DefaultConfig()
	cfg := &Config{
		APIKey:      llm.ConfigString(configMap, "api_key", ""),
		EmbedModel:  llm.ConfigString(configMap, "embed_model", def.EmbedModel),
		ChatModel:   llm.ConfigString(configMap, "chat_model", def.ChatModel),
		Temperature: float32(llm.ConfigFloat(configMap, "temperature", float64(def.Temperature))),
		MaxTokens:   int32(llm.ConfigInt(configMap, "max_tokens", int(def.MaxTokens))),
		JSONMode:    llm.ConfigBool(configMap, "json_mode", def.JSONMode),
		Timeout:     llm.ConfigDuration(configMap, "timeout", def.Timeout),
	}
	return NewProviderWithConfig(context.Background(), cfg)
}

// NewProviderWithConfig 创建 genai 客户端。
func NewProviderWithConfig(ctx context.Context, cfg *Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini 供应商缺少 api_key")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("创建 gemini 客户端失败: %w", err)
	}
	return &Provider{config: cfg, client: client}, nil
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Close 关闭底层客户端。
func (p *Provider) Close() error {
	return p.client.Close()
}

func (p *Provider) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if p.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, p.config.Timeout)
}

// Embed 使用 BatchEmbedContents 分批生成向量。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	em := p.client.EmbeddingModel(p.config.EmbedModel)
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxBatchSize {
		end := start + maxBatchSize
		if end > len(texts) {
			end = len(texts)
		}

		batch := em.NewBatch()
		for _, t := range texts[start:end] {
			batch.AddContent(genai.Text(t))
		}
		res, err := em.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("gemini 批量 embedding 失败: %w", err)
		}
		if len(res.Embeddings) != end-start {
			return nil, fmt.Errorf("gemini embedding 返回数量不匹配: 期望 %d, 实际 %d", end-start, len(res.Embeddings))
		}
		for _, e := range res.Embeddings {
			out = append(out, e.Values)
		}
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	res, err := p.client.EmbeddingModel(p.config.EmbedModel).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embedding 失败: %w", err)
	}
	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("gemini 未返回 embedding")
	}
	return res.Embedding.Values, nil
}

func (p *Provider) model(systemPrompt string, jsonMode bool) *genai.GenerativeModel {
	model := p.client.GenerativeModel(p.config.ChatModel)
	temp := p.config.Temperature
	maxTokens := p.config.MaxTokens
	model.GenerationConfig = genai.GenerationConfig{
		Temperature:     &temp,
		MaxOutputTokens: &maxTokens,
	}
	if jsonMode {
		model.ResponseMIMEType = "application/json"
	}
	if systemPrompt != "" {
		model.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(systemPrompt)}}
	}
	return model
}

// Chat 进行多轮对话，最后一条消息必须来自用户。
func (p *Provider) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	if len(messages) == 0 {
		return "", fmt.Errorf("gemini chat 消息为空")
	}
	last := messages[len(messages)-1]
	if last.Role != llm.RoleUser {
		return "", fmt.Errorf("gemini chat 最后一条消息必须来自 user")
	}

	var system []string
	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case llm.RoleSystem:
			system = append(system, m.Content)
		case llm.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		default:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}

	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	cs := p.model(strings.Join(system, "\n"), false).StartChat()
	cs.History = history
	resp, err := cs.SendMessage(ctx, genai.Text(last.Content))
	if err != nil {
		return "", fmt.Errorf("gemini chat 失败: %w", err)
	}
	return responseText(resp)
}

// Generate 单轮生成。
func (p *Provider) Generate(ctx context.Context, prompt string, systemPrompt string) (*llm.GenerateResponse, error) {
	ctx, cancel := p.withTimeout(ctx)
	defer cancel()

	resp, err := p.model(systemPrompt, p.config.JSONMode).GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate 失败: %w", err)
	}
	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	out := &llm.GenerateResponse{Content: text}
	if u := resp.UsageMetadata; u != nil {
		out.TokenUsage = &llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("gemini 返回为空")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini 未返回文本内容")
	}
	return sb.String(), nil
}

var _ llm.Provider = (*Provider)(nil)
