package biz

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

// LLMRecorder 记录 LLM 调用指标。
type LLMRecorder interface {
	RecordLLMCall(duration time.Duration, promptTokens, completionTokens int, err error)
}

var errNoChatProvider = fmt.Errorf("no chat provider configured")

// llmCaller 带超时和指标的单轮调用。
type llmCaller struct {
	chat     llm.ChatProvider
	timeout  time.Duration
	recorder LLMRecorder
}

func (c *llmCaller) text(ctx context.Context, prompt, systemPrompt string) (string, error) {
	if c.chat == nil {
		return "", errNoChatProvider
	}

	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.chat.Generate(cctx, prompt, systemPrompt)
	if c.recorder != nil {
		var promptTokens, completionTokens int
		if resp != nil && resp.TokenUsage != nil {
			promptTokens = resp.TokenUsage.PromptTokens
			completionTokens = resp.TokenUsage.CompletionTokens
		}
		c.recorder.RecordLLMCall(time.Since(start), promptTokens, completionTokens, err)
	}
	if err != nil {
		return "", err
	}
	if resp == nil {
		return "", fmt.Errorf("chat provider returned no response")
	}
	return resp.Content, nil
}

func (c *llmCaller) json(ctx context.Context, prompt, systemPrompt string, out any) error {
	content, err := c.text(ctx, prompt, systemPrompt)
	if err != nil {
		return err
	}
	return parseLLMJSON(content, out)
}

// parseLLMJSON 去掉代码围栏，截取第一个 '{' 到最后一个 '}' 之间的内容再解码。
func parseLLMJSON(content string, out any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "```")
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("llm output contains no JSON object")
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), out); err != nil {
		return fmt.Errorf("llm output is not valid JSON: %w", err)
	}
	return nil
}
