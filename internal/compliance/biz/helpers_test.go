package biz

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/taxonomy"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	compopts "github.com/gregorizeidler-cw/RegRAG/pkg/options/compliance"
)

func testTaxonomy(t *testing.T) *taxonomy.Taxonomy {
	t.Helper()
	tax := taxonomy.Default()
	require.NotNil(t, tax)
	return tax
}

func testOptions() *compopts.Options {
	return compopts.NewOptions()
}

// fakeEmbedder 按关键词生成确定性向量，便于控制相似度。
type fakeEmbedder struct {
	dim     int
	vectors map[string][]float32
	err     error
	failOn  string
	calls   atomic.Int32
}

func newFakeEmbedder(dim int) *fakeEmbedder {
	return &fakeEmbedder{dim: dim, vectors: make(map[string][]float32)}
}

func (f *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if f.failOn != "" && strings.Contains(t, f.failOn) {
			return nil, context.DeadlineExceeded
		}
		out[i] = f.vector(t)
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	vecs, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) vector(text string) []float32 {
	if v, ok := f.vectors[text]; ok {
		return v
	}
	v := make([]float32, f.dim)
	v[0] = 1
	return v
}

// fakeChat 按提示词中的标记返回预置回复。
type fakeChat struct {
	mu      sync.Mutex
	replies map[string]string
	def     string
	err     error
	prompts []string
}

func (f *fakeChat) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	resp, err := f.Generate(ctx, messages[len(messages)-1].Content, "")
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (f *fakeChat) Generate(_ context.Context, prompt, _ string) (*llm.GenerateResponse, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	for marker, reply := range f.replies {
		if strings.Contains(prompt, marker) {
			return &llm.GenerateResponse{Content: reply, TokenUsage: &llm.TokenUsage{PromptTokens: 10, CompletionTokens: 5}}, nil
		}
	}
	return &llm.GenerateResponse{Content: f.def}, nil
}

func (f *fakeChat) Name() string { return "fake" }

func (f *fakeChat) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

func evidence(j model.Jurisdiction, docID string, seq int, score float64, text string) model.RetrievedEvidence {
	return model.RetrievedEvidence{
		Chunk: model.Chunk{
			ID:            model.ChunkID(docID, seq),
			DocumentID:    docID,
			SequenceIndex: seq,
			Text:          text,
			Jurisdiction:  j,
		},
		SourceFilename: docID + ".txt",
		Score:          score,
	}
}
