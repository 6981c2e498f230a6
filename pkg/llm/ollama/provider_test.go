package ollama

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/pkg/llm"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		switch r.URL.Path {
		case "/api/embed":
			var req embedRequest
			require.NoError(t, json.Unmarshal(body, &req))
			out := embedResponse{}
			for range req.Input {
				out.Embeddings = append(out.Embeddings, []float32{0.1, 0.2})
			}
			data, _ := json.Marshal(out)
			_, _ = w.Write(data)
		case "/api/generate":
			var req generateRequest
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "json", req.Format)
			assert.Equal(t, "sys", req.System)
			_, _ = w.Write([]byte(`{"response":"{\"a\":1}","prompt_eval_count":10,"eval_count":5}`))
		case "/api/chat":
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"hi"}}`))
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[{"name":"nomic-embed-text"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
}

func TestProviderRoundTrips(t *testing.T) {
	srv := newTestServer(t)
	defer srv.Close()

	p, err := llm.NewProvider(ProviderName, map[string]any{"base_url": srv.URL + "/"})
	require.NoError(t, err)
	ctx := context.Background()

	vecs, err := p.Embed(ctx, []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Len(t, vecs, 3)

	resp, err := p.Generate(ctx, "prompt", "sys")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, resp.Content)
	assert.Equal(t, 15, resp.TokenUsage.TotalTokens)

	reply, err := p.Chat(ctx, []llm.Message{{Role: llm.RoleUser, Content: "hello"}})
	require.NoError(t, err)
	assert.Equal(t, "hi", reply)

	models, err := p.(*Provider).ListModels(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"nomic-embed-text"}, models)
}

func TestEmbedEmptyInput(t *testing.T) {
	p := NewProviderWithConfig(DefaultConfig())
	vecs, err := p.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vecs)
}
