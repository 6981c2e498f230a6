package app

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/response"
)

func newFakeServer(t *testing.T, routes map[string]http.HandlerFunc) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for pattern, h := range routes {
		mux.HandleFunc(pattern, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	b, _ := json.Marshal(v)
	_, _ = w.Write(b)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestQueryText(t *testing.T) {
	var got map[string]interface{}
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"POST " + apiPrefix + "/query": func(w http.ResponseWriter, r *http.Request) {
			b, _ := io.ReadAll(r.Body)
			_ = json.Unmarshal(b, &got)
			writeJSON(w, http.StatusOK, response.Success(&model.StructuredResponse{
				DirectAnswer:      "Banks must file a SAR within 30 days.",
				SynthesisStatus:   model.SynthesisSucceeded,
				OverallConfidence: 0.82,
				ConfidenceLevel:   model.ConfidenceHigh,
				JurisdictionBreakdowns: map[model.Jurisdiction]model.Breakdown{
					model.JurisdictionUS: {Summary: "FinCEN rules apply", KeyPoints: []string{"30 day deadline"}},
				},
				Citations: []model.Citation{{ChunkID: "c1", SourceFilename: "us_bsa.txt", Jurisdiction: model.JurisdictionUS, Confidence: 0.9}},
			}))
		},
	})

	out, err := run(t, "--server", srv.URL, "query", "When", "is", "a", "SAR", "due?", "-j", "US", "--top-k", "3")
	require.NoError(t, err)

	assert.Equal(t, "When is a SAR due?", got["text"])
	assert.Equal(t, []interface{}{"US"}, got["jurisdictions"])
	assert.Equal(t, float64(3), got["top_k"])

	assert.Contains(t, out, "Banks must file a SAR within 30 days.")
	assert.Contains(t, out, "succeeded")
	assert.Contains(t, out, "FinCEN rules apply")
	assert.Contains(t, out, "us_bsa.txt")
}

func TestTrendsJSON(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"GET " + apiPrefix + "/trends": func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, response.Success(&model.TrendReport{
				Buckets:   []model.TrendBucket{{Era: model.Era{Name: "post-2008", FromYear: 2008}, DocumentIDs: []string{"d1"}}},
				KeyTrends: []string{"more reporting"},
			}))
		},
	})

	out, err := run(t, "--server", srv.URL, "-o", "json", "trends")
	require.NoError(t, err)

	var report model.TrendReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	require.Len(t, report.Buckets, 1)
	assert.Equal(t, "post-2008", report.Buckets[0].Era.Name)
	assert.Equal(t, []string{"more reporting"}, report.KeyTrends)
}

func TestServerErrorIsTranslated(t *testing.T) {
	srv := newFakeServer(t, map[string]http.HandlerFunc{
		"POST " + apiPrefix + "/ingest": func(w http.ResponseWriter, _ *http.Request) {
			resp := response.Err(errors.ErrComplianceInvalidRequest.WithMessage("path is required")).WithRequestID("req-1")
			writeJSON(w, resp.HTTPStatus(), resp)
		},
	})

	_, err := run(t, "--server", srv.URL, "ingest", "./missing")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, errors.ErrComplianceInvalidRequest.Code, apiErr.Code)
	assert.Equal(t, "req-1", apiErr.RequestID)
	assert.Contains(t, err.Error(), "path is required")
}

func TestGlobalOptionsValidate(t *testing.T) {
	_, err := run(t, "-o", "yaml", "trends")
	assert.ErrorContains(t, err, "unsupported output")

	_, err = run(t, "--server", "localhost:8080", "trends")
	assert.ErrorContains(t, err, "http(s) URL")
}

func TestRenderConflictsEmpty(t *testing.T) {
	var buf bytes.Buffer
	renderConflicts(&buf, &model.ConflictReport{})
	assert.Contains(t, buf.String(), "No conflicts detected.")
}
