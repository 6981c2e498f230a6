package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/biz"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/repo"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	queryReq    *biz.QueryRequest
	queryResp   *model.StructuredResponse
	queryErr    error
	conflictReq *biz.ConflictRequest
	docQuery    repo.DocumentQuery
	docs        map[string]*model.Document
}

func (f *fakeService) Query(_ context.Context, req *biz.QueryRequest) (*model.StructuredResponse, error) {
	f.queryReq = req
	return f.queryResp, f.queryErr
}

func (f *fakeService) Ingest(_ context.Context, path string) (*biz.IngestReport, error) {
	return &biz.IngestReport{Path: path, Succeeded: 1}, nil
}

func (f *fakeService) Conflicts(_ context.Context, req *biz.ConflictRequest) (*model.ConflictReport, error) {
	f.conflictReq = req
	return &model.ConflictReport{ID: "report-1"}, nil
}

func (f *fakeService) Trends(context.Context) (*model.TrendReport, error) {
	return &model.TrendReport{}, nil
}

func (f *fakeService) Requirements(context.Context, string) (model.RequirementMap, error) {
	return model.RequirementMap{}, nil
}

func (f *fakeService) Documents(_ context.Context, q repo.DocumentQuery) (*biz.DocumentList, error) {
	f.docQuery = q
	return &biz.DocumentList{}, nil
}

func (f *fakeService) Document(_ context.Context, id string) (*model.Document, error) {
	if d, ok := f.docs[id]; ok {
		return d, nil
	}
	return nil, errors.ErrDocumentNotFound
}

func (f *fakeService) Stats(context.Context) (map[string]any, error) {
	return map[string]any{"documents": 3}, nil
}

func (f *fakeService) MetricsText() string { return "regrag_queries_total 1\n" }

func newTestEngine(svc biz.Service) *gin.Engine {
	h := NewComplianceHandler(svc)
	e := gin.New()
	g := e.Group("/api/v1/compliance")
	g.POST("/query", h.Query)
	g.POST("/ingest", h.Ingest)
	g.POST("/conflicts", h.Conflicts)
	g.GET("/documents", h.Documents)
	g.GET("/documents/:id", h.Document)
	g.GET("/stats", h.Stats)
	g.GET("/metrics", h.Metrics)
	return e
}

func do(e *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	var out map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestQuery(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		queryErr   error
		wantStatus int
		wantCode   int
		check      func(t *testing.T, svc *fakeService, body map[string]interface{})
	}{
		{
			name:       "success",
			body:       `{"text":"What are the AML thresholds?","jurisdictions":["us","EU,US"],"top_k":5}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, svc *fakeService, _ map[string]interface{}) {
				require.NotNil(t, svc.queryReq)
				assert.Equal(t, []model.Jurisdiction{model.JurisdictionUS, model.JurisdictionEU}, svc.queryReq.Jurisdictions)
				assert.Equal(t, 5, svc.queryReq.TopK)
			},
		},
		{
			name:       "missing text",
			body:       `{"jurisdictions":["US"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrComplianceInvalidRequest.Code,
		},
		{
			name:       "unknown jurisdiction",
			body:       `{"text":"reporting duties","jurisdictions":["CN"]}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   errors.ErrComplianceInvalidRequest.Code,
			check: func(t *testing.T, svc *fakeService, _ map[string]interface{}) {
				assert.Nil(t, svc.queryReq, "service must not be called")
			},
		},
		{
			name:       "retrieval failure carries not_produced status",
			body:       `{"text":"reporting duties","jurisdictions":["BR"]}`,
			queryErr:   errors.ErrRetrieval.WithMessage("vector store unavailable"),
			wantStatus: http.StatusServiceUnavailable,
			wantCode:   errors.ErrRetrieval.Code,
			check: func(t *testing.T, _ *fakeService, body map[string]interface{}) {
				data, ok := body["data"].(map[string]interface{})
				require.True(t, ok)
				assert.Equal(t, string(model.SynthesisNotProduced), data["synthesis_status"])
				assert.Equal(t, []interface{}{"BR"}, data["missing_jurisdictions"])
			},
		},
		{
			name:       "deadline maps to query timeout",
			body:       `{"text":"reporting duties"}`,
			queryErr:   context.DeadlineExceeded,
			wantStatus: http.StatusGatewayTimeout,
			wantCode:   errors.ErrQueryTimeout.Code,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeService{
				queryResp: &model.StructuredResponse{SynthesisStatus: model.SynthesisSucceeded},
				queryErr:  tt.queryErr,
			}
			w, body := do(newTestEngine(svc), http.MethodPost, "/api/v1/compliance/query", tt.body)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != 0 {
				assert.Equal(t, float64(tt.wantCode), body["code"])
			}
			if tt.check != nil {
				tt.check(t, svc, body)
			}
		})
	}
}

func TestConflictsEmptyBody(t *testing.T) {
	svc := &fakeService{}
	w, _ := do(newTestEngine(svc), http.MethodPost, "/api/v1/compliance/conflicts", "")

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.conflictReq)
	assert.Empty(t, svc.conflictReq.Topic)
	assert.Empty(t, svc.conflictReq.Jurisdictions)
}

func TestIngestRequiresPath(t *testing.T) {
	svc := &fakeService{}
	w, _ := do(newTestEngine(svc), http.MethodPost, "/api/v1/compliance/ingest", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(newTestEngine(svc), http.MethodPost, "/api/v1/compliance/ingest", `{"path":"./corpus"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "./corpus", body["data"].(map[string]interface{})["path"])
}

func TestDocuments(t *testing.T) {
	svc := &fakeService{docs: map[string]*model.Document{
		"doc-1": {ID: "doc-1", Jurisdiction: model.JurisdictionEU},
	}}
	e := newTestEngine(svc)

	w, _ := do(e, http.MethodGet, "/api/v1/compliance/documents?jurisdiction=eu&offset=10&limit=20", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []model.Jurisdiction{model.JurisdictionEU}, svc.docQuery.Jurisdictions)
	assert.Equal(t, 10, svc.docQuery.Offset)
	assert.Equal(t, 20, svc.docQuery.Limit)

	w, _ = do(e, http.MethodGet, "/api/v1/compliance/documents?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(e, http.MethodGet, "/api/v1/compliance/documents/doc-1", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, body := do(e, http.MethodGet, "/api/v1/compliance/documents/missing", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, float64(errors.ErrDocumentNotFound.Code), body["code"])
}

func TestStatsAndMetrics(t *testing.T) {
	e := newTestEngine(&fakeService{})

	w, body := do(e, http.MethodGet, "/api/v1/compliance/stats", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["data"].(map[string]interface{})["documents"])

	w, _ = do(e, http.MethodGet, "/api/v1/compliance/metrics", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
	assert.Contains(t, w.Body.String(), "regrag_queries_total")
}

func TestValidationMessagesFollowAcceptLanguage(t *testing.T) {
	e := newTestEngine(&fakeService{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/compliance/query", bytes.NewBufferString(`{"text":"   "}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", "zh-CN")
	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "不能为空白")

	w, body := do(e, http.MethodPost, "/api/v1/compliance/ingest", `{"path":"ftp://host/docs"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, body["message"], "s3://bucket/prefix")
}
