// Package handler provides HTTP handlers for the compliance service.
package handler

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/kart-io/logger"

	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/biz"
	"github.com/gregorizeidler-cw/RegRAG/internal/compliance/repo"
	"github.com/gregorizeidler-cw/RegRAG/internal/model"
	"github.com/gregorizeidler-cw/RegRAG/internal/pkg/httputils"
	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	pkgvalidator "github.com/gregorizeidler-cw/RegRAG/pkg/validator"
)

// tagJurisdiction 校验辖区列表的每个元素，元素可以是逗号分隔的多个辖区。
const tagJurisdiction = "jurisdiction"

var registerOnce sync.Once

func registerValidators() {
	registerOnce.Do(func() {
		pkgvalidator.InstallGin()
		_ = pkgvalidator.Global().RegisterValidationWithTranslation(tagJurisdiction, func(fl validator.FieldLevel) bool {
			_, err := parseJurisdictions([]string{fl.Field().String()})
			return err == nil
		}, map[string]string{
			pkgvalidator.LangEN: "{0} must be one of US, EU or BR",
			pkgvalidator.LangZH: "{0}必须是 US、EU 或 BR",
		})
	})
}

// ComplianceHandler handles compliance HTTP requests.
type ComplianceHandler struct {
	service biz.Service
}

// NewComplianceHandler creates a new ComplianceHandler.
func NewComplianceHandler(service biz.Service) *ComplianceHandler {
	registerValidators()
	return &ComplianceHandler{service: service}
}

// QueryRequest represents a query request.
type QueryRequest struct {
	Text          string   `json:"text" binding:"required,notblank,max=4000"`
	Jurisdictions []string `json:"jurisdictions" binding:"omitempty,max=8,dive,jurisdiction"`
	TopK          int      `json:"top_k" binding:"omitempty,min=1,max=100"`
	Analyze       bool     `json:"analyze"`
}

// IngestRequest represents an ingestion request.
type IngestRequest struct {
	// Path 本地文件、目录或 s3://bucket/prefix。
	Path string `json:"path" binding:"required,sourcepath"`
}

// ConflictsRequest represents a conflict analysis request.
type ConflictsRequest struct {
	Topic         string   `json:"topic"`
	Jurisdictions []string `json:"jurisdictions" binding:"omitempty,max=8,dive,jurisdiction"`
}

// DocumentsQuery 文档列表查询参数。
type DocumentsQuery struct {
	Jurisdiction string `form:"jurisdiction"`
	Offset       int    `form:"offset" binding:"omitempty,min=0"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=500"`
}

// parseJurisdictions 接受 ["US","EU"] 或 ["US,EU"]，去重并拒绝无法识别的辖区。
func parseJurisdictions(values []string) ([]model.Jurisdiction, error) {
	var out []model.Jurisdiction
	seen := make(map[model.Jurisdiction]bool)
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			j, ok := model.ParseJurisdiction(part)
			if !ok {
				return nil, errors.ErrComplianceInvalidRequest.WithMessagef("unknown jurisdiction %q", part)
			}
			if !seen[j] {
				seen[j] = true
				out = append(out, j)
			}
		}
	}
	return out, nil
}

// badRequest 把绑定错误转换为 ErrComplianceInvalidRequest，校验错误按 Accept-Language 翻译。
func badRequest(c *gin.Context, err error) error {
	var e *errors.Errno
	if errors.As(err, &e) {
		return err
	}
	if verrs := pkgvalidator.Global().Translate(err, c.GetHeader("Accept-Language")); verrs != nil {
		return errors.ErrComplianceInvalidRequest.WithCause(err).WithMessage(verrs.Error())
	}
	return errors.ErrComplianceInvalidRequest.WithCause(err).WithMessage(err.Error())
}

// timeoutAware 请求上下文已超时的错误统一映射为 ErrQueryTimeout。
func timeoutAware(ctx context.Context, err error) error {
	if stderrors.Is(ctx.Err(), context.DeadlineExceeded) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrQueryTimeout.WithCause(err)
	}
	return err
}

// Query performs a compliance query.
//
//	@Summary		Answer a regulatory question
//	@Description	Retrieves evidence per jurisdiction and returns a cited, structured answer.
//	@Tags			compliance
//	@Accept			json
//	@Produce		json
//	@Param			Accept-Language	header		string			false	"Language of validation messages (en, zh)"
//	@Param			request			body		QueryRequest	true	"Question and optional jurisdiction filter"
//	@Success		200				{object}	response.Response{data=model.StructuredResponse}
//	@Failure		400				{object}	response.Response
//	@Failure		503				{object}	response.Response
//	@Failure		504				{object}	response.Response
//	@Router			/compliance/query [post]
func (h *ComplianceHandler) Query(c *gin.Context) {
	var req QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, badRequest(c, err), nil)
		return
	}
	jurisdictions, err := parseJurisdictions(req.Jurisdictions)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	ctx := c.Request.Context()
	resp, err := h.service.Query(ctx, &biz.QueryRequest{
		Text:          req.Text,
		Jurisdictions: jurisdictions,
		TopK:          req.TopK,
		Analyze:       req.Analyze,
	})
	if err != nil {
		err = timeoutAware(ctx, err)
		if errors.Is(err, errors.ErrComplianceInvalidRequest) {
			httputils.WriteResponse(c, err, nil)
			return
		}
		logger.Warnw("query failed", "error", err.Error())
		httputils.WriteErrorWithData(c, err, gin.H{
			"synthesis_status":      model.SynthesisNotProduced,
			"missing_jurisdictions": jurisdictions,
		})
		return
	}

	httputils.WriteResponse(c, nil, resp)
}

// Ingest ingests documents from a local path or an s3 prefix.
//
//	@Summary	Ingest regulatory texts
//	@Tags		corpus
//	@Accept		json
//	@Produce	json
//	@Param		request	body		IngestRequest	true	"Local path or s3://bucket/prefix"
//	@Success	200		{object}	response.Response{data=biz.IngestReport}
//	@Failure	400		{object}	response.Response
//	@Router		/compliance/ingest [post]
func (h *ComplianceHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputils.WriteResponse(c, badRequest(c, err), nil)
		return
	}

	report, err := h.service.Ingest(c.Request.Context(), req.Path)
	httputils.WriteResponse(c, err, report)
}

// Conflicts analyzes conflicts across the ingested corpus.
//
//	@Summary	Detect cross-jurisdiction conflicts
//	@Tags		compliance
//	@Accept		json
//	@Produce	json
//	@Param		request	body		ConflictsRequest	false	"Topic and jurisdiction scope; an empty body analyzes everything"
//	@Success	200		{object}	response.Response{data=model.ConflictReport}
//	@Failure	400		{object}	response.Response
//	@Router		/compliance/conflicts [post]
func (h *ComplianceHandler) Conflicts(c *gin.Context) {
	var req ConflictsRequest
	// 空 body 等价于分析全部语料
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			httputils.WriteResponse(c, badRequest(c, err), nil)
			return
		}
	}
	jurisdictions, err := parseJurisdictions(req.Jurisdictions)
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	report, err := h.service.Conflicts(c.Request.Context(), &biz.ConflictRequest{
		Topic:         req.Topic,
		Jurisdictions: jurisdictions,
	})
	httputils.WriteResponse(c, err, report)
}

// Trends returns the regulatory trend report.
//
//	@Summary	Regulatory trends by era
//	@Tags		compliance
//	@Produce	json
//	@Success	200	{object}	response.Response{data=model.TrendReport}
//	@Router		/compliance/trends [get]
func (h *ComplianceHandler) Trends(c *gin.Context) {
	report, err := h.service.Trends(c.Request.Context())
	httputils.WriteResponse(c, err, report)
}

// Requirements returns the requirement map, optionally for one topic.
//
//	@Summary	Requirement map per topic and jurisdiction
//	@Tags		compliance
//	@Produce	json
//	@Param		topic	query		string	false	"Taxonomy topic id"
//	@Success	200		{object}	response.Response{data=model.RequirementMap}
//	@Router		/compliance/requirements [get]
func (h *ComplianceHandler) Requirements(c *gin.Context) {
	reqs, err := h.service.Requirements(c.Request.Context(), c.Query("topic"))
	httputils.WriteResponse(c, err, reqs)
}

// Documents lists ingested documents.
//
//	@Summary	List ingested documents
//	@Tags		corpus
//	@Produce	json
//	@Param		jurisdiction	query		string	false	"US, EU or BR; comma separated"
//	@Param		offset			query		int		false	"Offset"	minimum(0)
//	@Param		limit			query		int		false	"Page size"	minimum(1)	maximum(500)
//	@Success	200				{object}	response.Response{data=biz.DocumentList}
//	@Failure	400				{object}	response.Response
//	@Router		/compliance/documents [get]
func (h *ComplianceHandler) Documents(c *gin.Context) {
	var q DocumentsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		httputils.WriteResponse(c, badRequest(c, err), nil)
		return
	}
	jurisdictions, err := parseJurisdictions([]string{q.Jurisdiction})
	if err != nil {
		httputils.WriteResponse(c, err, nil)
		return
	}

	list, err := h.service.Documents(c.Request.Context(), repo.DocumentQuery{
		Jurisdictions: jurisdictions,
		Offset:        q.Offset,
		Limit:         q.Limit,
	})
	httputils.WriteResponse(c, err, list)
}

// Document returns one document with its raw text.
//
//	@Summary	Get one document
//	@Tags		corpus
//	@Produce	json
//	@Param		id	path		string	true	"Document id"
//	@Success	200	{object}	response.Response{data=model.Document}
//	@Failure	404	{object}	response.Response
//	@Router		/compliance/documents/{id} [get]
func (h *ComplianceHandler) Document(c *gin.Context) {
	doc, err := h.service.Document(c.Request.Context(), c.Param("id"))
	httputils.WriteResponse(c, err, doc)
}

// Stats returns knowledge base statistics.
//
//	@Summary	Knowledge base statistics
//	@Tags		ops
//	@Produce	json
//	@Success	200	{object}	response.Response
//	@Router		/compliance/stats [get]
func (h *ComplianceHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	httputils.WriteResponse(c, err, stats)
}

// Metrics exports metrics in Prometheus text format.
//
//	@Summary	Prometheus metrics
//	@Tags		ops
//	@Produce	plain
//	@Success	200	{string}	string
//	@Router		/compliance/metrics [get]
func (h *ComplianceHandler) Metrics(c *gin.Context) {
	c.Data(http.StatusOK, "text/plain; version=0.0.4; charset=utf-8", []byte(h.service.MetricsText()))
}
