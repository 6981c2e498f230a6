package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// 合规检索服务错误码，服务代码 20。
var (
	// ErrComplianceInvalidRequest 查询或摄取请求参数无效。
	ErrComplianceInvalidRequest = Register(New(MakeCode(ServiceCompliance, CategoryRequest, 1), http.StatusBadRequest, codes.InvalidArgument, "Invalid compliance request", "合规请求参数无效"))

	// ErrDocumentNotFound 文档不存在。
	ErrDocumentNotFound = Register(New(MakeCode(ServiceCompliance, CategoryResource, 1), http.StatusNotFound, codes.NotFound, "Document not found", "文档不存在"))

	// ErrIngestion 单个文档或批次摄取失败，不影响整体流程。
	ErrIngestion = Register(New(MakeCode(ServiceCompliance, CategoryInternal, 1), http.StatusInternalServerError, codes.Internal, "Ingestion failed", "文档摄取失败"))

	// ErrRetrieval 查询阶段 embedding 或向量库失败。
	ErrRetrieval = Register(New(MakeCode(ServiceCompliance, CategoryNetwork, 1), http.StatusServiceUnavailable, codes.Unavailable, "Retrieval unavailable", "检索不可用"))

	// ErrQueryTimeout 查询超时。
	ErrQueryTimeout = Register(New(MakeCode(ServiceCompliance, CategoryTimeout, 1), http.StatusGatewayTimeout, codes.DeadlineExceeded, "Query timeout", "查询超时"))

	// ErrConfiguration 启动期致命配置错误。
	ErrConfiguration = Register(New(MakeCode(ServiceCompliance, CategoryConfig, 1), http.StatusInternalServerError, codes.FailedPrecondition, "Configuration error", "配置错误"))

	// ErrDimensionMismatch embedding 维度与索引配置不一致。
	ErrDimensionMismatch = Register(New(MakeCode(ServiceCompliance, CategoryConfig, 2), http.StatusInternalServerError, codes.FailedPrecondition, "Embedding dimension mismatch", "向量维度不匹配"))

	// ErrTaxonomyMissing 管辖区或主题分类表缺失。
	ErrTaxonomyMissing = Register(New(MakeCode(ServiceCompliance, CategoryConfig, 3), http.StatusInternalServerError, codes.FailedPrecondition, "Jurisdiction taxonomy missing", "管辖区分类表缺失"))
)

// IsConfiguration 判断错误是否属于配置类错误。
func IsConfiguration(err error) bool {
	var e *Errno
	if !As(err, &e) {
		return false
	}
	return GetCategory(e.Code) == CategoryConfig
}
