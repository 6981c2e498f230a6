// Package response 定义统一的 API 响应结构。
package response

import (
	"net/http"
	"time"

	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

// Response 是所有 HTTP 接口的统一响应结构。
type Response struct {
	// Code 业务错误码 (0 = 成功)
	Code int `json:"code"`

	// HTTPCode HTTP 状态码
	HTTPCode int `json:"http_code,omitempty"`

	// Message 可读消息
	Message string `json:"message"`

	// Data 响应数据。错误响应也可以携带数据，例如 synthesis_status。
	Data interface{} `json:"data,omitempty"`

	// RequestID 请求 ID
	RequestID string `json:"request_id,omitempty"`

	// Timestamp 响应时间戳 (Unix 毫秒)
	Timestamp int64 `json:"timestamp,omitempty"`
}

// Success 创建成功响应。
func Success(data interface{}) *Response {
	return &Response{
		Code:      0,
		HTTPCode:  http.StatusOK,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().UnixMilli(),
	}
}

// Err 根据 Errno 创建错误响应。
func Err(e *errors.Errno) *Response {
	if e == nil {
		return Success(nil)
	}
	return &Response{
		Code:      e.Code,
		HTTPCode:  e.HTTPStatus(),
		Message:   e.MessageEN,
		Timestamp: time.Now().UnixMilli(),
	}
}

// ErrWithData 创建携带数据的错误响应。
func ErrWithData(e *errors.Errno, data interface{}) *Response {
	r := Err(e)
	r.Data = data
	return r
}

// WithRequestID 设置请求 ID。
func (r *Response) WithRequestID(requestID string) *Response {
	r.RequestID = requestID
	return r
}

// IsSuccess 判断是否成功。
func (r *Response) IsSuccess() bool {
	return r.Code == 0
}

// HTTPStatus 返回响应应使用的 HTTP 状态码。
func (r *Response) HTTPStatus() int {
	if r.HTTPCode != 0 {
		return r.HTTPCode
	}
	if r.Code == 0 {
		return http.StatusOK
	}
	if e, ok := errors.Lookup(r.Code); ok {
		return e.HTTPStatus()
	}

	switch errors.GetCategory(r.Code) {
	case errors.CategoryRequest:
		return http.StatusBadRequest
	case errors.CategoryResource:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryRateLimit:
		return http.StatusTooManyRequests
	case errors.CategoryTimeout:
		return http.StatusGatewayTimeout
	case errors.CategoryNetwork:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
