package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/httpclient"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/json"
)

const apiPrefix = "/api/v1/compliance"

// envelope 与服务端统一响应结构对应，Data 按调用方需要的类型解码。
type envelope[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      T      `json:"data"`
	RequestID string `json:"request_id"`
}

// APIError 服务端返回的业务错误。
type APIError struct {
	Status    int
	Code      int
	Message   string
	RequestID string
	// Data 错误响应附带的数据，例如 synthesis_status。
	Data map[string]interface{}
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("server returned %d (code %d): %s", e.Status, e.Code, e.Message)
	if e.RequestID != "" {
		msg += " [request_id=" + e.RequestID + "]"
	}
	return msg
}

// apiClient 通过 HTTP 调用 regrag 服务。
type apiClient struct {
	base string
	http *httpclient.Client
}

func newAPIClient(server string, timeout time.Duration) *apiClient {
	// 摄取不是幂等操作，CLI 不做自动重试。
	return &apiClient{
		base: strings.TrimRight(server, "/"),
		http: httpclient.NewClient(timeout, 0),
	}
}

func (c *apiClient) endpoint(path string, query url.Values) string {
	u := c.base + apiPrefix + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return u
}

func post[T any](ctx context.Context, c *apiClient, path string, in interface{}) (T, error) {
	var out envelope[T]
	err := c.http.PostJSON(ctx, c.endpoint(path, nil), nil, in, &out)
	return out.Data, translate(err)
}

func get[T any](ctx context.Context, c *apiClient, path string, query url.Values) (T, error) {
	var out envelope[T]
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path, query), nil)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	err = c.http.DoJSON(req, &out)
	return out.Data, translate(err)
}

// translate 把非 2xx 响应体解析为 APIError，解析失败时保留原始错误。
func translate(err error) error {
	var se *httpclient.StatusError
	if !errors.As(err, &se) {
		return err
	}
	var body envelope[map[string]interface{}]
	if json.Unmarshal([]byte(se.Body), &body) != nil || body.Message == "" {
		return err
	}
	return &APIError{
		Status:    se.StatusCode,
		Code:      body.Code,
		Message:   body.Message,
		RequestID: body.RequestID,
		Data:      body.Data,
	}
}
