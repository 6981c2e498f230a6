// Package httputils 提供 gin handler 的统一响应写出。
package httputils

import (
	"github.com/gin-gonic/gin"

	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
	"github.com/gregorizeidler-cw/RegRAG/pkg/utils/response"
)

// RequestIDKey 请求 ID 在 gin.Context 中的键。
const RequestIDKey = "request_id"

// WriteResponse 根据 err 写出成功或错误响应。
func WriteResponse(c *gin.Context, err error, data interface{}) {
	var resp *response.Response
	if err != nil {
		resp = response.Err(errors.FromError(err))
	} else {
		resp = response.Success(data)
	}
	write(c, resp)
}

// WriteErrorWithData 写出携带数据的错误响应。
func WriteErrorWithData(c *gin.Context, err error, data interface{}) {
	write(c, response.ErrWithData(errors.FromError(err), data))
}

func write(c *gin.Context, resp *response.Response) {
	if rid := c.GetString(RequestIDKey); rid != "" {
		resp.WithRequestID(rid)
	}
	c.JSON(resp.HTTPStatus(), resp)
}
