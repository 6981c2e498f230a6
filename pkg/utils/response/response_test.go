package response

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gregorizeidler-cw/RegRAG/pkg/errors"
)

func TestSuccess(t *testing.T) {
	r := Success(map[string]int{"chunks": 3})
	assert.True(t, r.IsSuccess())
	assert.Equal(t, http.StatusOK, r.HTTPStatus())
	assert.NotZero(t, r.Timestamp)
}

func TestErrUsesErrnoStatus(t *testing.T) {
	r := Err(errors.ErrRetrieval).WithRequestID("req-1")
	assert.False(t, r.IsSuccess())
	assert.Equal(t, errors.ErrRetrieval.Code, r.Code)
	assert.Equal(t, http.StatusServiceUnavailable, r.HTTPStatus())
	assert.Equal(t, "req-1", r.RequestID)
}

func TestErrWithData(t *testing.T) {
	r := ErrWithData(errors.ErrRetrieval, map[string]string{"synthesis_status": "not_produced"})
	assert.Equal(t, map[string]string{"synthesis_status": "not_produced"}, r.Data)
}

func TestHTTPStatusFallsBackToCategory(t *testing.T) {
	r := &Response{Code: errors.MakeCode(42, errors.CategoryResource, 999)}
	assert.Equal(t, http.StatusNotFound, r.HTTPStatus())

	r = &Response{Code: errors.MakeCode(42, errors.CategoryTimeout, 999)}
	assert.Equal(t, http.StatusGatewayTimeout, r.HTTPStatus())
}

func TestErrNil(t *testing.T) {
	assert.True(t, Err(nil).IsSuccess())
}
