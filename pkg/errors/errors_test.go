package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
)

func TestMakeAndParseCode(t *testing.T) {
	code := MakeCode(ServiceCompliance, CategoryNetwork, 1)
	assert.Equal(t, 2010001, code)

	svc, cat, seq := ParseCode(code)
	assert.Equal(t, ServiceCompliance, svc)
	assert.Equal(t, CategoryNetwork, cat)
	assert.Equal(t, 1, seq)

	assert.True(t, IsServerError(code))
	assert.False(t, IsClientError(code))
	assert.True(t, IsClientError(ErrComplianceInvalidRequest.Code))
}

func TestErrnoIsMatchesDerivedCopies(t *testing.T) {
	cause := fmt.Errorf("milvus: connection refused")
	err := ErrRetrieval.WithCause(cause).WithMessage("vector store unavailable")

	assert.True(t, Is(err, ErrRetrieval))
	assert.False(t, Is(err, ErrIngestion))
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, http.StatusServiceUnavailable, err.HTTPStatus())
	assert.Equal(t, codes.Unavailable, err.GRPCStatus())
	// 原始注册值不受影响
	assert.Equal(t, "Retrieval unavailable", ErrRetrieval.MessageEN)
}

func TestFromError(t *testing.T) {
	assert.Nil(t, FromError(nil))

	wrapped := fmt.Errorf("query: %w", ErrDimensionMismatch)
	assert.Equal(t, ErrDimensionMismatch.Code, FromError(wrapped).Code)

	plain := FromError(fmt.Errorf("boom"))
	assert.Equal(t, ErrInternal.Code, plain.Code)
}

func TestIsConfiguration(t *testing.T) {
	assert.True(t, IsConfiguration(ErrDimensionMismatch.WithMessage("got 384, want 768")))
	assert.True(t, IsConfiguration(fmt.Errorf("startup: %w", ErrTaxonomyMissing)))
	assert.False(t, IsConfiguration(ErrRetrieval))
	assert.False(t, IsConfiguration(fmt.Errorf("plain")))
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	require.Panics(t, func() {
		Register(New(ErrIngestion.Code, 500, codes.Internal, "dup", ""))
	})

	e, ok := Lookup(ErrIngestion.Code)
	require.True(t, ok)
	assert.Equal(t, "Ingestion failed", e.MessageEN)
	assert.Contains(t, RegisteredCodes(), ErrTaxonomyMissing.Code)
}

func TestMessageByLanguage(t *testing.T) {
	assert.Equal(t, "检索不可用", ErrRetrieval.Message("zh-CN"))
	assert.Equal(t, "Retrieval unavailable", ErrRetrieval.Message("en"))
}
