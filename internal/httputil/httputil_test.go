package httputil

import (
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solward/flywheel/internal/svcerr"
)

func TestWriteServiceErrorUsesCodeAndStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteServiceError(w, svcerr.NotFound("token", "abc"))

	assert.Equal(t, 404, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, string(svcerr.ErrCodeNotFound), body.Code)
	assert.Equal(t, "resource not found", body.Error)
}

func TestWriteServiceErrorFallsBackOnPlainError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteServiceError(w, errors.New("unstructured"))

	assert.Equal(t, 500, w.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "unstructured", body.Error)
	assert.Empty(t, body.Code)
}

func TestQueryIntFallsBackOnInvalid(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=notanumber", nil)
	assert.Equal(t, 25, QueryInt(r, "limit", 25))

	r2 := httptest.NewRequest("GET", "/?limit=10", nil)
	assert.Equal(t, 10, QueryInt(r2, "limit", 25))
}
