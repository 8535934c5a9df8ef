package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected", detailsOK: true},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			meta := MetadataFor(tt.code)
			assert.Equal(t, tt.status, meta.HTTPStatus)
			assert.Equal(t, tt.publicMsg, meta.PublicMessage)
			assert.Equal(t, tt.retryable, meta.Retryable)
			assert.Equal(t, tt.detailsOK, meta.DetailsAllowed)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	require.Equal(t, CodeValidation, base.Code())
	require.Equal(t, "missing foo", base.Message())
	require.Nil(t, base.Details())

	base.WithDetails(map[string]any{"field": "foo"})
	require.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, CodeConflict, wrapped.Code())
	require.Contains(t, wrapped.Error(), "boom")
}

func TestAsAndIsCodeWalkTheChain(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeForbidden, "no entry"))
	got := As(err)
	require.NotNil(t, got)
	assert.Equal(t, CodeForbidden, got.Code())
	assert.True(t, IsCode(err, CodeForbidden))
	assert.False(t, IsCode(err, CodeNotFound))
	assert.Nil(t, As(nil))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("stripe down"), "create session")
	d := Dump(err)
	assert.Equal(t, CodeDependency, d.Code)
	assert.Len(t, d.Chain, 2)
	assert.Empty(t, d.PGCode)
}

func TestDumpReadsDriverDetail(t *testing.T) {
	pgErr := &pgconn.PgError{
		Code:       "23502",
		Message:    "null value in column \"email\" violates not-null constraint",
		TableName:  "order_headers",
		ColumnName: "email",
	}
	d := Dump(Wrap(CodeInternal, pgErr, "insert order"))
	assert.Equal(t, "23502", d.PGCode)
	assert.Equal(t, "email", d.PGColumn)
	assert.Contains(t, d.PGMessage, "not-null")

	fields := d.Fields()
	assert.Equal(t, "email", fields["pg_column"])
	assert.Equal(t, d.PGMessage, fields["pg_message"])

	pqDump := Dump(Wrap(CodeInternal, &pq.Error{Code: "23503", Message: "fk", Column: "product_id"}, "delete product"))
	assert.Equal(t, "product_id", pqDump.PGColumn)
	assert.Equal(t, "fk", pqDump.PGMessage)
}
