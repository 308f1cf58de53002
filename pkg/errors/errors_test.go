package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, detailsOK: true},
		{code: CodeNotFound, status: http.StatusNotFound},
		{code: CodeConflict, status: http.StatusConflict},
		{code: CodeIdempotency, status: http.StatusConflict, detailsOK: true},
		{code: CodeTooLarge, status: http.StatusRequestEntityTooLarge},
		{code: CodeInternal, status: http.StatusInternalServerError, retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, retryable: true, detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		require.Equal(t, tt.status, meta.HTTPStatus, tt.code)
		require.Equal(t, tt.retryable, meta.Retryable, tt.code)
		require.Equal(t, tt.detailsOK, meta.DetailsAllowed, tt.code)
		require.NotEmpty(t, meta.PublicMessage, tt.code)
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	require.Equal(t, http.StatusInternalServerError, MetadataFor("SOMETHING_UNKNOWN").HTTPStatus)
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	require.Equal(t, CodeValidation, base.Code())
	require.Equal(t, "missing foo", base.Message())
	require.Nil(t, base.Details())

	base.WithDetails([]string{"foo"})
	require.NotNil(t, base.Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, CodeConflict, wrapped.Code())
}

func TestAsFindsWrappedTypedError(t *testing.T) {
	err := fmt.Errorf("outer: %w", New(CodeNotFound, "user not found"))
	got := As(err)
	require.NotNil(t, got)
	require.Equal(t, CodeNotFound, got.Code())
	require.True(t, IsCode(err, CodeNotFound))
	require.False(t, IsCode(err, CodeInternal))
	require.Nil(t, As(nil))
}

func TestLogFieldsIncludesPostgresDetails(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "40001", Message: "could not serialize access", TableName: "products"}
	err := Wrap(CodeInternal, fmt.Errorf("update stock: %w", pgErr), "commit order")

	fields := LogFields(err)
	require.Equal(t, "INTERNAL_ERROR", fields["error_code"])
	require.Equal(t, "40001", fields["pg_code"])
	require.Equal(t, "products", fields["pg_table"])
	require.NotContains(t, fields, "pg_constraint")
	require.Len(t, fields["error_chain"], 3)
}

func TestLogFieldsWithoutTypedError(t *testing.T) {
	fields := LogFields(stdErrors.New("plain"))
	require.Equal(t, "plain", fields["error"])
	require.NotContains(t, fields, "error_code")
	require.Empty(t, LogFields(nil))
}

func TestStatusOf(t *testing.T) {
	require.Equal(t, http.StatusBadRequest, StatusOf(fmt.Errorf("x: %w", New(CodeValidation, "bad"))))
	require.Equal(t, http.StatusInternalServerError, StatusOf(stdErrors.New("plain")))
	require.Equal(t, "VALIDATION_ERROR: total 10", Newf(CodeValidation, "total %d", 10).Error())
}
