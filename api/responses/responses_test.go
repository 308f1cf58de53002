package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/types"
	"github.com/stretchr/testify/require"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) types.ErrorEnvelope {
	t.Helper()
	var body types.ErrorEnvelope
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]any{"success": true})

	require.Equal(t, http.StatusCreated, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))
	require.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestWriteErrorValidationCarriesFieldErrors(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "la orden no pasó la validación").
		WithDetails([]types.FieldError{{Field: "items[0].quantity", Message: "Stock insuficiente"}})
	WriteError(context.Background(), logger.Nop(), w, err)

	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeEnvelope(t, w)
	require.False(t, body.Success)
	require.Equal(t, "la orden no pasó la validación", body.Message)
	require.Equal(t, []types.FieldError{{Field: "items[0].quantity", Message: "Stock insuficiente"}}, body.Errors)
}

func TestWriteErrorNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeNotFound, "user not found"))

	require.Equal(t, http.StatusNotFound, w.Code)
	body := decodeEnvelope(t, w)
	require.Equal(t, "user not found", body.Message)
	require.Empty(t, body.Errors)
}

func TestWriteErrorHidesInternals(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), w, errors.New("pq: connection reset by peer"))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeEnvelope(t, w)
	require.Equal(t, "Error interno al procesar la orden", body.Message)
	require.NotContains(t, w.Body.String(), "connection reset")
}
