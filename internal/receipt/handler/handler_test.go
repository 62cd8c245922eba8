package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"listou/internal/audit"
	"listou/internal/receipt/importer"
	"listou/internal/receipt/models"
	"listou/internal/receipt/provider"
	"listou/internal/receipt/service"
	"listou/internal/receipt/store"
)

const validKey = "35230812345678000123550010000000011000000011"

var signingKey = []byte("test-signing-key")

func ptr(v float64) *float64 { return &v }

func rawFixture(key string) models.RawReceipt {
	return models.RawReceipt{
		AccessKey: key,
		Issuer:    models.RawIssuer{Name: "Mercado Central LTDA", CNPJ: "12.345.678/0001-95"},
		IssueDate: "10/11/2024",
		Total:     17.00,
		Lines: []models.RawLine{
			{Description: "Café Torrado 500g", Quantity: 2, Unit: "UN", UnitValue: 3.50},
			{Description: "Arroz Branco 5kg", Quantity: 1, Unit: "UN", UnitValue: 10.00, LineTotal: ptr(10.00)},
		},
	}
}

func bearerToken(t *testing.T, ownerID uuid.UUID) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": ownerID.String(),
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(signingKey)
	require.NoError(t, err)
	return "Bearer " + signed
}

func newTestRouter(t *testing.T, mock *provider.MockClient) (http.Handler, *store.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := store.NewInMemoryStore()
	sessions := importer.NewInMemorySessions(15 * time.Minute)
	imp := importer.New(mock, st, sessions, logger, nil)
	svc := service.New(imp, st, audit.NewRecorder(), nil, logger)

	router := chi.NewRouter()
	New(svc, logger, nil, signingKey).Register(router)
	return router, st
}

func doJSON(t *testing.T, router http.Handler, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestImportOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t, &provider.MockClient{
		Receipts: map[string][]models.RawReceipt{validKey: {rawFixture(validKey)}},
	})
	owner := uuid.New()
	auth := bearerToken(t, owner)

	rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
		ImportRequest{AccessKey: validKey})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, "awaiting_confirmation", preview.State)
	assert.Equal(t, validKey, preview.AccessKey)
	assert.Contains(t, preview.AccessKeyShown, " ", "formatted key is blocked for display")
	require.NotNil(t, preview.Receipt)
	assert.Equal(t, 17.00, preview.Receipt.TotalValue)
	require.Len(t, preview.Items, 2)

	// The parked preview can be re-read until it resolves.
	rec = doJSON(t, router, http.MethodGet, "/receipts/imports/"+preview.ImportID, auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	assert.Equal(t, "awaiting_confirmation", pending.State)

	rec = doJSON(t, router, http.MethodPost, "/receipts/imports/"+preview.ImportID+"/confirm", auth, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var confirmed ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))
	assert.Equal(t, "done", confirmed.State)

	rec = doJSON(t, router, http.MethodGet, "/receipts", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, validKey, list[0].AccessKey)

	rec = doJSON(t, router, http.MethodGet, "/receipts/"+list[0].ID.String(), auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var detail ReceiptResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	require.NotNil(t, detail.Receipt)
	assert.Len(t, detail.Items, 2)
}

func TestImportFromScannedText(t *testing.T) {
	router, _ := newTestRouter(t, &provider.MockClient{
		Receipts: map[string][]models.RawReceipt{validKey: {rawFixture(validKey)}},
	})
	auth := bearerToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
		ImportRequest{ScannedText: "https://sat.sefaz.example/qr?p=" + validKey + "|2|1|1|abc"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var preview ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))
	assert.Equal(t, validKey, preview.AccessKey)
}

func TestDiscardOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t, &provider.MockClient{
		Receipts: map[string][]models.RawReceipt{validKey: {rawFixture(validKey)}},
	})
	auth := bearerToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
		ImportRequest{AccessKey: validKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var preview ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))

	rec = doJSON(t, router, http.MethodDelete, "/receipts/imports/"+preview.ImportID, auth, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/receipts/imports/"+preview.ImportID+"/confirm", auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/receipts/imports/"+preview.ImportID, auth, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "the discarded preview is gone")

	rec = doJSON(t, router, http.MethodGet, "/receipts", auth, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "discarded import persists nothing")
}

func TestErrorStatusMapping(t *testing.T) {
	owner := uuid.New()
	auth := bearerToken(t, owner)

	t.Run("bad access key is 400 with the failed stage", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{})
		rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
			ImportRequest{AccessKey: "12345"})
		require.Equal(t, http.StatusBadRequest, rec.Code)

		var body errorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "validating_key", body.Stage)
	})

	t.Run("duplicate import is 409", func(t *testing.T) {
		router, st := newTestRouter(t, &provider.MockClient{})
		existing := models.Receipt{OwnerID: owner, AccessKey: validKey, IssueDate: "2024-01-01"}
		_, err := st.SaveReceipt(context.Background(), &existing)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
			ImportRequest{AccessKey: validKey})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("unknown key upstream is 404", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{})
		rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
			ImportRequest{AccessKey: validKey})
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("aggregator outage is 502", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{
			Err: provider.NewError(provider.ErrorUnavailable, "aggregator unreachable", nil),
		})
		rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth,
			ImportRequest{AccessKey: validKey})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})

	t.Run("empty body fields are 400", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{})
		rec := doJSON(t, router, http.MethodPost, "/receipts/imports", auth, ImportRequest{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("malformed import id is 400", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{})
		rec := doJSON(t, router, http.MethodPost, "/receipts/imports/not-a-uuid/confirm", auth, nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("unknown receipt is 404", func(t *testing.T) {
		router, _ := newTestRouter(t, &provider.MockClient{})
		rec := doJSON(t, router, http.MethodGet, "/receipts/"+uuid.NewString(), auth, nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestAuthRequired(t *testing.T) {
	router, _ := newTestRouter(t, &provider.MockClient{})

	t.Run("missing token", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/receipts", "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong signing key", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": uuid.NewString(),
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString([]byte("some-other-key"))
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodGet, "/receipts", "Bearer "+signed, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("expired token", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": uuid.NewString(),
			"exp": time.Now().Add(-time.Hour).Unix(),
		})
		signed, err := token.SignedString(signingKey)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodGet, "/receipts", "Bearer "+signed, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("non-uuid subject", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
			"sub": "not-a-uuid",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		signed, err := token.SignedString(signingKey)
		require.NoError(t, err)

		rec := doJSON(t, router, http.MethodGet, "/receipts", "Bearer "+signed, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestOwnerIsolationOverHTTP(t *testing.T) {
	router, _ := newTestRouter(t, &provider.MockClient{
		Receipts: map[string][]models.RawReceipt{validKey: {rawFixture(validKey)}},
	})
	alice := bearerToken(t, uuid.New())
	bob := bearerToken(t, uuid.New())

	rec := doJSON(t, router, http.MethodPost, "/receipts/imports", alice,
		ImportRequest{AccessKey: validKey})
	require.Equal(t, http.StatusOK, rec.Code)
	var preview ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &preview))

	// Bob cannot confirm Alice's pending import.
	rec = doJSON(t, router, http.MethodPost, "/receipts/imports/"+preview.ImportID+"/confirm", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/receipts/imports/"+preview.ImportID+"/confirm", alice, nil)
	require.Equal(t, http.StatusCreated, rec.Code)
	var confirmed ImportResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &confirmed))

	// Bob sees neither the list entry nor the detail, and cannot delete it.
	rec = doJSON(t, router, http.MethodGet, "/receipts", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	receiptID := confirmed.Receipt.ID.String()
	rec = doJSON(t, router, http.MethodGet, "/receipts/"+receiptID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/receipts/"+receiptID, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodDelete, "/receipts/"+receiptID, alice, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
