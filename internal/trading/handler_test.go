package trading

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*fixture, http.Handler) {
	t.Helper()
	f := newFixture(t)
	handler := NewHandler(slog.Default(), f.recorder)
	r := chi.NewRouter()
	r.Route("/sales", handler.MountSaleRoutes)
	r.Route("/purchases", handler.MountPurchaseRoutes)
	return f, r
}

func TestHandlerRecordSale(t *testing.T) {
	_, router := newTestRouter(t)

	body := `{"party_id":"CUST0001","products":[{"product_id":"PRO0001","quantity":10}],"paid_amount":400}`
	req := httptest.NewRequest(http.MethodPost, "/sales/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var resp documentResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "BNO0001", resp.Document.Number)
	require.Equal(t, 590.0, resp.Document.NetTotal)
	require.Equal(t, 190.0, resp.Document.Outstanding)
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/sales/", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsMissingProducts(t *testing.T) {
	_, router := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/sales/", strings.NewReader(`{"party_id":"CUST0001","products":[]}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerRejectsUnknownPartyWith400(t *testing.T) {
	_, router := newTestRouter(t)

	body := `{"party_id":"CUST0404","products":[{"product_id":"PRO0001","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerGetDocument(t *testing.T) {
	f, router := newTestRouter(t)

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sales/BNO0001", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/purchases/BNO0001", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlerListDocuments(t *testing.T) {
	f, router := newTestRouter(t)

	_, err := f.recorder.Record(context.Background(), saleInput())
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/sales/", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp listDocumentsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Documents, 1)
	require.Equal(t, 1, resp.Pagination.Total)
}

func TestHandlerSeriesExhaustedIs503(t *testing.T) {
	f, router := newTestRouter(t)
	f.repo.rejectAllInserts = true

	body := `{"party_id":"CUST0001","products":[{"product_id":"PRO0001","quantity":1}]}`
	req := httptest.NewRequest(http.MethodPost, "/sales/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
