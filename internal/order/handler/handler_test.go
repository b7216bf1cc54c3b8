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

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderflow/internal/cache"
	"orderflow/internal/idempotency"
	"orderflow/internal/notify"
	"orderflow/internal/order/service"
	"orderflow/internal/order/store"
	"orderflow/internal/outbound"
)

type noopPublisher struct{}

func (noopPublisher) TryPublish(context.Context, outbound.Envelope) bool { return true }

func newTestRouter(t *testing.T) (http.Handler, *idempotency.InMemoryStore) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	idemStore := idempotency.NewInMemoryStore()
	bus := notify.NewBus(logger)
	service.RegisterNotifications(bus)

	svc := service.New(store.NewInMemoryStore(), service.Deps{
		Cache:       cache.NewInMemoryStore(),
		Idempotency: idemStore,
		Publisher:   noopPublisher{},
		Queue:       outbound.NewRetryQueue(nil, logger),
		Bus:         bus,
		Logger:      logger,
	})

	router := chi.NewRouter()
	New(svc, logger).Register(router)
	return router, idemStore
}

func postOrder(t *testing.T, router http.Handler, idempotencyKey string) *httptest.ResponseRecorder {
	t.Helper()
	body := `{"customerId":"c-1","lines":[{"productId":"p-1","quantity":1,"unitPriceCents":500}]}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_Created(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := postOrder(t, router, "idem-1")
	require.Equal(t, http.StatusCreated, rec.Code)

	var res service.CreateOrderResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, int64(500), res.TotalCents)
}

func TestCreateOrder_ReplaySameKeySameOrder(t *testing.T) {
	router, _ := newTestRouter(t)

	first := postOrder(t, router, "idem-1")
	require.Equal(t, http.StatusCreated, first.Code)
	replay := postOrder(t, router, "idem-1")
	require.Equal(t, http.StatusCreated, replay.Code)

	var a, b service.CreateOrderResult
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &a))
	require.NoError(t, json.Unmarshal(replay.Body.Bytes(), &b))
	assert.Equal(t, a.OrderID, b.OrderID, "replay must return the original order")
}

func TestCreateOrder_InFlightKeyConflicts(t *testing.T) {
	router, idemStore := newTestRouter(t)

	// Reserve the key the way a still-running first request would.
	require.NoError(t, idemStore.Add(context.Background(), idempotency.Record{Key: "idem-1"}))

	rec := postOrder(t, router, "idem-1")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateOrder_InvalidBody(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetOrder_RoundTrip(t *testing.T) {
	router, _ := newTestRouter(t)

	created := postOrder(t, router, "")
	var res service.CreateOrderResult
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodGet, "/orders/"+res.OrderID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var view service.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, res.OrderID, view.OrderID)
}

func TestGetOrder_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/orders/11111111-2222-3333-4444-555555555555", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestUpdateStatus_InvalidTransition(t *testing.T) {
	router, _ := newTestRouter(t)

	created := postOrder(t, router, "")
	var res service.CreateOrderResult
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+res.OrderID+"/status",
		bytes.NewBufferString(`{"status":"shipped"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdateStatus_Transition(t *testing.T) {
	router, _ := newTestRouter(t)

	created := postOrder(t, router, "")
	var res service.CreateOrderResult
	require.NoError(t, json.Unmarshal(created.Body.Bytes(), &res))

	req := httptest.NewRequest(http.MethodPatch, "/orders/"+res.OrderID+"/status",
		bytes.NewBufferString(`{"status":"paid"}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var updated service.UpdateOrderStatusResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, res.OrderID, updated.OrderID)
}
