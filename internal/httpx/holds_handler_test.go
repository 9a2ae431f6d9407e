package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testServer struct {
	router http.Handler
	clock  clockwork.FakeClock
}

func newTestServer(t *testing.T) testServer {
	t.Helper()
	cat, err := catalog.New([]catalog.Item{
		{ID: 1, Name: "Widget", TotalStock: 1},
		{ID: 2, Name: "Gadget", TotalStock: 2},
	})
	require.NoError(t, err)

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	svc, err := reservations.NewService(reservations.Deps{Catalog: cat, Clock: clock})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	svc.Start(ctx)
	t.Cleanup(func() {
		cancel()
		svc.Close()
	})

	r := NewRouter(nil)
	(&HoldsHandler{Holds: svc}).Register(r)
	return testServer{router: r, clock: clock}
}

func (s testServer) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestReserve_LastUnit(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/reservations", `{"item_id":1}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	res := decode[ReservationResp](t, rec)
	assert.NotEmpty(t, res.ReservationID)
	assert.Equal(t, 1, res.ItemID)
	assert.True(t, s.clock.Now().Add(5*time.Minute).Equal(res.ExpiresAt))

	rec = s.do(t, http.MethodPost, "/reservations", `{"item_id":1}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, false, body["reserved"])
	assert.Equal(t, "sold out", body["error"])

	cat := decode[[]CatalogItemResp](t, s.do(t, http.MethodGet, "/catalog", ""))
	require.Len(t, cat, 2)
	assert.Equal(t, CatalogItemResp{ID: 1, Name: "Widget", TotalStock: 1, AvailableStock: 0}, cat[0])
	assert.Equal(t, 2, cat[1].AvailableStock)
}

func TestReserve_BadRequests(t *testing.T) {
	s := newTestServer(t)

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/reservations", `{`).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/reservations", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/reservations", `{"item_id":99}`).Code)
}

func TestCart_RemainingAndExpiry(t *testing.T) {
	s := newTestServer(t)
	require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/reservations", `{"item_id":2}`).Code)

	s.clock.Advance(time.Minute)
	cart := decode[[]CartItemResp](t, s.do(t, http.MethodGet, "/cart", ""))
	require.Len(t, cart, 1)
	assert.Equal(t, "Gadget", cart[0].Name)
	assert.Equal(t, int64(4*time.Minute/time.Millisecond), cart[0].RemainingMs)

	s.clock.Advance(4 * time.Minute)
	require.Eventually(t, func() bool {
		return len(decode[[]CartItemResp](t, s.do(t, http.MethodGet, "/cart", ""))) == 0
	}, time.Second, 5*time.Millisecond)

	cat := decode[[]CatalogItemResp](t, s.do(t, http.MethodGet, "/catalog", ""))
	assert.Equal(t, 2, cat[1].AvailableStock)
}

func TestCancel_Idempotent(t *testing.T) {
	s := newTestServer(t)
	res := decode[ReservationResp](t, s.do(t, http.MethodPost, "/reservations", `{"item_id":1}`))

	rec := s.do(t, http.MethodDelete, "/reservations/"+res.ReservationID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]bool{"removed": true}, decode[map[string]bool](t, rec))

	rec = s.do(t, http.MethodDelete, "/reservations/"+res.ReservationID, "")
	assert.Equal(t, map[string]bool{"removed": false}, decode[map[string]bool](t, rec))

	assert.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/reservations", `{"item_id":1}`).Code)
}

func TestCheckout_ReleasesAll(t *testing.T) {
	s := newTestServer(t)
	for _, body := range []string{`{"item_id":1}`, `{"item_id":2}`, `{"item_id":2}`} {
		require.Equal(t, http.StatusCreated, s.do(t, http.MethodPost, "/reservations", body).Code)
	}

	rec := s.do(t, http.MethodPost, "/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]int{"released": 3}, decode[map[string]int](t, rec))
	assert.Empty(t, decode[[]CartItemResp](t, s.do(t, http.MethodGet, "/cart", "")))

	rec = s.do(t, http.MethodPost, "/checkout", "")
	assert.Equal(t, map[string]int{"released": 0}, decode[map[string]int](t, rec))
}
