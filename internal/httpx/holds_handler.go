package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/go-chi/chi/v5"
)

// Facade is the part of reservations.Service the handlers need.
type Facade interface {
	Reserve(ctx context.Context, itemID int) (reservations.Reservation, bool, error)
	Cancel(ctx context.Context, id string) bool
	Checkout(ctx context.Context) int
	CatalogView() []reservations.CatalogEntry
	CartView() []reservations.CartEntry
	Now() time.Time
}

type HoldsHandler struct {
	Holds Facade
}

type ReserveReq struct {
	ItemID *int `json:"item_id"`
}

type ReservationResp struct {
	ReservationID string    `json:"reservation_id"`
	ItemID        int       `json:"item_id"`
	ExpiresAt     time.Time `json:"expires_at"`
}

type CatalogItemResp struct {
	ID             int    `json:"id"`
	Name           string `json:"name"`
	TotalStock     int    `json:"total_stock"`
	AvailableStock int    `json:"available_stock"`
}

type CartItemResp struct {
	ReservationID string    `json:"reservation_id"`
	ItemID        int       `json:"item_id"`
	Name          string    `json:"name"`
	ExpiresAt     time.Time `json:"expires_at"`
	RemainingMs   int64     `json:"remaining_ms"`
}

func (h *HoldsHandler) Register(r chi.Router) {
	r.Get("/catalog", h.listCatalog)
	r.Get("/cart", h.listCart)
	r.Post("/reservations", h.reserve)
	r.Delete("/reservations/{id}", h.cancel)
	r.Post("/checkout", h.checkout)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *HoldsHandler) listCatalog(w http.ResponseWriter, r *http.Request) {
	view := h.Holds.CatalogView()
	out := make([]CatalogItemResp, 0, len(view))
	for _, e := range view {
		out = append(out, CatalogItemResp{
			ID:             e.Item.ID,
			Name:           e.Item.Name,
			TotalStock:     e.Item.TotalStock,
			AvailableStock: e.AvailableStock,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HoldsHandler) listCart(w http.ResponseWriter, r *http.Request) {
	now := h.Holds.Now()
	view := h.Holds.CartView()
	out := make([]CartItemResp, 0, len(view))
	for _, e := range view {
		remaining := e.Reservation.ExpiresAt.Sub(now).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		out = append(out, CartItemResp{
			ReservationID: e.Reservation.ID,
			ItemID:        e.Item.ID,
			Name:          e.Item.Name,
			ExpiresAt:     e.Reservation.ExpiresAt.UTC(),
			RemainingMs:   remaining,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *HoldsHandler) reserve(w http.ResponseWriter, r *http.Request) {
	var req ReserveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.ItemID == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing item_id"})
		return
	}

	res, ok, err := h.Holds.Reserve(r.Context(), *req.ItemID)
	switch {
	case errors.Is(err, reservations.ErrUnknownItem):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "unknown item"})
		return
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	case !ok:
		writeJSON(w, http.StatusConflict, map[string]any{"reserved": false, "error": "sold out"})
		return
	}
	writeJSON(w, http.StatusCreated, ReservationResp{
		ReservationID: res.ID,
		ItemID:        res.ItemID,
		ExpiresAt:     res.ExpiresAt.UTC(),
	})
}

func (h *HoldsHandler) cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing id"})
		return
	}
	removed := h.Holds.Cancel(r.Context(), id)
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *HoldsHandler) checkout(w http.ResponseWriter, r *http.Request) {
	n := h.Holds.Checkout(r.Context())
	writeJSON(w, http.StatusOK, map[string]int{"released": n})
}
