package persist

import (
	"encoding/json"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
)

// StateKey names the single blob the reservation set is stored under.
const StateKey = "reservations_v1"

type record struct {
	ID        string `json:"id"`
	ItemID    int    `json:"itemId"`
	ExpiresAt int64  `json:"expiresAt"` // epoch millis
}

func Encode(rs []reservations.Reservation) ([]byte, error) {
	out := make([]record, 0, len(rs))
	for _, r := range rs {
		out = append(out, record{ID: r.ID, ItemID: r.ItemID, ExpiresAt: r.ExpiresAt.UnixMilli()})
	}
	return json.Marshal(out)
}

// Decode parses a stored blob. Unknown fields are ignored and records
// without an id are skipped.
func Decode(b []byte) ([]reservations.Reservation, error) {
	var recs []record
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, err
	}
	out := make([]reservations.Reservation, 0, len(recs))
	for _, rec := range recs {
		if rec.ID == "" {
			continue
		}
		out = append(out, reservations.Reservation{
			ID:        rec.ID,
			ItemID:    rec.ItemID,
			ExpiresAt: time.UnixMilli(rec.ExpiresAt),
		})
	}
	return out, nil
}
