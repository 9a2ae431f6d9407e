package reservations

import (
	"errors"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
)

var (
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrUnknownItem      = errors.New("unknown catalog item")
)

// Reservation holds exactly one unit of ItemID until ExpiresAt.
// It is never edited after creation, only removed.
type Reservation struct {
	ID        string
	ItemID    int
	ExpiresAt time.Time
}

func (r Reservation) LiveAt(now time.Time) bool { return r.ExpiresAt.After(now) }

// Snapshot is the live reservation set stamped with the store revision
// that produced it.
type Snapshot struct {
	Rev          uint64
	Reservations []Reservation
}

type CatalogEntry struct {
	Item           catalog.Item
	AvailableStock int
}

type CartEntry struct {
	Reservation Reservation
	Item        catalog.Item
}
