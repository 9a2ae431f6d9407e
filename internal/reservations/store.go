package reservations

import (
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

// Store owns the reservation set. Reads filter by wall-clock time, so a
// reservation past its expiry is invisible even before the scheduler
// removes it.
type Store struct {
	catalog *catalog.Catalog
	clock   clockwork.Clock

	mu    sync.RWMutex
	items []Reservation // insertion order
	rev   uint64
}

func NewStore(cat *catalog.Catalog, clock clockwork.Clock) *Store {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Store{catalog: cat, clock: clock}
}

// TryReserve checks availability and inserts a new reservation in one
// critical section.
func (s *Store) TryReserve(itemID int, ttl time.Duration) (Reservation, error) {
	item, ok := s.catalog.Lookup(itemID)
	if !ok {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrUnknownItem, itemID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	if item.TotalStock-s.liveCountLocked(itemID, now) <= 0 {
		return Reservation{}, fmt.Errorf("%w: id=%d", ErrCapacityExceeded, itemID)
	}

	r := Reservation{
		ID:        uuid.NewString(),
		ItemID:    itemID,
		ExpiresAt: expiryAt(now, ttl),
	}
	s.items = append(s.items, r)
	s.rev++
	return r, nil
}

// expiryAt rounds now+ttl up to whole milliseconds, the resolution of the
// durable format.
func expiryAt(now time.Time, ttl time.Duration) time.Time {
	exact := now.Add(ttl)
	at := time.UnixMilli(exact.UnixMilli())
	if at.Before(exact) {
		at = at.Add(time.Millisecond)
	}
	return at
}

func (s *Store) Remove(id string) bool {
	_, ok := s.Take(id)
	return ok
}

// Take removes the reservation and returns it. Removing an unknown id is a no-op.
func (s *Store) Take(id string) (Reservation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			s.rev++
			return r, true
		}
	}
	return Reservation{}, false
}

// RemoveAll drops every live reservation and returns them. Reservations
// already past expiry are left for the scheduler.
func (s *Store) RemoveAll() []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var removed []Reservation
	kept := s.items[:0]
	for _, r := range s.items {
		if r.LiveAt(now) {
			removed = append(removed, r)
			continue
		}
		kept = append(kept, r)
	}
	for i := len(kept); i < len(s.items); i++ {
		s.items[i] = Reservation{}
	}
	s.items = kept
	if len(removed) > 0 {
		s.rev++
	}
	return removed
}

func (s *Store) Snapshot() []Reservation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.liveLocked(s.clock.Now())
}

func (s *Store) Export() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Rev: s.rev, Reservations: s.liveLocked(s.clock.Now())}
}

func (s *Store) AvailableStock(itemID int) (int, error) {
	item, ok := s.catalog.Lookup(itemID)
	if !ok {
		return 0, fmt.Errorf("%w: id=%d", ErrUnknownItem, itemID)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return max(0, item.TotalStock-s.liveCountLocked(itemID, s.clock.Now())), nil
}

// Live counts reservations that have not expired yet.
func (s *Store) Live() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	now := s.clock.Now()
	n := 0
	for _, r := range s.items {
		if r.LiveAt(now) {
			n++
		}
	}
	return n
}

// Seed inserts reservations recovered from durable state. Entries that are
// expired, reference unknown items, repeat an id or would oversell an item
// are dropped. It returns the reservations actually inserted.
func (s *Store) Seed(rs []Reservation) []Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	seen := make(map[string]bool, len(s.items)+len(rs))
	for _, r := range s.items {
		seen[r.ID] = true
	}

	var kept []Reservation
	for _, r := range rs {
		if r.ID == "" || seen[r.ID] || !r.LiveAt(now) {
			continue
		}
		item, ok := s.catalog.Lookup(r.ItemID)
		if !ok || s.liveCountLocked(r.ItemID, now) >= item.TotalStock {
			continue
		}
		seen[r.ID] = true
		s.items = append(s.items, r)
		kept = append(kept, r)
	}
	if len(kept) > 0 {
		s.rev++
	}
	return kept
}

func (s *Store) liveCountLocked(itemID int, now time.Time) int {
	n := 0
	for _, r := range s.items {
		if r.ItemID == itemID && r.LiveAt(now) {
			n++
		}
	}
	return n
}

func (s *Store) liveLocked(now time.Time) []Reservation {
	out := make([]Reservation, 0, len(s.items))
	for _, r := range s.items {
		if r.LiveAt(now) {
			out = append(out, r)
		}
	}
	return out
}
