package reservations

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const DefaultTTL = 5 * time.Minute

const tracerName = "github.com/ariefcatur/go-realtime-holds/internal/reservations"

// Mirror receives every committed state. Save must not block.
type Mirror interface {
	Save(snap Snapshot)
}

type Deps struct {
	Catalog  *catalog.Catalog
	Clock    clockwork.Clock
	TTL      time.Duration
	Mirror   Mirror
	Notifier Notifier
	Logger   *zap.Logger
}

// Service is the operation surface used by the HTTP layer. Every mutation
// (reserve, cancel, checkout, expiry, restore) runs under mu so that the
// store change and the matching timer arm/disarm happen as one step.
type Service struct {
	catalog  *catalog.Catalog
	clock    clockwork.Clock
	ttl      time.Duration
	store    *Store
	sched    *Scheduler
	mirror   Mirror
	notifier Notifier
	log      *zap.Logger
	tracer   trace.Tracer

	mu sync.Mutex

	done      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewService(d Deps) (*Service, error) {
	if d.Catalog == nil {
		return nil, errors.New("reservations: catalog is required")
	}
	if d.TTL == 0 {
		d.TTL = DefaultTTL
	}
	if d.TTL < 0 {
		return nil, fmt.Errorf("reservations: invalid ttl %s", d.TTL)
	}
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = Notifiers(nil)
	}
	return &Service{
		catalog:  d.Catalog,
		clock:    d.Clock,
		ttl:      d.TTL,
		store:    NewStore(d.Catalog, d.Clock),
		sched:    NewScheduler(d.Clock),
		mirror:   d.Mirror,
		notifier: d.Notifier,
		log:      d.Logger,
		tracer:   otel.Tracer(tracerName),
		done:     make(chan struct{}),
	}, nil
}

// Start runs the expiry loop until ctx is cancelled or Close is called.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case id := <-s.sched.Expired():
				s.expire(ctx, id)
			case <-ctx.Done():
				return
			case <-s.done:
				return
			}
		}
	}()
}

// Close releases every pending timer and waits for the expiry loop.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.sched.Shutdown()
		close(s.done)
	})
	s.wg.Wait()
}

// Restore seeds the store with reservations recovered at startup and arms
// a timer for each survivor.
func (s *Service) Restore(rs []Reservation) int {
	s.mu.Lock()
	kept := s.store.Seed(rs)
	for _, r := range kept {
		s.sched.Arm(r)
	}
	snap := s.store.Export()
	s.mu.Unlock()

	s.save(snap)
	if dropped := len(rs) - len(kept); dropped > 0 {
		s.log.Info("dropped stale reservations on restore", zap.Int("dropped", dropped))
	}
	return len(kept)
}

// Reserve holds one unit of itemID for the configured TTL. A sold-out item
// yields ok=false with a nil error; an unknown item yields ErrUnknownItem.
func (s *Service) Reserve(ctx context.Context, itemID int) (r Reservation, ok bool, err error) {
	ctx, span := s.tracer.Start(ctx, "reservations.Reserve",
		trace.WithAttributes(attribute.Int("item.id", itemID)))
	defer span.End()

	s.mu.Lock()
	r, err = s.store.TryReserve(itemID, s.ttl)
	if err != nil {
		s.mu.Unlock()
		if errors.Is(err, ErrCapacityExceeded) {
			span.SetAttributes(attribute.Bool("reservation.granted", false))
			s.log.Debug("reservation rejected", zap.Int("item_id", itemID))
			s.notifier.Notify(ctx, Event{
				Type:       EventReservationRejected,
				ItemID:     itemID,
				OccurredAt: s.clock.Now().UTC(),
			})
			return Reservation{}, false, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return Reservation{}, false, err
	}
	s.sched.Arm(r)
	snap := s.store.Export()
	s.mu.Unlock()

	s.save(snap)
	span.SetAttributes(
		attribute.Bool("reservation.granted", true),
		attribute.String("reservation.id", r.ID),
	)
	s.log.Info("reservation created",
		zap.String("reservation_id", r.ID),
		zap.Int("item_id", r.ItemID),
		zap.Time("expires_at", r.ExpiresAt),
	)
	s.notifier.Notify(ctx, Event{
		Type:          EventReservationCreated,
		ReservationID: r.ID,
		ItemID:        r.ItemID,
		ExpiresAt:     r.ExpiresAt,
		OccurredAt:    s.clock.Now().UTC(),
	})
	return r, true, nil
}

// Cancel releases a reservation. Unknown or already released ids are a no-op.
func (s *Service) Cancel(ctx context.Context, id string) bool {
	ctx, span := s.tracer.Start(ctx, "reservations.Cancel",
		trace.WithAttributes(attribute.String("reservation.id", id)))
	defer span.End()

	s.mu.Lock()
	s.sched.Disarm(id)
	r, removed := s.store.Take(id)
	var snap Snapshot
	if removed {
		snap = s.store.Export()
	}
	s.mu.Unlock()

	span.SetAttributes(attribute.Bool("reservation.removed", removed))
	if !removed {
		return false
	}
	s.save(snap)
	s.released(ctx, r, ReasonCancelled)
	return true
}

// Checkout releases every live reservation and returns how many there were.
func (s *Service) Checkout(ctx context.Context) int {
	ctx, span := s.tracer.Start(ctx, "reservations.Checkout")
	defer span.End()

	s.mu.Lock()
	removed := s.store.RemoveAll()
	for _, r := range removed {
		s.sched.Disarm(r.ID)
	}
	snap := s.store.Export()
	s.mu.Unlock()

	span.SetAttributes(attribute.Int("reservation.count", len(removed)))
	if len(removed) == 0 {
		return 0
	}
	s.save(snap)
	for _, r := range removed {
		s.released(ctx, r, ReasonCheckout)
	}
	return len(removed)
}

func (s *Service) expire(ctx context.Context, id string) {
	s.mu.Lock()
	r, removed := s.store.Take(id)
	var snap Snapshot
	if removed {
		snap = s.store.Export()
	}
	s.mu.Unlock()

	// lost the race against Cancel or Checkout
	if !removed {
		return
	}
	s.save(snap)
	s.released(ctx, r, ReasonExpired)
}

func (s *Service) released(ctx context.Context, r Reservation, reason ReleaseReason) {
	s.log.Info("reservation released",
		zap.String("reservation_id", r.ID),
		zap.Int("item_id", r.ItemID),
		zap.String("reason", string(reason)),
	)
	s.notifier.Notify(ctx, Event{
		Type:          EventReservationReleased,
		ReservationID: r.ID,
		ItemID:        r.ItemID,
		ExpiresAt:     r.ExpiresAt,
		Reason:        reason,
		OccurredAt:    s.clock.Now().UTC(),
	})
}

func (s *Service) save(snap Snapshot) {
	if s.mirror != nil {
		s.mirror.Save(snap)
	}
}

func (s *Service) CatalogView() []CatalogEntry {
	items := s.catalog.List()
	out := make([]CatalogEntry, 0, len(items))
	for _, it := range items {
		avail, _ := s.store.AvailableStock(it.ID)
		out = append(out, CatalogEntry{Item: it, AvailableStock: avail})
	}
	return out
}

func (s *Service) CartView() []CartEntry {
	snap := s.store.Snapshot()
	out := make([]CartEntry, 0, len(snap))
	for _, r := range snap {
		it, ok := s.catalog.Lookup(r.ItemID)
		if !ok {
			continue
		}
		out = append(out, CartEntry{Reservation: r, Item: it})
	}
	return out
}

func (s *Service) AvailableStock(itemID int) (int, error) {
	return s.store.AvailableStock(itemID)
}

// Live is the number of unexpired reservations.
func (s *Service) Live() int { return s.store.Live() }

// PendingTimers is the number of armed expiry timers.
func (s *Service) PendingTimers() int { return s.sched.Pending() }

func (s *Service) Now() time.Time { return s.clock.Now() }
