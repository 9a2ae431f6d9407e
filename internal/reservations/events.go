package reservations

import (
	"context"
	"time"
)

const (
	EventReservationCreated  = "ReservationCreated"
	EventReservationRejected = "ReservationRejected"
	EventReservationReleased = "ReservationReleased"
)

type ReleaseReason string

const (
	ReasonCancelled ReleaseReason = "cancelled"
	ReasonCheckout  ReleaseReason = "checkout"
	ReasonExpired   ReleaseReason = "expired"
)

type Event struct {
	Type          string
	ReservationID string
	ItemID        int
	ExpiresAt     time.Time
	Reason        ReleaseReason // only for EventReservationReleased
	OccurredAt    time.Time
}

// Notifier observes reservation lifecycle changes. Notify is called after
// the change is committed in memory and must not block for long.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Notifiers fans an event out to every observer in order.
type Notifiers []Notifier

func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		if n != nil {
			n.Notify(ctx, ev)
		}
	}
}
