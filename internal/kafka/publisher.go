package kafka

import (
	"context"
	"strconv"

	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
)

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Publisher forwards reservation lifecycle events to Kafka.
type Publisher struct {
	producer publisher
	service  string
}

func NewPublisher(p *Producer, service string) *Publisher {
	return &Publisher{producer: p, service: service}
}

func (p *Publisher) Notify(ctx context.Context, ev reservations.Event) {
	env := Envelope{
		EventID:       uuid.NewString(),
		EventType:     ev.Type,
		EventVersion:  1,
		OccurredAt:    ev.OccurredAt,
		Producer:      p.service,
		CorrelationID: ev.ReservationID,
		Payload: MustMarshal(ReservationPayload{
			ReservationID: ev.ReservationID,
			ItemID:        ev.ItemID,
			ExpiresAt:     ev.ExpiresAt,
			Reason:        string(ev.Reason),
		}),
	}

	// rejections carry no reservation id; key them by item so they stay ordered per item
	key := ev.ReservationID
	if key == "" {
		key = "item:" + strconv.Itoa(ev.ItemID)
	}
	p.producer.Publish([]byte(key), MustMarshal(env),
		kafkago.Header{Key: "x-event-type", Value: []byte(ev.Type)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}
