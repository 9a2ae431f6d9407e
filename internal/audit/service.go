package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"

	kafkax "github.com/ariefcatur/go-realtime-holds/internal/kafka"
	"github.com/ariefcatur/go-realtime-holds/internal/redisx"
	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const consumerName = "audit"

// Service keeps a per-item count of units currently held, rebuilt from the
// reservation event stream.
type Service struct {
	redis *redis.Client
	log   *zap.Logger

	mu   sync.Mutex
	held map[int]int
}

func NewService(rdb *redis.Client, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{redis: rdb, log: log, held: make(map[int]int)}
}

// HandleEvent is installed as the consumer handler. Redelivered events are
// skipped by event id.
func (s *Service) HandleEvent(ctx context.Context, m kafkago.Message) error {
	env, err := kafkax.UnmarshalEnvelope(m.Value)
	if err != nil {
		// poison message, nothing to retry
		s.log.Warn("dropping undecodable event", zap.Int64("offset", m.Offset), zap.Error(err))
		return nil
	}

	switch env.EventType {
	case reservations.EventReservationCreated, reservations.EventReservationReleased:
	default:
		return nil
	}

	first, err := redisx.FirstSeen(ctx, s.redis, consumerName, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		s.log.Debug("duplicate event", zap.String("event_id", env.EventID))
		return nil
	}

	p, err := kafkax.UnwrapPayload[kafkax.ReservationPayload](env.Payload)
	if err != nil {
		s.log.Warn("dropping event with bad payload", zap.String("event_id", env.EventID), zap.Error(err))
		return nil
	}

	n := s.apply(env.EventType, p.ItemID)
	s.log.Info("held units changed",
		zap.String("event_type", env.EventType),
		zap.String("reservation_id", p.ReservationID),
		zap.Int("item_id", p.ItemID),
		zap.String("reason", p.Reason),
		zap.Int("held", n),
	)
	return nil
}

func (s *Service) apply(eventType string, itemID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch eventType {
	case reservations.EventReservationCreated:
		s.held[itemID]++
	case reservations.EventReservationReleased:
		if s.held[itemID] > 0 {
			s.held[itemID]--
		}
	}
	n := s.held[itemID]
	if n == 0 {
		delete(s.held, itemID)
	}
	return n
}

func (s *Service) Held(itemID int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.held[itemID]
}

// Items lists item ids with at least one held unit, ascending.
func (s *Service) Items() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.held))
	for id := range s.held {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}
