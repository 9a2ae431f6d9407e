package audit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	kafkax "github.com/ariefcatur/go-realtime-holds/internal/kafka"
	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService(t *testing.T) (*Service, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewService(rdb, nil), mr
}

func message(eventID, eventType string, itemID int, reason string) kafkago.Message {
	env := kafkax.Envelope{
		EventID:      eventID,
		EventType:    eventType,
		EventVersion: 1,
		OccurredAt:   time.Now().UTC(),
		Producer:     "test",
		Payload: kafkax.MustMarshal(kafkax.ReservationPayload{
			ReservationID: "r-" + eventID,
			ItemID:        itemID,
			Reason:        reason,
		}),
	}
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestHandleEvent_Tally(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.HandleEvent(ctx, message("e1", reservations.EventReservationCreated, 1, "")))
	require.NoError(t, s.HandleEvent(ctx, message("e2", reservations.EventReservationCreated, 1, "")))
	require.NoError(t, s.HandleEvent(ctx, message("e3", reservations.EventReservationCreated, 2, "")))
	assert.Equal(t, 2, s.Held(1))
	assert.Equal(t, []int{1, 2}, s.Items())

	require.NoError(t, s.HandleEvent(ctx, message("e4", reservations.EventReservationReleased, 1, "expired")))
	require.NoError(t, s.HandleEvent(ctx, message("e5", reservations.EventReservationReleased, 2, "checkout")))
	assert.Equal(t, 1, s.Held(1))
	assert.Equal(t, 0, s.Held(2))
	assert.Equal(t, []int{1}, s.Items())
}

func TestHandleEvent_DuplicateIgnored(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()
	id := uuid.NewString()

	m := message(id, reservations.EventReservationCreated, 3, "")
	require.NoError(t, s.HandleEvent(ctx, m))
	require.NoError(t, s.HandleEvent(ctx, m))
	assert.Equal(t, 1, s.Held(3))
	assert.True(t, mr.Exists("dedup:audit:"+id))
}

func TestHandleEvent_ReleaseFloorsAtZero(t *testing.T) {
	s, _ := newTestService(t)
	require.NoError(t, s.HandleEvent(context.Background(), message("e1", reservations.EventReservationReleased, 4, "cancelled")))
	assert.Equal(t, 0, s.Held(4))
	assert.Empty(t, s.Items())
}

func TestHandleEvent_SkipsOtherTypesAndGarbage(t *testing.T) {
	s, mr := newTestService(t)
	ctx := context.Background()

	require.NoError(t, s.HandleEvent(ctx, message("e1", reservations.EventReservationRejected, 1, "")))
	require.NoError(t, s.HandleEvent(ctx, kafkago.Message{Value: []byte("{not json")}))
	assert.Empty(t, s.Items())
	assert.False(t, mr.Exists("dedup:audit:e1"))
}

func TestHandleEvent_RedisDownIsRetryable(t *testing.T) {
	s, mr := newTestService(t)
	mr.Close()

	err := s.HandleEvent(context.Background(), message("e1", reservations.EventReservationCreated, 1, ""))
	assert.Error(t, err)
	assert.Equal(t, 0, s.Held(1))
}
