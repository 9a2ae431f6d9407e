package redisx

import "time"

const (
	// Durable reservation set: reservations_v1 -> JSON array blob
	KeyReservationState = "reservations_v1"

	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLDedup = 48 * time.Hour
)
