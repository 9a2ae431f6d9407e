package metrics

import (
	"context"
	"net/http"

	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector counts reservation lifecycle events. It is registered as a
// reservations.Notifier.
type Collector struct {
	created  prometheus.Counter
	rejected prometheus.Counter
	released *prometheus.CounterVec
}

// New registers the collectors on reg. live, if non-nil, backs the
// holds_active gauge.
func New(reg prometheus.Registerer, live func() int) *Collector {
	c := &Collector{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_created_total",
			Help: "Reservations granted.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "holds_rejected_total",
			Help: "Reservations refused because the item was sold out.",
		}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "holds_released_total",
			Help: "Reservations released, by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(c.created, c.rejected, c.released)
	if live != nil {
		reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "holds_active",
			Help: "Reservations currently held.",
		}, func() float64 { return float64(live()) }))
	}
	return c
}

func (c *Collector) Notify(_ context.Context, ev reservations.Event) {
	switch ev.Type {
	case reservations.EventReservationCreated:
		c.created.Inc()
	case reservations.EventReservationRejected:
		c.rejected.Inc()
	case reservations.EventReservationReleased:
		c.released.WithLabelValues(string(ev.Reason)).Inc()
	}
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
