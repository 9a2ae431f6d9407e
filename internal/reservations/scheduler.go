package reservations

import (
	"sync"

	"github.com/jonboulle/clockwork"
)

const expiredQueueSize = 256

type timerEntry struct {
	t clockwork.Timer // nil when the expiry was already due at Arm
}

func (e *timerEntry) stop() {
	if e.t != nil {
		e.t.Stop()
	}
}

// Scheduler keeps exactly one one-shot timer per live reservation. A fired
// timer only posts the reservation id to Expired(); the consumer of that
// channel is the one that mutates the store.
type Scheduler struct {
	clock clockwork.Clock

	mu     sync.Mutex
	timers map[string]*timerEntry
	closed bool

	expired chan string
	done    chan struct{}
}

func NewScheduler(clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{
		clock:   clock,
		timers:  make(map[string]*timerEntry),
		expired: make(chan string, expiredQueueSize),
		done:    make(chan struct{}),
	}
}

func (s *Scheduler) Expired() <-chan string { return s.expired }

// Arm schedules the expiry of r. It reports false if r is already armed or
// the scheduler has been shut down. An expiry in the past fires right away.
func (s *Scheduler) Arm(r Reservation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false
	}
	if _, ok := s.timers[r.ID]; ok {
		return false
	}

	id := r.ID
	e := &timerEntry{}
	s.timers[id] = e

	d := r.ExpiresAt.Sub(s.clock.Now())
	if d <= 0 {
		go s.fire(id, e)
		return true
	}
	// the callback blocks on s.mu until e.t is assigned
	e.t = s.clock.AfterFunc(d, func() { s.fire(id, e) })
	return true
}

// Disarm cancels the pending timer for id. It reports whether a timer was
// still pending; false after the timer already fired.
func (s *Scheduler) Disarm(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.timers[id]
	if !ok {
		return false
	}
	delete(s.timers, id)
	e.stop()
	return true
}

func (s *Scheduler) Armed(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[id]
	return ok
}

func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

func (s *Scheduler) fire(id string, e *timerEntry) {
	s.mu.Lock()
	if cur, ok := s.timers[id]; !ok || cur != e || s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.timers, id)
	s.mu.Unlock()

	select {
	case s.expired <- id:
	case <-s.done:
	}
}

// Shutdown stops every pending timer. Safe to call more than once.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	for id, e := range s.timers {
		e.stop()
		delete(s.timers, id)
	}
	close(s.done)
}
