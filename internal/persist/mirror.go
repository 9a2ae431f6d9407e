package persist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/reservations"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

const (
	defaultWriteTimeout = 3 * time.Second
	defaultRetryDelay   = 2 * time.Second
)

// Mirror keeps a durable copy of the reservation set. Saves are
// fire-and-forget: only the newest pending snapshot is kept and a single
// goroutine writes it. Failures are logged, never returned.
type Mirror struct {
	backend      Backend
	clock        clockwork.Clock
	log          *zap.Logger
	writeTimeout time.Duration
	retryDelay   time.Duration

	mu       sync.Mutex
	pending  *reservations.Snapshot
	written  uint64
	inflight uint64
	started  bool

	kick      chan struct{}
	closeCh   chan struct{}
	doneCh    chan struct{}
	closeOnce sync.Once
	writeMu   sync.Mutex
}

func NewMirror(backend Backend, clock clockwork.Clock, log *zap.Logger) *Mirror {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Mirror{
		backend:      backend,
		clock:        clock,
		log:          log,
		writeTimeout: defaultWriteTimeout,
		retryDelay:   defaultRetryDelay,
		kick:         make(chan struct{}, 1),
		closeCh:      make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Load returns the persisted reservations that are still live. Missing or
// unreadable state yields an empty set.
func (m *Mirror) Load(ctx context.Context) []reservations.Reservation {
	b, err := m.backend.Read(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		m.log.Warn("load reservations", zap.Error(fmt.Errorf("%w: %v", ErrRead, err)))
		return nil
	}
	rs, err := Decode(b)
	if err != nil {
		m.log.Warn("decode reservations, starting empty", zap.Error(fmt.Errorf("%w: %v", ErrRead, err)))
		return nil
	}

	now := m.clock.Now()
	live := rs[:0]
	for _, r := range rs {
		if r.LiveAt(now) {
			live = append(live, r)
		}
	}
	return live
}

// Save queues snap for writing unless a newer state is already queued,
// being written or written.
func (m *Mirror) Save(snap reservations.Snapshot) {
	m.mu.Lock()
	if !m.newerLocked(snap.Rev) {
		m.mu.Unlock()
		return
	}
	m.pending = &snap
	m.mu.Unlock()

	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Start runs the writer until ctx is cancelled or Close is called; either
// way the last pending snapshot is flushed first. A failed write is retried
// after retryDelay unless a newer save arrives sooner.
func (m *Mirror) Start(ctx context.Context) {
	m.mu.Lock()
	m.started = true
	m.mu.Unlock()

	go func() {
		defer close(m.doneCh)
		var retry <-chan time.Time
		for {
			select {
			case <-m.kick:
				retry = m.retryAfter(m.flush(ctx))
			case <-retry:
				retry = m.retryAfter(m.flush(ctx))
			case <-ctx.Done():
				m.Flush(context.Background())
				return
			case <-m.closeCh:
				m.Flush(context.Background())
				return
			}
		}
	}()
}

func (m *Mirror) retryAfter(err error) <-chan time.Time {
	if err == nil {
		return nil
	}
	return m.clock.After(m.retryDelay)
}

// Flush writes the pending snapshot now, if there is one.
func (m *Mirror) Flush(ctx context.Context) {
	_ = m.flush(ctx)
}

func (m *Mirror) flush(ctx context.Context) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()

	m.mu.Lock()
	snap := m.pending
	m.pending = nil
	if snap == nil || snap.Rev <= m.written {
		m.mu.Unlock()
		return nil
	}
	m.inflight = snap.Rev
	m.mu.Unlock()

	err := m.write(ctx, snap)

	m.mu.Lock()
	m.inflight = 0
	switch {
	case err != nil:
		// keep the failed state for the next attempt unless something newer replaced it
		if m.pending == nil && snap.Rev > m.written {
			m.pending = snap
		}
	case snap.Rev > m.written:
		m.written = snap.Rev
	}
	m.mu.Unlock()
	return err
}

func (m *Mirror) write(ctx context.Context, snap *reservations.Snapshot) error {
	blob, err := Encode(snap.Reservations)
	if err != nil {
		m.log.Error("encode reservations", zap.Error(err))
		return err
	}

	wctx, cancel := context.WithTimeout(ctx, m.writeTimeout)
	defer cancel()
	if err := m.backend.Write(wctx, blob); err != nil {
		err = fmt.Errorf("%w: %v", ErrWrite, err)
		m.log.Warn("persist reservations",
			zap.Uint64("rev", snap.Rev),
			zap.Int("count", len(snap.Reservations)),
			zap.Error(err),
		)
		return err
	}
	return nil
}

// newerLocked reports whether rev is ahead of everything queued, in flight
// or already written.
func (m *Mirror) newerLocked(rev uint64) bool {
	if rev <= m.written || rev <= m.inflight {
		return false
	}
	return m.pending == nil || rev > m.pending.Rev
}

// Close flushes what is pending and stops the writer.
func (m *Mirror) Close() {
	m.closeOnce.Do(func() { close(m.closeCh) })

	m.mu.Lock()
	started := m.started
	m.mu.Unlock()
	if started {
		<-m.doneCh
		return
	}
	m.Flush(context.Background())
}
