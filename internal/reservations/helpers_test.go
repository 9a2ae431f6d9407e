package reservations

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-realtime-holds/internal/catalog"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.New([]catalog.Item{
		{ID: 1, Name: "Widget", TotalStock: 1},
		{ID: 2, Name: "Gadget", TotalStock: 3},
		{ID: 3, Name: "Gizmo", TotalStock: 0},
	})
	require.NoError(t, err)
	return c
}

type recordingMirror struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (m *recordingMirror) Save(s Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps = append(m.snaps, s)
}

func (m *recordingMirror) Last() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.snaps) == 0 {
		return Snapshot{}
	}
	return m.snaps[len(m.snaps)-1]
}

func (m *recordingMirror) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.snaps)
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []Event
}

func (n *recordingNotifier) Notify(_ context.Context, ev Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
}

func (n *recordingNotifier) Released(reason ReleaseReason) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events {
		if ev.Type == EventReservationReleased && ev.Reason == reason {
			out = append(out, ev)
		}
	}
	return out
}

func (n *recordingNotifier) OfType(typ string) []Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Event
	for _, ev := range n.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
