package notifier

import (
	"sync"
	"time"

	"seating-backend/internal/model"
)

// Snapshot is a sorted point-in-time view of all seats of an event. Revision
// is the sum of the seat versions and only ever grows.
type Snapshot struct {
	EventID  string       `json:"eventId"`
	Revision int64        `json:"revision"`
	Seats    []model.Seat `json:"seats"`
	TakenAt  time.Time    `json:"takenAt"`
}

func newSnapshot(eventID string, seats []model.Seat) Snapshot {
	var rev int64
	for _, s := range seats {
		rev += s.Version
	}
	return Snapshot{EventID: eventID, Revision: rev, Seats: seats, TakenAt: time.Now().UTC()}
}

// Subscription is one observer's stream of snapshots. Only the latest
// undelivered snapshot is kept, and a snapshot is never older than one
// already accepted.
type Subscription struct {
	EventID string

	hub  *Hub
	ch   chan Snapshot
	done chan struct{}

	mu       sync.Mutex
	last     int64
	accepted bool
	closed   bool
}

// C returns the snapshot channel. It is closed when the subscription ends.
func (s *Subscription) C() <-chan Snapshot {
	return s.ch
}

// Close ends the subscription. It is safe to call more than once.
func (s *Subscription) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.ch)
	close(s.done)
	s.mu.Unlock()

	s.hub.remove(s)
}

// offer queues snap unless it is not newer than the last accepted one. A
// pending snapshot the reader has not taken yet is replaced.
func (s *Subscription) offer(snap Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || (s.accepted && snap.Revision <= s.last) {
		return false
	}
	s.accepted = true
	s.last = snap.Revision

	select {
	case <-s.ch:
	default:
	}
	s.ch <- snap
	return true
}
