// Package notifier fans committed seat changes out to live observers as full
// snapshots of the event.
package notifier

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/model"
	"seating-backend/internal/store"
)

const retryDelay = time.Second

// Source lists the seats of an event in table then seat order.
type Source interface {
	ListSeats(ctx context.Context, eventID string) ([]model.Seat, error)
}

// Hub rebuilds snapshots on a pool of workers and hands them to subscribers.
// Refresh requests for the same event coalesce while one is queued.
type Hub struct {
	size   int
	jobs   chan string
	source Source
	log    *logrus.Entry
	stop   chan struct{}

	mu      sync.Mutex
	pending map[string]bool
	subs    map[string]map[*Subscription]struct{}
}

// NewHub creates a hub. Start must be called for refreshes to be delivered.
func NewHub(source Source, cfg config.NotifierConfig, log *logrus.Entry) *Hub {
	size := cfg.Workers
	if size <= 0 {
		size = 1
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = size
	}
	return &Hub{
		size:    size,
		jobs:    make(chan string, queue),
		source:  source,
		log:     log,
		stop:    make(chan struct{}),
		pending: make(map[string]bool),
		subs:    make(map[string]map[*Subscription]struct{}),
	}
}

// Start launches the worker goroutines. They exit when ctx is done.
func (h *Hub) Start(ctx context.Context) {
	for i := 0; i < h.size; i++ {
		go h.worker(ctx, i)
	}
	go func() {
		<-ctx.Done()
		close(h.stop)
	}()
}

func (h *Hub) worker(ctx context.Context, id int) {
	h.log.WithField("worker", id).Debug("snapshot worker started")
	for {
		select {
		case eventID := <-h.jobs:
			h.mu.Lock()
			delete(h.pending, eventID)
			h.mu.Unlock()
			h.rebuild(ctx, eventID)
		case <-ctx.Done():
			h.log.WithField("worker", id).Debug("snapshot worker shutting down")
			return
		}
	}
}

// Refresh schedules a new snapshot of eventID for its subscribers. Events
// nobody watches are skipped. Refresh never blocks: when the queue is full
// the request is retried after retryDelay.
func (h *Hub) Refresh(eventID string) {
	h.mu.Lock()
	if len(h.subs[eventID]) == 0 || h.pending[eventID] {
		h.mu.Unlock()
		return
	}
	h.pending[eventID] = true
	h.mu.Unlock()

	select {
	case <-h.stop:
		return
	default:
	}

	select {
	case h.jobs <- eventID:
	default:
		h.mu.Lock()
		delete(h.pending, eventID)
		h.mu.Unlock()
		h.log.WithField("event", eventID).Warn("snapshot queue full; retrying refresh later")
		time.AfterFunc(retryDelay, func() { h.Refresh(eventID) })
	}
}

// SeatChanged refreshes the event of a committed change.
func (h *Hub) SeatChanged(_ context.Context, change model.SeatChange) {
	h.Refresh(change.EventID)
}

// Subscribe registers an observer of eventID and delivers the current
// snapshot right away. The subscription ends when ctx is done or Close is
// called. An event without seats is reported as store.ErrNotFound.
func (h *Hub) Subscribe(ctx context.Context, eventID string) (*Subscription, error) {
	first, err := h.build(ctx, eventID)
	if err != nil {
		return nil, err
	}

	sub := &Subscription{EventID: eventID, hub: h, ch: make(chan Snapshot, 1), done: make(chan struct{})}
	h.mu.Lock()
	if h.subs[eventID] == nil {
		h.subs[eventID] = make(map[*Subscription]struct{})
	}
	h.subs[eventID][sub] = struct{}{}
	h.mu.Unlock()

	sub.offer(first)
	// A commit may have landed between the read and the registration.
	h.Refresh(eventID)

	go func() {
		select {
		case <-ctx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()
	return sub, nil
}

// Current returns a fresh snapshot of eventID without subscribing.
func (h *Hub) Current(ctx context.Context, eventID string) (Snapshot, error) {
	return h.build(ctx, eventID)
}

// Subscribers returns how many observers watch eventID.
func (h *Hub) Subscribers(eventID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[eventID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subs[sub.EventID], sub)
	if len(h.subs[sub.EventID]) == 0 {
		delete(h.subs, sub.EventID)
	}
}

func (h *Hub) build(ctx context.Context, eventID string) (Snapshot, error) {
	seats, err := h.source.ListSeats(ctx, eventID)
	if err != nil {
		return Snapshot{}, err
	}
	if len(seats) == 0 {
		return Snapshot{}, store.ErrNotFound
	}
	return newSnapshot(eventID, seats), nil
}

func (h *Hub) rebuild(ctx context.Context, eventID string) {
	snap, err := h.build(ctx, eventID)
	if err != nil {
		h.log.WithError(err).WithField("event", eventID).Warn("failed to rebuild snapshot; retrying")
		time.AfterFunc(retryDelay, func() { h.Refresh(eventID) })
		return
	}

	h.mu.Lock()
	subs := make([]*Subscription, 0, len(h.subs[eventID]))
	for s := range h.subs[eventID] {
		subs = append(subs, s)
	}
	h.mu.Unlock()

	delivered := 0
	for _, s := range subs {
		if s.offer(snap) {
			delivered++
		}
	}
	h.log.WithFields(logrus.Fields{
		"event":     eventID,
		"revision":  snap.Revision,
		"delivered": delivered,
	}).Debug("snapshot published")
}
