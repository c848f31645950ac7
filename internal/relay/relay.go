// Package relay shares seat changes between API instances over redis pub/sub
// so that every instance's notifier refreshes its subscribers.
package relay

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/model"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// Message is what instances exchange. It names the changed seat but never
// the token that changed it.
type Message struct {
	Origin  string           `json:"origin"`
	EventID string           `json:"eventId"`
	SeatID  string           `json:"seatId"`
	Action  model.SeatAction `json:"action"`
	Version int64            `json:"version"`
}

// Refresher schedules a snapshot rebuild for an event.
type Refresher interface {
	Refresh(eventID string)
}

// Client is the subset of *redis.Client the relay uses.
type Client interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

// Relay publishes local commits and refreshes on remote ones. Commits are
// queued and published by a single worker so a slow redis never holds up the
// request that made the change.
type Relay struct {
	client  Client
	channel string
	origin  string
	hub     Refresher
	jobs    chan model.SeatChange
	log     *logrus.Entry
}

// Connect returns a redis client, or nil when no address is configured or the
// server does not answer. Callers run without the relay in that case.
func Connect(cfg config.RedisConfig, log *logrus.Entry) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.WithError(err).WithField("addr", cfg.Addr).Warn("redis unreachable; change relay disabled")
		_ = client.Close()
		return nil
	}
	return client
}

// New creates a relay with a fresh instance id.
func New(client Client, channel string, hub Refresher, log *logrus.Entry) *Relay {
	return &Relay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		hub:     hub,
		jobs:    make(chan model.SeatChange, queueSize),
		log:     log,
	}
}

// Start launches the publishing worker. It stops when ctx is done; changes
// still queued at that point are not published.
func (r *Relay) Start(ctx context.Context) {
	go r.worker(ctx)
}

func (r *Relay) worker(ctx context.Context) {
	for {
		select {
		case change := <-r.jobs:
			r.publish(ctx, change)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch queues a change for publishing. When the queue is full the change
// is dropped and logged; peers catch up on the next change of that event, or
// sooner when the watcher is enabled.
func (r *Relay) Dispatch(change model.SeatChange) {
	select {
	case r.jobs <- change:
	default:
		r.log.WithFields(logrus.Fields{
			"event": change.EventID,
			"seat":  change.SeatID,
		}).Warn("relay queue full; dropping seat change")
	}
}

// SeatChanged implements the engine's commit observer.
func (r *Relay) SeatChanged(_ context.Context, change model.SeatChange) {
	r.Dispatch(change)
}

func (r *Relay) publish(ctx context.Context, change model.SeatChange) {
	body, err := r.encode(change)
	if err != nil {
		r.log.WithError(err).Error("failed to encode relay message")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, body).Err(); err != nil {
		r.log.WithError(err).WithField("event", change.EventID).Warn("failed to relay seat change")
	}
}

// Run listens for changes of other instances until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, r.channel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	r.log.WithField("channel", r.channel).Info("relay subscribed")

	msgs := pubsub.Channel()
	for {
		select {
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			r.handle(msg.Payload)
		case <-ctx.Done():
			return nil
		}
	}
}

func (r *Relay) encode(change model.SeatChange) ([]byte, error) {
	return json.Marshal(Message{
		Origin:  r.origin,
		EventID: change.EventID,
		SeatID:  change.SeatID,
		Action:  change.Action,
		Version: change.Seat.Version,
	})
}

// handle refreshes the event of a message published by another instance.
func (r *Relay) handle(payload string) {
	var m Message
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		r.log.WithError(err).Warn("dropping malformed relay message")
		return
	}
	if m.Origin == r.origin || m.EventID == "" {
		return
	}
	r.hub.Refresh(m.EventID)
}
