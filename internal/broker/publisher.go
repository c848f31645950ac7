// Package broker publishes committed seat changes to a durable RabbitMQ queue
// for auditing.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/model"
)

const (
	publishTimeout = 2 * time.Second
	queueSize      = 256
)

// SeatEvent is the message body. Holder is the reservation token holding the
// seat after the change, empty once released.
type SeatEvent struct {
	EventID    string           `json:"eventId"`
	SeatID     string           `json:"seatId"`
	Action     model.SeatAction `json:"action"`
	Actor      string           `json:"actor"`
	Holder     string           `json:"holder,omitempty"`
	GuestName  string           `json:"guestName,omitempty"`
	Spirit     string           `json:"spiritPreference,omitempty"`
	Version    int64            `json:"version"`
	OccurredAt time.Time        `json:"occurredAt"`
}

// Channel is the subset of *amqp.Channel used for publishing.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher sends seat changes to one queue on the default exchange. A
// single worker owns the channel, which also keeps messages in commit order.
type Publisher struct {
	ch    Channel
	queue string
	jobs  chan model.SeatChange
	conn  *amqp.Connection
	log   *logrus.Entry
}

// Dial connects to the broker and declares the durable queue.
func Dial(cfg config.BrokerConfig, log *logrus.Entry) (*Publisher, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if _, err := ch.QueueDeclare(cfg.Queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq queue declare: %w", err)
	}

	p := NewPublisher(ch, cfg.Queue, log)
	p.conn = conn
	return p, nil
}

// NewPublisher wraps an open channel.
func NewPublisher(ch Channel, queue string, log *logrus.Entry) *Publisher {
	return &Publisher{
		ch:    ch,
		queue: queue,
		jobs:  make(chan model.SeatChange, queueSize),
		log:   log,
	}
}

// Start launches the publishing worker.
func (p *Publisher) Start(ctx context.Context) {
	go p.worker(ctx)
}

func (p *Publisher) worker(ctx context.Context) {
	for {
		select {
		case change := <-p.jobs:
			p.publish(ctx, change)
		case <-ctx.Done():
			return
		}
	}
}

// Dispatch queues a change. Audit messages are best effort: when the queue is
// full the change is dropped and logged.
func (p *Publisher) Dispatch(change model.SeatChange) {
	select {
	case p.jobs <- change:
	default:
		p.log.WithFields(logrus.Fields{
			"event":   change.EventID,
			"seat":    change.SeatID,
			"version": change.Seat.Version,
		}).Warn("broker queue full; dropping seat event")
	}
}

// SeatChanged implements the engine's commit observer. It only queues.
func (p *Publisher) SeatChanged(_ context.Context, change model.SeatChange) {
	p.Dispatch(change)
}

// Close closes the broker connection, if the publisher owns one.
func (p *Publisher) Close() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}

// publish sends change as a persistent message. Failures are logged; the seat
// is already committed.
func (p *Publisher) publish(ctx context.Context, change model.SeatChange) {
	msg, err := build(change)
	if err != nil {
		p.log.WithError(err).Error("failed to encode seat event")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := p.ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.log.WithError(err).WithFields(logrus.Fields{
			"event": change.EventID,
			"seat":  change.SeatID,
		}).Warn("failed to publish seat event")
	}
}

func build(change model.SeatChange) (amqp.Publishing, error) {
	ev := SeatEvent{
		EventID:    change.EventID,
		SeatID:     change.SeatID,
		Action:     change.Action,
		Actor:      change.Token,
		GuestName:  change.Seat.GuestName,
		Spirit:     change.Seat.Spirit,
		Version:    change.Seat.Version,
		OccurredAt: change.Seat.UpdatedAt,
	}
	if change.Seat.ClaimedBy != nil {
		ev.Holder = *change.Seat.ClaimedBy
	}

	body, err := json.Marshal(ev)
	if err != nil {
		return amqp.Publishing{}, err
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("%s/%s/%d", change.EventID, change.SeatID, change.Seat.Version),
		Body:         body,
	}, nil
}
