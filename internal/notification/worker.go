package notification

import (
	"context"
	"fmt"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/sirupsen/logrus"

	"seating-backend/internal/model"
	"seating-backend/internal/parse"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the push subscription storage the workers read from.
type Subscriptions interface {
	PushSubscriptionsFor(ctx context.Context, eventID, token string) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool sends a push notification to every device registered for the
// token behind a seat change.
type WorkerPool struct {
	size    int
	jobs    chan model.SeatChange
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
	log     *logrus.Entry
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size, queue int, subs Subscriptions, webpushOptions *webpush.Options, log *logrus.Entry) *WorkerPool {
	if size <= 0 {
		size = 1
	}
	if queue < size {
		queue = size
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan model.SeatChange, queue),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
		log:     log,
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.WithField("worker", id)
	log.Debug("push worker started")
	for {
		select {
		case change := <-wp.jobs:
			wp.sendNotificationsForChange(ctx, change)
		case <-ctx.Done():
			log.Debug("push worker shutting down")
			return
		}
	}
}

// Dispatch queues a change. Push is best effort: when the queue is full the
// change is dropped.
func (wp *WorkerPool) Dispatch(change model.SeatChange) {
	select {
	case wp.jobs <- change:
	default:
		wp.log.WithFields(logrus.Fields{
			"event": change.EventID,
			"seat":  change.SeatID,
		}).Warn("push queue full; dropping notification")
	}
}

// SeatChanged implements the engine's commit observer.
func (wp *WorkerPool) SeatChanged(_ context.Context, change model.SeatChange) {
	if change.Token == "" {
		return
	}
	wp.Dispatch(change)
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan model.SeatChange {
	return wp.jobs
}

// Message renders the notification text for a change.
func Message(change model.SeatChange) string {
	label := parse.HumanLabel(change.SeatID)
	switch change.Action {
	case model.ActionClaimed:
		return fmt.Sprintf("%s claimed", label)
	case model.ActionReleased:
		return fmt.Sprintf("%s released", label)
	default:
		return fmt.Sprintf("%s details updated", label)
	}
}

func (wp *WorkerPool) sendNotificationsForChange(ctx context.Context, change model.SeatChange) {
	subscriptions, err := wp.subs.PushSubscriptionsFor(ctx, change.EventID, change.Token)
	if err != nil {
		wp.log.WithError(err).WithField("event", change.EventID).Error("failed to fetch push subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	wp.log.WithFields(logrus.Fields{
		"event": change.EventID,
		"seat":  change.SeatID,
		"count": len(subscriptions),
	}).Debug("sending push notifications")

	message := []byte(Message(change))
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, message)
	}
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		wp.log.WithError(err).WithField("endpoint", sub.Endpoint).Warn("failed to send notification")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		wp.log.WithField("endpoint", sub.Endpoint).Info("push subscription expired; deleting")
		if err := wp.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			wp.log.WithError(err).WithField("endpoint", sub.Endpoint).Error("failed to delete expired subscription")
		}
	}
}
