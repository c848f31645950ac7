// Package arbiter implements the seat claim/release state machine. Every
// transition is decided against a fresh read of the seat and committed with a
// single conditional write, so concurrent bearers can never both hold a seat.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/model"
	"seating-backend/internal/store"
)

// MaxGuestNameLength bounds guest names, counted in characters after trimming.
const MaxGuestNameLength = 80

// Seats is the part of the seat store the engine needs.
type Seats interface {
	GetSeat(ctx context.Context, eventID, seatID string) (model.Seat, error)
	CountClaimed(ctx context.Context, eventID, token string) (int64, error)
	PutSeat(ctx context.Context, w store.SeatWrite) (model.Seat, error)
}

// Reservations resolves tokens.
type Reservations interface {
	GetReservation(ctx context.Context, eventID, token string) (model.Reservation, error)
}

// Observer is told about every committed seat change. Implementations must
// not block.
type Observer interface {
	SeatChanged(ctx context.Context, change model.SeatChange)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, change model.SeatChange)

func (f ObserverFunc) SeatChanged(ctx context.Context, change model.SeatChange) { f(ctx, change) }

// Outcome is the result of a successful operation. Changed is false when the
// request was a no-op, such as releasing a seat that is already free.
type Outcome struct {
	Seat    model.Seat
	Action  model.SeatAction
	Changed bool
}

// FieldUpdate carries optional guest fields. Nil pointers leave a field as is.
type FieldUpdate struct {
	GuestName *string `json:"guestName"`
	Spirit    *string `json:"spiritPreference"`
}

// Engine arbitrates seat claims of one or more events.
type Engine struct {
	seats        Seats
	reservations Reservations
	maxAttempts  int
	backoff      time.Duration
	observers    []Observer
	log          *logrus.Entry
}

// New creates an engine. Observers may be added with Observe before the
// engine is used.
func New(seats Seats, reservations Reservations, cfg config.ArbiterConfig, log *logrus.Entry) *Engine {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 4
	}
	return &Engine{
		seats:        seats,
		reservations: reservations,
		maxAttempts:  attempts,
		backoff:      cfg.Backoff,
		log:          log,
	}
}

// Observe registers commit observers.
func (e *Engine) Observe(obs ...Observer) {
	e.observers = append(e.observers, obs...)
}

// Resolve returns the reservation for token, or store.ErrNotFound.
func (e *Engine) Resolve(ctx context.Context, eventID, token string) (model.Reservation, error) {
	return e.reservations.GetReservation(ctx, eventID, token)
}

// Claim moves a free seat to token. Claiming a seat token already holds is a
// no-op.
func (e *Engine) Claim(ctx context.Context, eventID, seatID, token string) (Outcome, error) {
	r, err := e.Resolve(ctx, eventID, token)
	if err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, eventID, seatID, token, func(ctx context.Context, seat model.Seat) (transition, error) {
		return e.claim(ctx, seat, r)
	})
}

// Release frees a seat held by token. Releasing a free seat is a no-op.
func (e *Engine) Release(ctx context.Context, eventID, seatID, token string) (Outcome, error) {
	if _, err := e.Resolve(ctx, eventID, token); err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, eventID, seatID, token, func(_ context.Context, seat model.Seat) (transition, error) {
		return release(seat, token)
	})
}

// Toggle releases the seat if token holds it and claims it otherwise. The
// choice is made on every attempt from the seat as stored, never from what
// the caller last saw.
func (e *Engine) Toggle(ctx context.Context, eventID, seatID, token string) (Outcome, error) {
	r, err := e.Resolve(ctx, eventID, token)
	if err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, eventID, seatID, token, func(ctx context.Context, seat model.Seat) (transition, error) {
		if seat.HeldBy(token) {
			return release(seat, token)
		}
		return e.claim(ctx, seat, r)
	})
}

// UpdateFields writes guest fields of a seat token holds. Concurrent updates
// are last-write-wins in commit order.
func (e *Engine) UpdateFields(ctx context.Context, eventID, seatID, token string, u FieldUpdate) (Outcome, error) {
	u, err := normalize(u)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := e.Resolve(ctx, eventID, token); err != nil {
		return Outcome{}, err
	}
	return e.commit(ctx, eventID, seatID, token, func(_ context.Context, seat model.Seat) (transition, error) {
		if !seat.HeldBy(token) {
			return transition{}, ErrNotOwner
		}
		next := seat
		if u.GuestName != nil {
			next.GuestName = *u.GuestName
		}
		if u.Spirit != nil {
			next.Spirit = *u.Spirit
		}
		if next.GuestName == seat.GuestName && next.Spirit == seat.Spirit {
			return transition{action: model.ActionUpdated}, nil
		}
		return transition{next: &next, action: model.ActionUpdated}, nil
	})
}

// transition is the decision taken for one attempt. A nil next means no-op.
type transition struct {
	next   *model.Seat
	action model.SeatAction
	quota  *store.QuotaGuard
}

func (e *Engine) claim(ctx context.Context, seat model.Seat, r model.Reservation) (transition, error) {
	if seat.HeldBy(r.Token) {
		return transition{action: model.ActionClaimed}, nil
	}
	if !seat.IsFree() {
		return transition{}, ErrSeatTaken
	}
	held, err := e.seats.CountClaimed(ctx, seat.EventID, r.Token)
	if err != nil {
		return transition{}, err
	}
	if held >= int64(r.SeatQuota) {
		return transition{}, &QuotaExceededError{Quota: r.SeatQuota}
	}

	token := r.Token
	next := seat
	next.ClaimedBy = &token
	next.GuestName = ""
	next.Spirit = ""
	return transition{
		next:   &next,
		action: model.ActionClaimed,
		quota:  &store.QuotaGuard{Token: r.Token, Limit: r.SeatQuota},
	}, nil
}

func release(seat model.Seat, token string) (transition, error) {
	if seat.IsFree() {
		return transition{action: model.ActionReleased}, nil
	}
	if !seat.HeldBy(token) {
		return transition{}, ErrNotOwner
	}
	next := seat
	next.ClaimedBy = nil
	next.GuestName = ""
	next.Spirit = ""
	return transition{next: &next, action: model.ActionReleased}, nil
}

// commit re-reads the seat, asks decide for a transition and writes it
// conditionally on the version it read. A lost race starts over from a fresh
// read.
func (e *Engine) commit(ctx context.Context, eventID, seatID, token string,
	decide func(context.Context, model.Seat) (transition, error)) (Outcome, error) {

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := e.wait(ctx, attempt); err != nil {
				return Outcome{}, err
			}
		}

		seat, err := e.seats.GetSeat(ctx, eventID, seatID)
		if err != nil {
			return Outcome{}, err
		}
		t, err := decide(ctx, seat)
		if err != nil {
			return Outcome{}, err
		}
		if t.next == nil {
			return Outcome{Seat: seat, Action: t.action}, nil
		}

		committed, err := e.seats.PutSeat(ctx, store.SeatWrite{
			Seat:            *t.next,
			ExpectedVersion: seat.Version,
			Quota:           t.quota,
		})
		if errors.Is(err, store.ErrConflict) {
			e.log.WithFields(logrus.Fields{
				"event":   eventID,
				"seat":    seatID,
				"attempt": attempt,
			}).Debug("seat write lost a race, re-evaluating")
			continue
		}
		if err != nil {
			return Outcome{}, err
		}

		e.publish(ctx, model.SeatChange{
			EventID: eventID,
			SeatID:  seatID,
			Action:  t.action,
			Token:   token,
			Seat:    committed,
		})
		return Outcome{Seat: committed, Action: t.action, Changed: true}, nil
	}

	e.log.WithFields(logrus.Fields{"event": eventID, "seat": seatID}).
		Warn("giving up on contended seat")
	return Outcome{}, fmt.Errorf("%w: seat %s after %d attempts", ErrTransientConflict, seatID, e.maxAttempts)
}

func (e *Engine) wait(ctx context.Context, attempt int) error {
	if e.backoff <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(e.backoff * time.Duration(attempt-1))
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", store.ErrUnavailable, ctx.Err())
	}
}

// publish runs observers detached from the caller's cancellation; the seat is
// already committed.
func (e *Engine) publish(ctx context.Context, change model.SeatChange) {
	ctx = context.WithoutCancel(ctx)
	for _, o := range e.observers {
		o.SeatChanged(ctx, change)
	}
}

func normalize(u FieldUpdate) (FieldUpdate, error) {
	if u.GuestName == nil && u.Spirit == nil {
		return u, fmt.Errorf("%w: nothing to update", ErrInvalidField)
	}
	if u.GuestName != nil {
		name := strings.TrimSpace(*u.GuestName)
		if utf8.RuneCountInString(name) > MaxGuestNameLength {
			return u, fmt.Errorf("%w: guest name longer than %d characters", ErrInvalidField, MaxGuestNameLength)
		}
		u.GuestName = &name
	}
	if u.Spirit != nil {
		spirit := strings.TrimSpace(*u.Spirit)
		if !model.IsValidSpirit(spirit) {
			return u, fmt.Errorf("%w: unknown spirit preference %q", ErrInvalidField, spirit)
		}
		u.Spirit = &spirit
	}
	return u, nil
}
