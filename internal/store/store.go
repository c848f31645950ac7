package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"seating-backend/internal/model"
)

var (
	// ErrNotFound is returned when an event, seat or reservation does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned by PutSeat when the stored seat no longer
	// matches the expected version (or the quota guard failed).
	ErrConflict = errors.New("write conflict")
	// ErrAlreadyExists is returned when creating a record whose key is taken.
	ErrAlreadyExists = errors.New("already exists")
	// ErrUnavailable wraps timeouts and backend failures. Callers may retry later.
	ErrUnavailable = errors.New("storage unavailable")
)

// QuotaGuard makes a seat write conditional on Token holding fewer than Limit
// seats of the event at commit time.
type QuotaGuard struct {
	Token string
	Limit int
}

// SeatWrite is a conditional seat write. Seat carries the new claim and field
// values; the write only applies if the stored version equals ExpectedVersion.
type SeatWrite struct {
	Seat            model.Seat
	ExpectedVersion int64
	Quota           *QuotaGuard
}

// SeatStore is the keyed seat storage the arbitration engine builds on.
type SeatStore interface {
	GetSeat(ctx context.Context, eventID, seatID string) (model.Seat, error)
	ListSeats(ctx context.Context, eventID string) ([]model.Seat, error)
	CountClaimed(ctx context.Context, eventID, token string) (int64, error)
	PutSeat(ctx context.Context, w SeatWrite) (model.Seat, error)
	Revisions(ctx context.Context) (map[string]int64, error)
}

// ReservationStore holds write-once reservations.
type ReservationStore interface {
	GetReservation(ctx context.Context, eventID, token string) (model.Reservation, error)
	CreateReservation(ctx context.Context, r model.Reservation) error
	ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error)
}

// EventStore holds events together with their tables and seats.
type EventStore interface {
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	CreateEvent(ctx context.Context, ev model.Event, seats []model.Seat) error
}

// PushStore holds browser push subscriptions of reservation bearers.
type PushStore interface {
	SavePushSubscription(ctx context.Context, sub model.PushSubscription) error
	DeletePushSubscription(ctx context.Context, endpoint string) error
	DeleteOwnPushSubscription(ctx context.Context, eventID, token, endpoint string) error
	PushSubscriptionsFor(ctx context.Context, eventID, token string) ([]model.PushSubscription, error)
}

// Store defines the interface for all database operations.
type Store interface {
	SeatStore
	ReservationStore
	EventStore
	PushStore
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewGormStore creates a new GORM-backed store. Every call is bounded by
// timeout; a non-positive timeout disables the bound.
func NewGormStore(db *gorm.DB, timeout time.Duration) Store {
	return &gormStore{db: db, timeout: timeout}
}

// DB exposes the underlying handle.
func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) conn(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	if s.timeout <= 0 {
		return s.db.WithContext(ctx), func() {}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

// classify maps driver and gorm errors onto the store's error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConflict),
		errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUnavailable):
		return err
	default:
		// Deadlines, cancellations and backend outages all surface the same way.
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
}
