// Package issuance seeds events and issues reservation tokens.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"seating-backend/config"
	"seating-backend/internal/model"
	"seating-backend/internal/parse"
	"seating-backend/internal/store"
)

// MaxSeatsPerTable bounds a single table.
const MaxSeatsPerTable = 64

// ErrInvalid is returned for malformed seeding or issuance requests.
var ErrInvalid = errors.New("invalid request")

// TableSpec describes one table of a new event. An empty name becomes
// "Table <id>".
type TableSpec struct {
	TableID      string `json:"tableId"`
	Name         string `json:"name"`
	SeatCapacity int    `json:"seatCapacity"`
}

// EventRequest describes a new event. Without tables the configured default
// layout is used.
type EventRequest struct {
	ID     string      `json:"id"`
	Name   string      `json:"name"`
	Date   string      `json:"date"`
	Tables []TableSpec `json:"tables"`
}

// Service creates events and reservations.
type Service struct {
	events       store.EventStore
	reservations store.ReservationStore
	defaults     config.IssuanceConfig
	log          *logrus.Entry
}

// NewService creates an issuance service.
func NewService(events store.EventStore, reservations store.ReservationStore, defaults config.IssuanceConfig, log *logrus.Entry) *Service {
	return &Service{events: events, reservations: reservations, defaults: defaults, log: log}
}

// CreateEvent stores a new event with all of its seats free. It refuses an
// event id that already exists.
func (s *Service) CreateEvent(ctx context.Context, req EventRequest) (model.Event, error) {
	ev := model.Event{
		ID:   strings.TrimSpace(req.ID),
		Name: strings.TrimSpace(req.Name),
		Date: strings.TrimSpace(req.Date),
	}
	if ev.ID == "" || len(ev.ID) > 128 || strings.ContainsAny(ev.ID, "/?#") {
		return model.Event{}, fmt.Errorf("%w: event id %q", ErrInvalid, req.ID)
	}
	if ev.Name == "" {
		return model.Event{}, fmt.Errorf("%w: event name is required", ErrInvalid)
	}

	tables, err := s.layout(req.Tables)
	if err != nil {
		return model.Event{}, err
	}
	ev.Tables = tables

	seats := model.LayoutSeats(ev.ID, tables)
	if err := s.events.CreateEvent(ctx, ev, seats); err != nil {
		return model.Event{}, err
	}

	s.log.WithFields(logrus.Fields{
		"event":  ev.ID,
		"tables": len(tables),
		"seats":  len(seats),
	}).Info("event seeded")
	return s.events.GetEvent(ctx, ev.ID)
}

func (s *Service) layout(specs []TableSpec) ([]model.EventTable, error) {
	if len(specs) == 0 {
		return model.DefaultTables(s.defaults.DefaultTables, s.defaults.DefaultSeatsPerTable), nil
	}

	seen := make(map[string]bool, len(specs))
	tables := make([]model.EventTable, 0, len(specs))
	for i, spec := range specs {
		id := strings.TrimSpace(spec.TableID)
		if !parse.ValidTableID(id) {
			return nil, fmt.Errorf("%w: table id %q must be letters and digits", ErrInvalid, spec.TableID)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: duplicate table id %q", ErrInvalid, id)
		}
		seen[id] = true
		if spec.SeatCapacity < 1 || spec.SeatCapacity > MaxSeatsPerTable {
			return nil, fmt.Errorf("%w: table %q needs between 1 and %d seats", ErrInvalid, id, MaxSeatsPerTable)
		}

		name := strings.TrimSpace(spec.Name)
		if name == "" {
			name = "Table " + id
		}
		tables = append(tables, model.EventTable{
			TableID:      id,
			Name:         name,
			SeatCapacity: spec.SeatCapacity,
			Position:     i + 1,
		})
	}
	return tables, nil
}

// IssueReservation creates a reservation with a fresh random token. The quota
// must be between 1 and the event's capacity.
func (s *Service) IssueReservation(ctx context.Context, eventID, buyerLabel string, seatQuota int) (model.Reservation, error) {
	ev, err := s.events.GetEvent(ctx, eventID)
	if err != nil {
		return model.Reservation{}, err
	}
	if seatQuota < 1 || seatQuota > ev.Capacity() {
		return model.Reservation{}, fmt.Errorf("%w: seat quota must be between 1 and %d", ErrInvalid, ev.Capacity())
	}

	r := model.Reservation{
		EventID:    ev.ID,
		Token:      uuid.NewString(),
		BuyerLabel: strings.TrimSpace(buyerLabel),
		SeatQuota:  seatQuota,
	}
	if err := s.reservations.CreateReservation(ctx, r); err != nil {
		return model.Reservation{}, err
	}

	s.log.WithFields(logrus.Fields{"event": ev.ID, "quota": seatQuota}).Info("reservation issued")
	return s.reservations.GetReservation(ctx, ev.ID, r.Token)
}
