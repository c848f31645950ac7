package store

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"seating-backend/internal/model"
)

// GetReservation resolves a token within an event.
func (s *gormStore) GetReservation(ctx context.Context, eventID, token string) (model.Reservation, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var r model.Reservation
	if err := db.Where("event_id = ? AND token = ?", eventID, token).Take(&r).Error; err != nil {
		return model.Reservation{}, classify(err)
	}
	return r, nil
}

// CreateReservation inserts r unless its token already exists, in which case
// ErrAlreadyExists is returned and the stored quota is left untouched.
func (s *gormStore) CreateReservation(ctx context.Context, r model.Reservation) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&r)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("reservation %q: %w", r.Token, ErrAlreadyExists)
	}
	return nil
}

// ListReservations returns all reservations of an event, oldest first.
func (s *gormStore) ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var out []model.Reservation
	if err := db.Where("event_id = ?", eventID).Order("created_at ASC").Find(&out).Error; err != nil {
		return nil, classify(err)
	}
	return out, nil
}
