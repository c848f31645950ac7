package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"seating-backend/internal/model"
)

// GetEvent returns an event with its tables in order.
func (s *gormStore) GetEvent(ctx context.Context, eventID string) (model.Event, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var ev model.Event
	err := db.Preload("Tables", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC")
	}).Where("id = ?", eventID).Take(&ev).Error
	if err != nil {
		return model.Event{}, classify(err)
	}
	return ev, nil
}

// CreateEvent stores the event, its tables and all of its seats in one
// transaction. An existing event id is never overwritten.
func (s *gormStore) CreateEvent(ctx context.Context, ev model.Event, seats []model.Seat) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	tables := ev.Tables
	ev.Tables = nil

	err := db.Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Omit(clause.Associations).Create(&ev)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("event %q: %w", ev.ID, ErrAlreadyExists)
		}

		if len(tables) > 0 {
			for i := range tables {
				tables[i].EventID = ev.ID
			}
			if err := tx.Create(&tables).Error; err != nil {
				return fmt.Errorf("failed to create tables for event %q: %w", ev.ID, err)
			}
		}

		if len(seats) > 0 {
			for i := range seats {
				seats[i].EventID = ev.ID
			}
			if err := tx.CreateInBatches(&seats, 100).Error; err != nil {
				return fmt.Errorf("failed to create seats for event %q: %w", ev.ID, err)
			}
		}
		return nil
	})
	return classify(err)
}
