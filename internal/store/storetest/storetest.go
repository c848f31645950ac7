// Package storetest provides SQLite-backed fixtures for tests of packages
// that depend on the store.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"seating-backend/internal/db"
	"seating-backend/internal/model"
	"seating-backend/internal/store"
)

// NewSQLite opens a private in-memory database with the schema migrated. A
// single connection keeps the database alive and serializes statements.
func NewSQLite(t *testing.T) *gorm.DB {
	t.Helper()

	gormDB, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := gormDB.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.Migrate(gormDB))
	return gormDB
}

// NewStore returns a GORM store over a fresh in-memory database.
func NewStore(t *testing.T) store.Store {
	t.Helper()
	return store.NewGormStore(NewSQLite(t), 5*time.Second)
}

// SeedEvent creates an event with the given number of tables and seats per
// table, all seats free.
func SeedEvent(t *testing.T, s store.EventStore, eventID string, tables, seatsPerTable int) model.Event {
	t.Helper()

	ev := model.Event{
		ID:     eventID,
		Name:   "Test Night",
		Date:   "2026-02-13",
		Tables: model.DefaultTables(tables, seatsPerTable),
	}
	require.NoError(t, s.CreateEvent(context.Background(), ev, model.LayoutSeats(eventID, ev.Tables)))
	return ev
}

// IssueReservation stores a reservation with a fixed token.
func IssueReservation(t *testing.T, s store.ReservationStore, eventID, token string, quota int) model.Reservation {
	t.Helper()

	r := model.Reservation{EventID: eventID, Token: token, SeatQuota: quota, BuyerLabel: "buyer " + token}
	require.NoError(t, s.CreateReservation(context.Background(), r))
	return r
}
