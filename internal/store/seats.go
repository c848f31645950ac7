package store

import (
	"context"
	"time"

	"gorm.io/gorm"

	"seating-backend/internal/model"
)

// heldCountSQL counts the seats a token holds. MySQL rejects a subquery on
// the table being updated (error 1093) unless it reads from a materialized
// derived table, so the hint stops the optimizer from merging it. Other
// databases read the hint as a comment.
const heldCountSQL = "(SELECT /*+ NO_MERGE(held) */ COUNT(*) FROM (SELECT 1 FROM seats WHERE event_id = ? AND claimed_by = ?) AS held) < ?"

// GetSeat returns a single seat of an event.
func (s *gormStore) GetSeat(ctx context.Context, eventID, seatID string) (model.Seat, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var seat model.Seat
	if err := db.Where("event_id = ? AND seat_id = ?", eventID, seatID).Take(&seat).Error; err != nil {
		return model.Seat{}, classify(err)
	}
	return seat, nil
}

// ListSeats returns every seat of an event ordered by table then seat number.
func (s *gormStore) ListSeats(ctx context.Context, eventID string) ([]model.Seat, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var seats []model.Seat
	if err := db.Where("event_id = ?", eventID).
		Order("table_number ASC").
		Order("seat_number ASC").
		Find(&seats).Error; err != nil {
		return nil, classify(err)
	}
	return seats, nil
}

// CountClaimed returns how many seats of the event token currently holds.
func (s *gormStore) CountClaimed(ctx context.Context, eventID, token string) (int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var n int64
	if err := db.Model(&model.Seat{}).
		Where("event_id = ? AND claimed_by = ?", eventID, token).
		Count(&n).Error; err != nil {
		return 0, classify(err)
	}
	return n, nil
}

// PutSeat commits w as one conditional UPDATE. It returns ErrConflict when the
// stored version moved on or the quota guard rejected the write; nothing is
// applied in that case.
func (s *gormStore) PutSeat(ctx context.Context, w SeatWrite) (model.Seat, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	next := w.Seat
	next.Version = w.ExpectedVersion + 1
	next.UpdatedAt = time.Now().UTC()

	q := db.Model(&model.Seat{}).
		Where("event_id = ? AND seat_id = ? AND version = ?", next.EventID, next.SeatID, w.ExpectedVersion)
	if w.Quota != nil {
		q = q.Where(heldCountSQL, next.EventID, w.Quota.Token, w.Quota.Limit)
	}

	res := q.Updates(map[string]any{
		"claimed_by": claimedValue(next.ClaimedBy),
		"guest_name": next.GuestName,
		"spirit":     next.Spirit,
		"version":    gorm.Expr("version + 1"),
		"updated_at": next.UpdatedAt,
	})
	if res.Error != nil {
		return model.Seat{}, classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return model.Seat{}, ErrConflict
	}
	return next, nil
}

// Revisions returns, per event, the sum of its seat versions. It only grows.
func (s *gormStore) Revisions(ctx context.Context) (map[string]int64, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	type revisionRow struct {
		EventID  string
		Revision int64
	}
	var rows []revisionRow
	if err := db.Model(&model.Seat{}).
		Select("event_id AS event_id, COALESCE(SUM(version), 0) AS revision").
		Group("event_id").
		Scan(&rows).Error; err != nil {
		return nil, classify(err)
	}

	revisions := make(map[string]int64, len(rows))
	for _, r := range rows {
		revisions[r.EventID] = r.Revision
	}
	return revisions, nil
}

func claimedValue(token *string) any {
	if token == nil {
		return nil
	}
	return *token
}
