package store

import (
	"context"

	"gorm.io/gorm/clause"

	"seating-backend/internal/model"
)

// SavePushSubscription creates or replaces a subscription by endpoint.
func (s *gormStore) SavePushSubscription(ctx context.Context, sub model.PushSubscription) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"event_id", "token", "p256dh", "auth"}),
	}).Create(&sub).Error
	return classify(err)
}

// DeletePushSubscription removes a subscription. Deleting an unknown
// endpoint is not an error.
func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	return classify(db.Delete(&model.PushSubscription{Endpoint: endpoint}).Error)
}

// DeleteOwnPushSubscription removes endpoint only if it is registered to
// token of the event. Anything else is left alone and is not an error.
func (s *gormStore) DeleteOwnPushSubscription(ctx context.Context, eventID, token, endpoint string) error {
	db, cancel := s.conn(ctx)
	defer cancel()

	return classify(db.
		Where("endpoint = ? AND event_id = ? AND token = ?", endpoint, eventID, token).
		Delete(&model.PushSubscription{}).Error)
}

// PushSubscriptionsFor lists the devices registered for a token.
func (s *gormStore) PushSubscriptionsFor(ctx context.Context, eventID, token string) ([]model.PushSubscription, error) {
	db, cancel := s.conn(ctx)
	defer cancel()

	var subs []model.PushSubscription
	if err := db.Where("event_id = ? AND token = ?", eventID, token).Find(&subs).Error; err != nil {
		return nil, classify(err)
	}
	return subs, nil
}
