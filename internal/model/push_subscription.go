package model

import "time"

// PushSubscription holds a browser push subscription registered by the bearer
// of a reservation token.
type PushSubscription struct {
	Endpoint  string    `gorm:"primaryKey"`
	EventID   string    `gorm:"size:128;not null;index:idx_push_event_token,priority:1"`
	Token     string    `gorm:"size:64;not null;index:idx_push_event_token,priority:2"`
	P256DH    string    `gorm:"column:p256dh;not null"`
	Auth      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}
