package model

import "time"

// Reservation is a purchased quota of seats, addressed by an unguessable
// token. It is written once and never updated.
type Reservation struct {
	EventID    string    `gorm:"primaryKey;size:128" json:"eventId"`
	Token      string    `gorm:"primaryKey;size:64" json:"token"`
	BuyerLabel string    `gorm:"size:256;not null;default:''" json:"buyerLabel"`
	SeatQuota  int       `gorm:"not null" json:"seatQuota"`
	CreatedAt  time.Time `gorm:"not null" json:"createdAt"`
}
