package model

import "time"

// Spirit preferences a guest may pick. The empty string means unset.
var Spirits = []string{
	"Vodka",
	"Tequila",
	"Gin",
	"Rum",
	"Whiskey/Bourbon",
	"Scotch",
	"Champagne",
	"No preference",
}

// IsValidSpirit reports whether s is empty or one of Spirits.
func IsValidSpirit(s string) bool {
	if s == "" {
		return true
	}
	for _, sp := range Spirits {
		if sp == s {
			return true
		}
	}
	return false
}

// Seat is one seat of an event. ClaimedBy is nil while the seat is free.
// Version is bumped by every committed write and is the precondition for the
// next one.
type Seat struct {
	EventID     string    `gorm:"primaryKey;size:128;index:idx_seats_event_claimed,priority:1" json:"-"`
	SeatID      string    `gorm:"primaryKey;size:64" json:"seatId"`
	TableID     string    `gorm:"size:32;not null" json:"tableId"`
	TableNumber int       `gorm:"not null" json:"tableNumber"`
	SeatNumber  int       `gorm:"not null" json:"seatNumber"`
	ClaimedBy   *string   `gorm:"size:64;index:idx_seats_event_claimed,priority:2" json:"claimedBy"`
	GuestName   string    `gorm:"size:128;not null;default:''" json:"guestName"`
	Spirit      string    `gorm:"size:32;not null;default:''" json:"spiritPreference"`
	Version     int64     `gorm:"not null;default:0" json:"version"`
	UpdatedAt   time.Time `gorm:"not null" json:"lastModified"`
}

// IsFree reports whether no token holds the seat.
func (s Seat) IsFree() bool { return s.ClaimedBy == nil }

// HeldBy reports whether token holds the seat.
func (s Seat) HeldBy(token string) bool {
	return s.ClaimedBy != nil && *s.ClaimedBy == token
}
