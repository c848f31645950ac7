package model

import "time"

// Event represents a seated event. It is immutable once created.
type Event struct {
	ID        string    `gorm:"primaryKey;size:128" json:"id"`
	Name      string    `gorm:"size:256;not null" json:"name"`
	Date      string    `gorm:"size:64;not null" json:"date"`
	CreatedAt time.Time `gorm:"not null" json:"createdAt"`

	// Associations
	Tables []EventTable `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE" json:"tables"`
}

// EventTable is one table of an event. Position keeps the organiser's order
// and doubles as the 1-based table number used for sorting seats.
type EventTable struct {
	EventID      string `gorm:"primaryKey;size:128" json:"-"`
	TableID      string `gorm:"primaryKey;size:32" json:"tableId"`
	Name         string `gorm:"size:128;not null" json:"name"`
	SeatCapacity int    `gorm:"not null" json:"seatCapacity"`
	Position     int    `gorm:"not null" json:"position"`
}

// Capacity returns the total number of seats across all tables.
func (e Event) Capacity() int {
	total := 0
	for _, t := range e.Tables {
		total += t.SeatCapacity
	}
	return total
}
