package model

import (
	"fmt"

	"seating-backend/internal/parse"
)

// LayoutSeats builds the free seats for an ordered list of tables. Table
// numbers follow list order starting at 1.
func LayoutSeats(eventID string, tables []EventTable) []Seat {
	var seats []Seat
	for i, t := range tables {
		for n := 1; n <= t.SeatCapacity; n++ {
			seats = append(seats, Seat{
				EventID:     eventID,
				SeatID:      parse.SeatID(t.TableID, n),
				TableID:     t.TableID,
				TableNumber: i + 1,
				SeatNumber:  n,
			})
		}
	}
	return seats
}

// DefaultTables returns count tables named "Table n" with ids "Tn".
func DefaultTables(count, seatsPerTable int) []EventTable {
	tables := make([]EventTable, 0, count)
	for i := 1; i <= count; i++ {
		tables = append(tables, EventTable{
			TableID:      fmt.Sprintf("T%d", i),
			Name:         fmt.Sprintf("Table %d", i),
			SeatCapacity: seatsPerTable,
			Position:     i,
		})
	}
	return tables
}
