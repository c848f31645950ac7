package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	seatIDRe   = regexp.MustCompile(`^([A-Za-z0-9]+)-S(\d+)$`)
	tableIDRe  = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	tableNumRe = regexp.MustCompile(`(\d+)$`)
)

// ParsedSeat holds the structured parts of a seat id such as "T2-S5".
type ParsedSeat struct {
	TableID    string
	SeatNumber int
}

// SeatID renders the seat id for a table and a 1-based seat number.
func SeatID(tableID string, seatNumber int) string {
	return fmt.Sprintf("%s-S%d", tableID, seatNumber)
}

// ValidTableID reports whether id can be used as a table id.
func ValidTableID(id string) bool {
	return tableIDRe.MatchString(id)
}

// ParseSeatID splits a seat id into its table id and seat number.
func ParseSeatID(raw string) (ParsedSeat, error) {
	m := seatIDRe.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return ParsedSeat{}, fmt.Errorf("unable to parse seat id: %q", raw)
	}
	n, err := strconv.Atoi(m[2])
	if err != nil || n <= 0 {
		return ParsedSeat{}, fmt.Errorf("invalid seat number in seat id: %q", raw)
	}
	return ParsedSeat{TableID: m[1], SeatNumber: n}, nil
}

// HumanLabel turns "T2-S5" into "Table 2, Seat 5". Table ids without a
// trailing number are used verbatim; unparseable ids are returned unchanged.
func HumanLabel(seatID string) string {
	p, err := ParseSeatID(seatID)
	if err != nil {
		return seatID
	}
	table := p.TableID
	if m := tableNumRe.FindStringSubmatch(p.TableID); m != nil {
		n, _ := strconv.Atoi(m[1])
		table = strconv.Itoa(n)
	}
	return fmt.Sprintf("Table %s, Seat %d", table, p.SeatNumber)
}
