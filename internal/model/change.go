package model

// SeatAction names a committed seat transition.
type SeatAction string

const (
	ActionClaimed  SeatAction = "claimed"
	ActionReleased SeatAction = "released"
	ActionUpdated  SeatAction = "updated"
)

// SeatChange describes one committed seat write. Token is the bearer that
// performed it; Seat is the state after the commit.
type SeatChange struct {
	EventID string     `json:"eventId"`
	SeatID  string     `json:"seatId"`
	Action  SeatAction `json:"action"`
	Token   string     `json:"token"`
	Seat    Seat       `json:"seat"`
}
