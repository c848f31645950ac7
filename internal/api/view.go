package api

import (
	"time"

	"seating-backend/internal/model"
	"seating-backend/internal/notifier"
	"seating-backend/internal/parse"
)

const (
	statusFree  = "free"
	statusTaken = "taken"
)

// seatView is a seat as shown to a bearer. Tokens are never exposed; Mine
// tells the viewer which seats they hold. Every viewer sees who sits on a
// taken seat, the spirit preference only shows on the viewer's own seats.
type seatView struct {
	SeatID       string    `json:"seatId"`
	Label        string    `json:"label"`
	TableID      string    `json:"tableId"`
	TableNumber  int       `json:"tableNumber"`
	SeatNumber   int       `json:"seatNumber"`
	Status       string    `json:"status"`
	Mine         bool      `json:"mine"`
	GuestName    string    `json:"guestName,omitempty"`
	Spirit       string    `json:"spiritPreference,omitempty"`
	Version      int64     `json:"version"`
	LastModified time.Time `json:"lastModified"`
}

type snapshotView struct {
	EventID  string     `json:"eventId"`
	Revision int64      `json:"revision"`
	TakenAt  time.Time  `json:"takenAt"`
	Free     int        `json:"free"`
	Seats    []seatView `json:"seats"`
}

func newSeatView(s model.Seat, token string) seatView {
	v := seatView{
		SeatID:       s.SeatID,
		Label:        parse.HumanLabel(s.SeatID),
		TableID:      s.TableID,
		TableNumber:  s.TableNumber,
		SeatNumber:   s.SeatNumber,
		Status:       statusFree,
		Version:      s.Version,
		LastModified: s.UpdatedAt,
	}
	if !s.IsFree() {
		v.Status = statusTaken
		v.GuestName = s.GuestName
	}
	if token != "" && s.HeldBy(token) {
		v.Mine = true
		v.Spirit = s.Spirit
	}
	return v
}

func newSnapshotView(snap notifier.Snapshot, token string) snapshotView {
	v := snapshotView{
		EventID:  snap.EventID,
		Revision: snap.Revision,
		TakenAt:  snap.TakenAt,
		Seats:    make([]seatView, 0, len(snap.Seats)),
	}
	for _, s := range snap.Seats {
		sv := newSeatView(s, token)
		if sv.Status == statusFree {
			v.Free++
		}
		v.Seats = append(v.Seats, sv)
	}
	return v
}
