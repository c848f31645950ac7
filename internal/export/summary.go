// Package export renders the claimed seats of an event for organisers.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"seating-backend/internal/model"
	"seating-backend/internal/store"
)

// Row is one claimed seat.
type Row struct {
	Table      string `json:"table"`
	Seat       string `json:"seat"`
	Guest      string `json:"guest"`
	Spirit     string `json:"spirit"`
	ClaimedBy  string `json:"claimedBy"`
	BuyerLabel string `json:"buyerLabel"`
	tableID    string
}

// SpiritCount is the number of claimed seats with one spirit preference.
type SpiritCount struct {
	Spirit string `json:"spirit"`
	Count  int    `json:"count"`
}

// Summary lists the claimed seats of an event in table then seat order.
type Summary struct {
	EventID  string        `json:"eventId"`
	Name     string        `json:"name"`
	Capacity int           `json:"capacity"`
	Claimed  int           `json:"claimed"`
	Rows     []Row         `json:"rows"`
	Spirits  []SpiritCount `json:"spirits"`
	tables   []model.EventTable
}

// Source is the read access the export needs.
type Source interface {
	GetEvent(ctx context.Context, eventID string) (model.Event, error)
	ListSeats(ctx context.Context, eventID string) ([]model.Seat, error)
	ListReservations(ctx context.Context, eventID string) ([]model.Reservation, error)
}

var _ Source = store.Store(nil)

// Build collects the summary of an event.
func Build(ctx context.Context, src Source, eventID string) (Summary, error) {
	ev, err := src.GetEvent(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	seats, err := src.ListSeats(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}
	reservations, err := src.ListReservations(ctx, eventID)
	if err != nil {
		return Summary{}, err
	}

	buyers := make(map[string]string, len(reservations))
	for _, r := range reservations {
		buyers[r.Token] = r.BuyerLabel
	}
	names := make(map[string]string, len(ev.Tables))
	for _, t := range ev.Tables {
		names[t.TableID] = t.Name
	}

	sum := Summary{EventID: ev.ID, Name: ev.Name, Capacity: ev.Capacity(), Rows: []Row{}, tables: ev.Tables}
	counts := map[string]int{}
	for _, s := range seats {
		if s.IsFree() {
			continue
		}
		sum.Rows = append(sum.Rows, Row{
			Table:      names[s.TableID],
			Seat:       s.SeatID,
			Guest:      strings.TrimSpace(s.GuestName),
			Spirit:     strings.TrimSpace(s.Spirit),
			ClaimedBy:  *s.ClaimedBy,
			BuyerLabel: buyers[*s.ClaimedBy],
			tableID:    s.TableID,
		})
		counts[s.Spirit]++
	}
	sum.Claimed = len(sum.Rows)

	for spirit, n := range counts {
		if spirit == "" {
			spirit = "(no spirit)"
		}
		sum.Spirits = append(sum.Spirits, SpiritCount{Spirit: spirit, Count: n})
	}
	sort.Slice(sum.Spirits, func(i, j int) bool {
		if sum.Spirits[i].Count != sum.Spirits[j].Count {
			return sum.Spirits[i].Count > sum.Spirits[j].Count
		}
		return sum.Spirits[i].Spirit < sum.Spirits[j].Spirit
	})
	return sum, nil
}

// WriteCSV writes the rows with the header Table,Seat,Guest,Spirit,Buyer.
func (s Summary) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"Table", "Seat", "Guest", "Spirit", "Buyer"}); err != nil {
		return err
	}
	for _, r := range s.Rows {
		if err := cw.Write([]string{r.Table, r.Seat, r.Guest, r.Spirit, r.BuyerLabel}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteText writes a plain text listing grouped by table, followed by the
// spirit counts.
func (s Summary) WriteText(w io.Writer) error {
	var b strings.Builder
	for _, t := range s.tables {
		fmt.Fprintf(&b, "%s\n", strings.ToUpper(t.Name))
		n := 0
		for _, r := range s.Rows {
			if r.tableID != t.TableID {
				continue
			}
			n++
			fmt.Fprintf(&b, "  %s: %s, %s\n", r.Seat, orDefault(r.Guest, "(no name)"), orDefault(r.Spirit, "(no spirit)"))
		}
		if n == 0 {
			b.WriteString("  (no claimed seats)\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("SPIRIT COUNTS\n")
	for _, c := range s.Spirits {
		fmt.Fprintf(&b, "  %s: %d\n", c.Spirit, c.Count)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
