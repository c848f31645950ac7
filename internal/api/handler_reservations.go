package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seating-backend/internal/arbiter"
	"seating-backend/internal/parse"
)

// GetReservation resolves a token for session start. It returns the quota,
// the seats the token holds and how many more it may claim.
func (h *Handler) GetReservation(c *gin.Context) {
	ctx := c.Request.Context()
	eventID, token := c.Param("event_id"), c.Param("token")

	r, err := h.reservations.GetReservation(ctx, eventID, token)
	if err != nil {
		h.fail(c, err)
		return
	}
	seats, err := h.store.ListSeats(ctx, eventID)
	if err != nil {
		h.fail(c, err)
		return
	}

	held := []seatView{}
	for _, s := range seats {
		if s.HeldBy(token) {
			held = append(held, newSeatView(s, token))
		}
	}
	remaining := r.SeatQuota - len(held)
	if remaining < 0 {
		remaining = 0
	}

	c.JSON(http.StatusOK, gin.H{
		"eventId":    r.EventID,
		"buyerLabel": r.BuyerLabel,
		"seatQuota":  r.SeatQuota,
		"held":       held,
		"remaining":  remaining,
	})
}

type seatOutcome struct {
	Action  string   `json:"action"`
	Changed bool     `json:"changed"`
	Seat    seatView `json:"seat"`
}

func seatIDParam(c *gin.Context) (string, bool) {
	seatID := c.Param("seat_id")
	if _, err := parse.ParseSeatID(seatID); err != nil {
		badRequest(c, err.Error())
		return "", false
	}
	return seatID, true
}

// ToggleSeat claims a seat, or releases it when the token already holds it.
func (h *Handler) ToggleSeat(c *gin.Context) {
	seatID, ok := seatIDParam(c)
	if !ok {
		return
	}
	token := c.Param("token")

	out, err := h.engine.Toggle(c.Request.Context(), c.Param("event_id"), seatID, token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seatOutcome{Action: string(out.Action), Changed: out.Changed, Seat: newSeatView(out.Seat, token)})
}

// UpdateSeat writes the guest name and spirit preference of a held seat.
func (h *Handler) UpdateSeat(c *gin.Context) {
	seatID, ok := seatIDParam(c)
	if !ok {
		return
	}
	var req arbiter.FieldUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	token := c.Param("token")

	out, err := h.engine.UpdateFields(c.Request.Context(), c.Param("event_id"), seatID, token, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, seatOutcome{Action: string(out.Action), Changed: out.Changed, Seat: newSeatView(out.Seat, token)})
}
