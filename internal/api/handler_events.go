package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetEvent returns an event with its tables.
func (h *Handler) GetEvent(c *gin.Context) {
	ev, err := h.store.GetEvent(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       ev.ID,
		"name":     ev.Name,
		"date":     ev.Date,
		"capacity": ev.Capacity(),
		"tables":   ev.Tables,
	})
}

// GetSeats returns the current sorted snapshot of an event. With ?token= the
// seats held by that token are marked as mine.
func (h *Handler) GetSeats(c *gin.Context) {
	snap, err := h.hub.Current(c.Request.Context(), c.Param("event_id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newSnapshotView(snap, c.Query("token")))
}
