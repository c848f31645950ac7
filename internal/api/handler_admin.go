package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seating-backend/internal/export"
	"seating-backend/internal/issuance"
)

// CreateEvent seeds a new event with all seats free.
func (h *Handler) CreateEvent(c *gin.Context) {
	var req issuance.EventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	ev, err := h.issuance.CreateEvent(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":       ev.ID,
		"name":     ev.Name,
		"date":     ev.Date,
		"capacity": ev.Capacity(),
		"tables":   ev.Tables,
	})
}

type issueRequest struct {
	BuyerLabel string `json:"buyerLabel"`
	SeatQuota  int    `json:"seatQuota" binding:"required"`
}

// IssueReservation creates a reservation and returns its token.
func (h *Handler) IssueReservation(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "seatQuota is required")
		return
	}

	r, err := h.issuance.IssueReservation(c.Request.Context(), c.Param("event_id"), req.BuyerLabel, req.SeatQuota)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GetSummary lists the claimed seats. ?format=csv and ?format=text return
// downloadable files instead of JSON.
func (h *Handler) GetSummary(c *gin.Context) {
	eventID := c.Param("event_id")
	sum, err := export.Build(c.Request.Context(), h.store, eventID)
	if err != nil {
		h.fail(c, err)
		return
	}

	switch c.DefaultQuery("format", "json") {
	case "csv":
		c.Header("Content-Type", "text/csv; charset=utf-8")
		c.Header("Content-Disposition", `attachment; filename="`+eventID+`-seats.csv"`)
		c.Status(http.StatusOK)
		if err := sum.WriteCSV(c.Writer); err != nil {
			_ = c.Error(err)
		}
	case "text":
		c.Header("Content-Type", "text/plain; charset=utf-8")
		c.Status(http.StatusOK)
		if err := sum.WriteText(c.Writer); err != nil {
			_ = c.Error(err)
		}
	case "json":
		c.JSON(http.StatusOK, sum)
	default:
		badRequest(c, "format must be json, csv or text")
	}
}
