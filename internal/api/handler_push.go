package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"seating-backend/internal/model"
)

type putPushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
	P256DH   string `json:"p256dh" binding:"required"`
	Auth     string `json:"auth" binding:"required"`
}

// PutPush registers a device of the token's bearer for seat change
// notifications.
func (h *Handler) PutPush(c *gin.Context) {
	var req putPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	ctx := c.Request.Context()
	eventID, token := c.Param("event_id"), c.Param("token")
	if _, err := h.reservations.GetReservation(ctx, eventID, token); err != nil {
		h.fail(c, err)
		return
	}

	sub := model.PushSubscription{
		Endpoint: req.Endpoint,
		EventID:  eventID,
		Token:    token,
		P256DH:   req.P256DH,
		Auth:     req.Auth,
	}
	if err := h.store.SavePushSubscription(ctx, sub); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusCreated)
}

type deletePushRequest struct {
	Endpoint string `json:"endpoint" binding:"required"`
}

// DeletePush removes a device registration of the token in the path.
func (h *Handler) DeletePush(c *gin.Context) {
	var req deletePushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}

	if err := h.store.DeleteOwnPushSubscription(c.Request.Context(),
		c.Param("event_id"), c.Param("token"), req.Endpoint); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
