package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"seating-backend/internal/arbiter"
	"seating-backend/internal/issuance"
	"seating-backend/internal/store"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	Retryable bool   `json:"retryable"`
}

// classify maps domain errors onto a status, a stable code and whether the
// client may retry the same request.
func classify(err error) (int, errorResponse) {
	switch {
	case errors.Is(err, arbiter.ErrQuotaExceeded):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "quota_exceeded"}
	case errors.Is(err, arbiter.ErrSeatTaken):
		return http.StatusConflict, errorResponse{Error: "that seat was just taken by someone else", Code: "seat_taken"}
	case errors.Is(err, arbiter.ErrNotOwner):
		return http.StatusForbidden, errorResponse{Error: "that seat is not yours", Code: "not_owner"}
	case errors.Is(err, arbiter.ErrInvalidField), errors.Is(err, issuance.ErrInvalid):
		return http.StatusBadRequest, errorResponse{Error: err.Error(), Code: "invalid_field"}
	case errors.Is(err, arbiter.ErrTransientConflict):
		return http.StatusServiceUnavailable, errorResponse{Error: "the seat is busy, please try again", Code: "transient_conflict", Retryable: true}
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, errorResponse{Error: "not found", Code: "not_found"}
	case errors.Is(err, store.ErrAlreadyExists):
		return http.StatusConflict, errorResponse{Error: err.Error(), Code: "already_exists"}
	case errors.Is(err, store.ErrUnavailable):
		return http.StatusServiceUnavailable, errorResponse{Error: "storage is unavailable, please try again", Code: "storage_unavailable", Retryable: true}
	default:
		return http.StatusInternalServerError, errorResponse{Error: "internal error", Code: "internal"}
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status, body)
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorResponse{Error: msg, Code: "invalid_request"})
}
