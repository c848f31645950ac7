package arbiter

import (
	"errors"
	"fmt"
)

// Business-rule rejections. They are permanent for the current seat state and
// must not be retried without a new user action.
var (
	ErrSeatTaken     = errors.New("seat is held by another reservation")
	ErrQuotaExceeded = errors.New("seat quota reached")
	ErrNotOwner      = errors.New("seat is not held by this reservation")
	ErrInvalidField  = errors.New("invalid field")
)

// ErrTransientConflict is returned when every commit attempt lost a race with
// another writer. Retrying later is safe.
var ErrTransientConflict = errors.New("seat changed concurrently, try again")

// QuotaExceededError names the quota of the rejected reservation. It matches
// ErrQuotaExceeded with errors.Is.
type QuotaExceededError struct {
	Quota int
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("you can only claim %d seat(s); release one first", e.Quota)
}

func (e *QuotaExceededError) Is(target error) bool {
	return target == ErrQuotaExceeded
}
