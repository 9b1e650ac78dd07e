package bookings

import (
	"github.com/ayush/rideshare/backend/internal/apperr"
	"github.com/ayush/rideshare/backend/internal/models"
)

// Transition checks a status change against the booking workflow. A booking
// starts pending and moves once, to accepted or declined.
func Transition(from, to models.Status) error {
	if !to.Valid() {
		return apperr.Invalid("status", "status must be one of pending, accepted, declined")
	}
	if from == models.StatusPending && (to == models.StatusAccepted || to == models.StatusDeclined) {
		return nil
	}
	return &apperr.TransitionError{From: string(from), To: string(to)}
}
