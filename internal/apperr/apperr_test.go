package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tt := []struct {
		name string
		err  error
		want int
	}{
		{name: "validation", err: Missing("origin", "price"), want: http.StatusBadRequest},
		{name: "wrapped validation", err: fmt.Errorf("create ride: %w", Invalid("price", "price must be >= 0")), want: http.StatusBadRequest},
		{name: "unauthenticated", err: ErrUnauthenticated, want: http.StatusUnauthorized},
		{name: "not found", err: NotFound("ride"), want: http.StatusNotFound},
		{name: "transition", err: &TransitionError{From: "accepted", To: "declined"}, want: http.StatusConflict},
		{name: "seats", err: fmt.Errorf("accept: %w", ErrInsufficientSeats), want: http.StatusConflict},
		{name: "unexpected", err: errors.New("connection reset"), want: http.StatusInternalServerError},
	}
	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Status(tc.err))
		})
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "ride not found", NotFound("ride").Error())
	assert.Equal(t, "missing required fields: origin, date", Missing("origin", "date").Error())
	assert.Equal(t, map[string][]string{"fields": {"origin"}}, Details(Missing("origin")))
	assert.Nil(t, Details(errors.New("boom")))
}
