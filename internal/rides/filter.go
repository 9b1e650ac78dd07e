package rides

import (
	"strings"
	"time"

	"github.com/ayush/rideshare/backend/internal/models"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04"
)

// Filter narrows a ride list. Zero fields impose no constraint and set
// fields combine with AND.
type Filter struct {
	Origin      string
	Destination string
	Date        string
	Upcoming    bool
}

// Matches reports whether r passes every set criterion. Origin and
// destination are case-insensitive substring matches, date is exact.
func (f Filter) Matches(r *models.Ride, now time.Time) bool {
	if !containsFold(r.Origin, f.Origin) || !containsFold(r.Destination, f.Destination) {
		return false
	}
	if d := strings.TrimSpace(f.Date); d != "" && r.Date != d {
		return false
	}
	if f.Upcoming && !IsUpcoming(r.Date, r.Time, now) {
		return false
	}
	return true
}

// Apply returns the rides matching f, preserving order.
func Apply(rides []models.RideView, f Filter, now time.Time) []models.RideView {
	out := make([]models.RideView, 0, len(rides))
	for i := range rides {
		if f.Matches(&rides[i].Ride, now) {
			out = append(out, rides[i])
		}
	}
	return out
}

// IsUpcoming reports whether a ride on date at clock time hasn't departed:
// any later day qualifies, today only from now on. Dates and times are read
// in now's location; unparseable values never qualify.
func IsUpcoming(date, clock string, now time.Time) bool {
	day, err := time.ParseInLocation(dateLayout, date, now.Location())
	if err != nil {
		return false
	}
	hm, err := time.Parse(timeLayout, clock)
	if err != nil {
		return false
	}

	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	switch {
	case day.After(today):
		return true
	case day.Equal(today):
		departure := today.Add(time.Duration(hm.Hour())*time.Hour + time.Duration(hm.Minute())*time.Minute)
		return !departure.Before(now.Truncate(time.Minute))
	default:
		return false
	}
}

func containsFold(s, substr string) bool {
	substr = strings.TrimSpace(substr)
	if substr == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
