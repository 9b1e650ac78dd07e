package rides

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ayush/rideshare/backend/internal/models"
)

func view(origin, destination, date, clock string) models.RideView {
	return models.RideView{Ride: models.Ride{Origin: origin, Destination: destination, Date: date, Time: clock}}
}

func TestApply(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	rides := []models.RideView{
		view("Downtown Boston", "Cambridge", "2025-03-10", "09:00"),
		view("Cambridge", "Logan Airport", "2025-03-10", "18:30"),
		view("Somerville", "Boston Common", "2025-03-12", "07:15"),
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"empty filter keeps everything", Filter{}, []string{"Downtown Boston", "Cambridge", "Somerville"}},
		{"origin substring ignores case", Filter{Origin: "boston"}, []string{"Downtown Boston"}},
		{"destination substring", Filter{Destination: "BOSTON"}, []string{"Somerville"}},
		{"date is exact", Filter{Date: "2025-03-10"}, []string{"Downtown Boston", "Cambridge"}},
		{"date prefix does not match", Filter{Date: "2025-03"}, nil},
		{"criteria combine", Filter{Origin: "cam", Date: "2025-03-10"}, []string{"Cambridge"}},
		{"whitespace-only is unset", Filter{Origin: "  "}, []string{"Downtown Boston", "Cambridge", "Somerville"}},
		{"upcoming drops departed rides", Filter{Upcoming: true}, []string{"Cambridge", "Somerville"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, r := range Apply(rides, tt.filter, now) {
				got = append(got, r.Origin)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsUpcoming(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 30, 0, time.UTC)

	tests := []struct {
		date, clock string
		want        bool
	}{
		{"2025-03-11", "00:00", true},
		{"2025-03-10", "12:00", true},
		{"2025-03-10", "13:45", true},
		{"2025-03-10", "11:59", false},
		{"2025-03-09", "23:59", false},
		{"", "10:00", false},
		{"2025-03-11", "", false},
		{"03/11/2025", "10:00", false},
		{"2025-03-11", "10am", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsUpcoming(tt.date, tt.clock, now), "%s %s", tt.date, tt.clock)
	}
}
