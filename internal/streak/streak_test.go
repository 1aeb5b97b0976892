package streak

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var day = time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)

func TestNext(t *testing.T) {
	tests := []struct {
		name    string
		in      State
		today   time.Time
		want    State
		changed bool
	}{
		{"first visit", State{}, day, State{1, day}, true},
		{"first visit with stale counter", State{Streak: 4}, day, State{1, day}, true},
		{"same day", State{3, day}, day.Add(23 * time.Hour), State{3, day}, false},
		{"yesterday", State{3, day.AddDate(0, 0, -1)}, day, State{4, day}, true},
		{"two days ago", State{3, day.AddDate(0, 0, -2)}, day, State{1, day}, true},
		{"a month ago", State{30, day.AddDate(0, -1, 0)}, day, State{1, day}, true},
		{"future marker", State{2, day.AddDate(0, 0, 1)}, day, State{2, day.AddDate(0, 0, 1)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, changed := Next(tt.in, tt.today)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.changed, changed)
		})
	}
}

func TestNextIsIdempotentWithinADay(t *testing.T) {
	s := State{5, day.AddDate(0, 0, -1)}
	first, changed := Next(s, day.Add(8*time.Hour))
	assert.True(t, changed)

	second, changed := Next(first, day.Add(20*time.Hour))
	assert.False(t, changed)
	assert.Equal(t, first, second)
	assert.Equal(t, 6, second.Streak)
}

func TestTodayUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*3600)
	// 01:00 local on the 11th is still the 10th in UTC.
	now := time.Date(2024, time.March, 11, 1, 0, 0, 0, loc)
	assert.Equal(t, day, Today(now))
}

func TestDaysBetweenAcrossMonth(t *testing.T) {
	a := time.Date(2024, time.February, 28, 23, 59, 0, 0, time.UTC)
	b := time.Date(2024, time.March, 1, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 2, DaysBetween(a, b))
}
