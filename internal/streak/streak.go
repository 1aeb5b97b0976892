// Package streak holds the daily streak transition and the point amounts
// credited by each trigger.
package streak

import "time"

// RoomJoinBonus is credited once per user per room.
const RoomJoinBonus = 10

// State is a user's streak and the UTC day of the last counted visit.
// A zero LastActive means no visit has been recorded.
type State struct {
	Streak     int
	LastActive time.Time
}

// Today truncates now to its UTC calendar day.
func Today(now time.Time) time.Time {
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween counts whole UTC calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Today(b).Sub(Today(a)).Hours() / 24)
}

// Next applies a visit on day today to s. It reports whether anything changed.
// A missed day resets the streak to 1, counting today's visit.
func Next(s State, today time.Time) (State, bool) {
	today = Today(today)
	if s.LastActive.IsZero() {
		return State{Streak: 1, LastActive: today}, true
	}
	switch diff := DaysBetween(s.LastActive, today); {
	case diff == 0:
		return s, false
	case diff == 1:
		return State{Streak: s.Streak + 1, LastActive: today}, true
	case diff > 1:
		return State{Streak: 1, LastActive: today}, true
	default:
		// Marker in the future (clock skew): leave it alone.
		return s, false
	}
}
