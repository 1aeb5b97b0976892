// Package engagement decides whether a reported engagement satisfies a task's
// completion requirements. Server and client widgets share Meets.
package engagement

import (
	"errors"

	"dailyforge/internal/models"
)

// NotEngagedMessage is shown to the learner for every failed gate.
const NotEngagedMessage = "Please fully engage with the task to complete it"

var ErrNotEngaged = errors.New(NotEngagedMessage)

// Report is the engagement a client measured. Absent numbers are zero.
type Report struct {
	WatchPercent        float64 `json:"watchPercent"`
	ReadPercent         float64 `json:"readPercent"`
	ActiveSeconds       float64 `json:"activeSeconds"`
	CorrectAnswersCount float64 `json:"correctAnswersCount"`
	TimeSpentSeconds    float64 `json:"timeSpentSeconds"`
	CheatingDetected    bool    `json:"cheatingDetected"`
}

// TimeSpent is the duration credited to analytics, falling back to active time.
func (r Report) TimeSpent() float64 {
	if r.TimeSpentSeconds > 0 {
		return r.TimeSpentSeconds
	}
	return r.ActiveSeconds
}

// Meets reports whether r passes every configured threshold in req.
// Detected cheating fails regardless of the metrics.
func Meets(req models.Requirements, r Report) bool {
	if r.CheatingDetected {
		return false
	}
	return atLeast(r.WatchPercent, req.MinWatchPercent) &&
		atLeast(r.ReadPercent, req.MinReadPercent) &&
		atLeast(r.ActiveSeconds, req.MinActiveSeconds) &&
		atLeast(r.CorrectAnswersCount, req.MinCorrectAnswers)
}

// Evaluate returns ErrNotEngaged when r does not meet req.
func Evaluate(req models.Requirements, r Report) error {
	if !Meets(req, r) {
		return ErrNotEngaged
	}
	return nil
}

func atLeast(v float64, min *float64) bool {
	return min == nil || v >= *min
}

// CorrectAnswers counts questions whose selection equals the configured
// correct set exactly. Questions without correct answers never count.
func CorrectAnswers(questions []models.QuizQuestion, selected map[int][]int) int {
	count := 0
	for i, q := range questions {
		if exactMatch(q.CorrectAnswers, selected[i]) {
			count++
		}
	}
	return count
}

func exactMatch(correct, picked []int) bool {
	want := toSet(correct)
	if len(want) == 0 {
		return false
	}
	got := toSet(picked)
	if len(got) != len(want) {
		return false
	}
	for n := range want {
		if _, ok := got[n]; !ok {
			return false
		}
	}
	return true
}

func toSet(xs []int) map[int]struct{} {
	s := make(map[int]struct{}, len(xs))
	for _, x := range xs {
		s[x] = struct{}{}
	}
	return s
}
