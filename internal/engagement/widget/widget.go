// Package widget implements the per-task engagement trackers a client runs
// while a learner works on a task. Each tracker is a small state machine fed
// by clock ticks and visibility changes; Snapshot projects it onto the report
// the server evaluates.
package widget

import (
	"errors"
	"fmt"
	"math"
	"time"

	"dailyforge/internal/engagement"
	"dailyforge/internal/models"
)

var ErrUnsupportedType = errors.New("no engagement widget for task type")

type Phase int

const (
	// Idle: tracking has not been started.
	Idle Phase = iota
	// Tracking: active time accumulates.
	Tracking
	// Paused: the page is hidden; accumulated time is kept.
	Paused
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Paused:
		return "paused"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

type Widget interface {
	// Tick advances the clock. It reports whether any metric changed.
	Tick(now time.Time) bool
	// SetVisible records a visibility change of the page.
	SetVisible(visible bool, now time.Time) bool
	Snapshot() Snapshot
}

// Snapshot is the projection of a widget's state.
type Snapshot struct {
	Phase               Phase   `json:"phase"`
	CanComplete         bool    `json:"canComplete"`
	ActiveSeconds       int     `json:"activeSeconds"`
	TimeSpentSeconds    int     `json:"timeSpentSeconds"`
	WatchPercent        float64 `json:"watchPercent,omitempty"`
	ReadPercent         float64 `json:"readPercent,omitempty"`
	CorrectAnswersCount int     `json:"correctAnswersCount,omitempty"`
	CheatingDetected    bool    `json:"cheatingDetected"`
}

// Report converts the snapshot into the payload of a completion request.
func (s Snapshot) Report() engagement.Report {
	return engagement.Report{
		WatchPercent:        s.WatchPercent,
		ReadPercent:         s.ReadPercent,
		ActiveSeconds:       float64(s.ActiveSeconds),
		CorrectAnswersCount: float64(s.CorrectAnswersCount),
		TimeSpentSeconds:    float64(s.TimeSpentSeconds),
		CheatingDetected:    s.CheatingDetected,
	}
}

// New builds the widget for task's type. Auto-starting widgets begin tracking at now.
func New(task *models.Task, now time.Time) (Widget, error) {
	switch task.Type {
	case models.TypeVideo:
		return NewVideo(task), nil
	case models.TypeReading:
		return NewReading(task, now), nil
	case models.TypeLink:
		return NewLink(task, now), nil
	case models.TypePomodoro:
		return NewPomodoro(task, now), nil
	case models.TypeQuiz:
		return NewQuiz(task, now), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, task.Type)
}

// tracker accumulates whole seconds of active time while armed and visible.
// With keepTiming set it also counts while hidden; hiding still latches cheating.
// Hiding the page latches cheated for the rest of the session.
type tracker struct {
	armed   bool
	visible bool
	cheated bool
	active  int
	limit   int // 0 means uncapped
	anchor  time.Time

	keepTiming bool
}

func newTracker(armed bool, limit int, now time.Time) tracker {
	t := tracker{armed: armed, visible: true, limit: limit}
	if armed {
		t.anchor = now
	}
	return t
}

func (t *tracker) phase() Phase {
	switch {
	case !t.armed:
		return Idle
	case !t.visible && !t.keepTiming:
		return Paused
	default:
		return Tracking
	}
}

func (t *tracker) Tick(now time.Time) bool {
	if t.phase() != Tracking {
		return false
	}
	if t.anchor.IsZero() {
		t.anchor = now
		return false
	}
	secs := int(now.Sub(t.anchor) / time.Second)
	if secs <= 0 {
		return false
	}
	t.anchor = t.anchor.Add(time.Duration(secs) * time.Second)
	before := t.active
	t.active += secs
	if t.limit > 0 && t.active > t.limit {
		t.active = t.limit
	}
	return t.active != before
}

func (t *tracker) SetVisible(visible bool, now time.Time) bool {
	if visible == t.visible {
		return false
	}
	t.visible = visible
	if !visible {
		t.cheated = true
	}
	if t.keepTiming {
		return true
	}
	if !visible {
		t.anchor = time.Time{}
		return true
	}
	if t.armed {
		t.anchor = now
	}
	return true
}

func (t *tracker) setArmed(armed bool, now time.Time) bool {
	if armed == t.armed {
		return false
	}
	t.armed = armed
	t.anchor = time.Time{}
	if armed && (t.visible || t.keepTiming) {
		t.anchor = now
	}
	return true
}

func (t *tracker) snapshot() Snapshot {
	return Snapshot{
		Phase:            t.phase(),
		ActiveSeconds:    t.active,
		TimeSpentSeconds: t.active,
		CheatingDetected: t.cheated,
	}
}

func percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return math.Min(100, math.Round(part/whole*100))
}

func complete(req models.Requirements, s Snapshot) Snapshot {
	s.CanComplete = engagement.Meets(req, s.Report())
	return s
}
