package widget

import (
	"math"
	"time"

	"dailyforge/internal/engagement"
	"dailyforge/internal/models"
)

// Video tracks focus time against the expected video length. Tracking only
// starts once the learner toggles it on.
type Video struct {
	tracker
	req      models.Requirements
	expected int
}

func NewVideo(task *models.Task) *Video {
	data, _ := task.Detail.(*models.VideoData)
	return &Video{
		tracker:  newTracker(false, 0, time.Time{}),
		req:      task.EffectiveRequirements(),
		expected: data.ExpectedSeconds(task.EstimatedTime),
	}
}

// ToggleTracking starts or pauses focus tracking.
func (v *Video) ToggleTracking(now time.Time) bool {
	return v.setArmed(!v.armed, now)
}

func (v *Video) Snapshot() Snapshot {
	s := v.snapshot()
	s.WatchPercent = percent(float64(v.active), float64(v.expected))
	return complete(v.req, s)
}

// ScrollPosition mirrors the scroll metrics of the content container.
type ScrollPosition struct {
	Top          float64
	Height       float64
	ClientHeight float64
}

// Reading tracks scroll depth and focus time.
type Reading struct {
	tracker
	req         models.Requirements
	readPercent float64
}

func NewReading(task *models.Task, now time.Time) *Reading {
	return &Reading{
		tracker: newTracker(true, 0, now),
		req:     task.EffectiveRequirements(),
	}
}

// Scroll records the container position; call it once after layout as well.
// Content that fits the viewport counts as fully read.
func (r *Reading) Scroll(pos ScrollPosition) bool {
	scrollable := pos.Height - pos.ClientHeight
	next := 100.0
	if scrollable > 0 {
		next = math.Max(0, percent(pos.Top, scrollable))
	}
	if next == r.readPercent {
		return false
	}
	r.readPercent = next
	return true
}

func (r *Reading) Snapshot() Snapshot {
	s := r.snapshot()
	s.ReadPercent = r.readPercent
	return complete(r.req, s)
}

// Link tracks focus time only.
type Link struct {
	tracker
	req models.Requirements
}

func NewLink(task *models.Task, now time.Time) *Link {
	return &Link{tracker: newTracker(true, 0, now), req: task.EffectiveRequirements()}
}

func (l *Link) Snapshot() Snapshot {
	return complete(l.req, l.snapshot())
}

// Pomodoro is a focus timer that stops counting at the required duration.
type Pomodoro struct {
	tracker
	req      models.Requirements
	required int
}

func NewPomodoro(task *models.Task, now time.Time) *Pomodoro {
	data, _ := task.Detail.(*models.PomodoroData)
	required := data.RequiredSeconds(task.EstimatedTime)
	return &Pomodoro{
		tracker:  newTracker(true, required, now),
		req:      task.EffectiveRequirements(),
		required: required,
	}
}

// Remaining is the focus time still needed.
func (p *Pomodoro) Remaining() time.Duration {
	return time.Duration(p.required-p.active) * time.Second
}

func (p *Pomodoro) Snapshot() Snapshot {
	return complete(p.req, p.snapshot())
}

// Quiz counts fully correct answers while timing the attempt. The timer
// keeps running while the page is hidden.
type Quiz struct {
	tracker
	req       models.Requirements
	questions []models.QuizQuestion
	selected  map[int][]int
}

func NewQuiz(task *models.Task, now time.Time) *Quiz {
	t := newTracker(true, 0, now)
	t.keepTiming = true
	q := &Quiz{
		tracker:  t,
		req:      task.EffectiveRequirements(),
		selected: make(map[int][]int),
	}
	if data, ok := task.Detail.(*models.QuizData); ok {
		q.questions = data.Questions
	}
	return q
}

// Toggle selects or clears an option of a question.
func (q *Quiz) Toggle(question, option int) bool {
	if question < 0 || question >= len(q.questions) {
		return false
	}
	if option < 0 || option >= len(q.questions[question].Options) {
		return false
	}
	picked := q.selected[question]
	for i, o := range picked {
		if o == option {
			q.selected[question] = append(picked[:i:i], picked[i+1:]...)
			return true
		}
	}
	q.selected[question] = append(picked, option)
	return true
}

func (q *Quiz) Snapshot() Snapshot {
	s := q.snapshot()
	s.CorrectAnswersCount = engagement.CorrectAnswers(q.questions, q.selected)
	return complete(q.req, s)
}
