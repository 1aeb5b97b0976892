package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type TaskType string

const (
	TypeLink     TaskType = "link"
	TypeVideo    TaskType = "video"
	TypeReading  TaskType = "reading"
	TypeQuiz     TaskType = "quiz"
	TypePomodoro TaskType = "pomodoro"
	TypeMixed    TaskType = "mixed"
)

func (t TaskType) Valid() bool {
	switch t {
	case TypeLink, TypeVideo, TypeReading, TypeQuiz, TypePomodoro, TypeMixed:
		return true
	}
	return false
}

const (
	VerifyTime = "time"
	VerifyQuiz = "quiz"
	VerifyBoth = "both"
	VerifyNone = "none"

	StatusActive   = "active"
	StatusArchived = "archived"
)

// Fallback thresholds for tasks whose requirements and detail leave them out.
// The shares are fractions of the estimated duration.
const (
	defaultPomodoroMinutes   = 25
	defaultMinWatchPercent   = 90.0
	defaultMinReadPercent    = 85.0
	defaultMinCorrectAnswers = 1.0

	linkActiveShare    = 0.6
	videoActiveShare   = 0.8
	readingActiveShare = 0.6
)

// Requirements holds the optional completion thresholds. A nil field is not checked.
type Requirements struct {
	MinWatchPercent   *float64 `json:"minWatchPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinReadPercent    *float64 `json:"minReadPercent,omitempty" validate:"omitempty,gte=0,lte=100"`
	MinActiveSeconds  *float64 `json:"minActiveSeconds,omitempty" validate:"omitempty,gte=0"`
	MinCorrectAnswers *float64 `json:"minCorrectAnswers,omitempty" validate:"omitempty,gte=0"`
}

type Analytics struct {
	TaskClicks          int        `json:"taskClicks"`
	Completions         int        `json:"completions"`
	TotalCompletionTime float64    `json:"totalCompletionTime"`
	DropOffs            int        `json:"dropOffs"`
	Starts              int        `json:"starts"`
	AvgTimeSpent        float64    `json:"avgTimeSpent"`
	UsersCompleted      []int      `json:"usersCompleted"`
	LastOpenedAt        *time.Time `json:"lastOpenedAt,omitempty"`
	LastCompletedAt     *time.Time `json:"lastCompletedAt,omitempty"`
}

type Task struct {
	ID                   int          `json:"id"`
	RoomID               string       `json:"roomId"`
	CreatedBy            int          `json:"createdBy"`
	Type                 TaskType     `json:"type"`
	Title                string       `json:"title"`
	Description          string       `json:"description"`
	Category             string       `json:"category"`
	EstimatedTime        int          `json:"estimatedTime"` // minutes
	VerificationMethod   string       `json:"verificationMethod"`
	Points               *int         `json:"points,omitempty"`
	RewardPoints         int          `json:"rewardPoints"`
	BonusPointsForStreak int          `json:"bonusPointsForStreak"`
	StreakEligible       bool         `json:"streakEligible"`
	Status               string       `json:"status"`
	Requirements         Requirements `json:"requirements"`
	Detail               Detail       `json:"-"`
	Analytics            Analytics    `json:"analytics"`
	CreatedAt            time.Time    `json:"createdAt"`
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// Reward is the number of points a first completion credits.
func (t *Task) Reward() int {
	if t.Points != nil {
		return *t.Points
	}
	return t.RewardPoints
}

func (t Task) MarshalJSON() ([]byte, error) {
	type alias Task
	return json.Marshal(struct {
		alias
		DetailBlocks
		EffectiveRequirements Requirements `json:"effectiveRequirements"`
	}{alias(t), BlocksOf(t.Detail), t.EffectiveRequirements()})
}

func (t *Task) UnmarshalJSON(b []byte) error {
	type alias Task
	var in struct {
		alias
		DetailBlocks
	}
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*t = Task(in.alias)
	t.Detail = in.DetailBlocks.For(t.Type)
	return nil
}

type TaskFilter struct {
	RoomID string
	Type   string
	Status string
}

type CompletionResult struct {
	AlreadyCompleted bool      `json:"alreadyCompleted"`
	PointsAwarded    int       `json:"pointsAwarded"`
	UserPoints       int       `json:"-"`
	UserStreak       int       `json:"-"`
	Analytics        Analytics `json:"analytics"`
}

// Detail is the type-specific payload of a task. Exactly one variant exists per TaskType.
type Detail interface {
	TaskType() TaskType
}

type LinkData struct {
	URL        string   `json:"url"`
	MinSeconds *float64 `json:"minSeconds,omitempty"`
}

type VideoData struct {
	VideoURL string `json:"videoUrl"`
	Duration int    `json:"duration"` // seconds
}

type ReadingData struct {
	Content        string   `json:"content"`
	ContentURL     string   `json:"contentUrl,omitempty"`
	MinReadPercent *float64 `json:"minReadPercent,omitempty"`
	MinSeconds     *float64 `json:"minSeconds,omitempty"`
}

type QuizQuestion struct {
	Question       string   `json:"question" validate:"required"`
	Options        []string `json:"options" validate:"min=2"`
	CorrectAnswers []int    `json:"correctAnswers"`
	Explanation    string   `json:"explanation"`
}

type QuizData struct {
	Questions         []QuizQuestion `json:"questions" validate:"dive"`
	MinCorrectAnswers *float64       `json:"minCorrectAnswers,omitempty"`
}

type PomodoroData struct {
	RequiredMinutes int `json:"requiredMinutes"`
}

type Subtask struct {
	Type   TaskType       `json:"type" validate:"oneof=link video reading quiz pomodoro"`
	Config map[string]any `json:"config"`
}

type MixedData struct {
	Subtasks []Subtask `json:"subtasks" validate:"dive"`
}

func (*LinkData) TaskType() TaskType     { return TypeLink }
func (*VideoData) TaskType() TaskType    { return TypeVideo }
func (*ReadingData) TaskType() TaskType  { return TypeReading }
func (*QuizData) TaskType() TaskType     { return TypeQuiz }
func (*PomodoroData) TaskType() TaskType { return TypePomodoro }
func (*MixedData) TaskType() TaskType    { return TypeMixed }

// ExpectedSeconds is the video length used to derive watch percent.
func (v *VideoData) ExpectedSeconds(estimatedMinutes int) int {
	if v != nil && v.Duration > 0 {
		return v.Duration
	}
	return estimatedMinutes * 60
}

// RequiredSeconds is the focus duration a pomodoro task asks for.
func (p *PomodoroData) RequiredSeconds(estimatedMinutes int) int {
	minutes := 0
	if p != nil {
		minutes = p.RequiredMinutes
	}
	if minutes <= 0 {
		minutes = estimatedMinutes
	}
	if minutes <= 0 {
		minutes = defaultPomodoroMinutes
	}
	return minutes * 60
}

// NewDetail returns the empty variant for t, or nil for an unknown type.
func NewDetail(t TaskType) Detail {
	switch t {
	case TypeLink:
		return &LinkData{}
	case TypeVideo:
		return &VideoData{}
	case TypeReading:
		return &ReadingData{}
	case TypeQuiz:
		return &QuizData{}
	case TypePomodoro:
		return &PomodoroData{}
	case TypeMixed:
		return &MixedData{}
	}
	return nil
}

// DecodeDetail decodes a stored variant for a task of type t.
func DecodeDetail(t TaskType, raw []byte) (Detail, error) {
	d := NewDetail(t)
	if d == nil {
		return nil, fmt.Errorf("unknown task type %q", t)
	}
	if len(raw) == 0 {
		return d, nil
	}
	if err := json.Unmarshal(raw, d); err != nil {
		return nil, fmt.Errorf("decode %s detail: %w", t, err)
	}
	return d, nil
}

// DetailBlocks is the wire form of the variant: one optional block per type.
type DetailBlocks struct {
	LinkData     *LinkData     `json:"linkData,omitempty"`
	VideoData    *VideoData    `json:"videoData,omitempty"`
	ReadingData  *ReadingData  `json:"readingData,omitempty"`
	QuizData     *QuizData     `json:"quizData,omitempty"`
	PomodoroData *PomodoroData `json:"pomodoroData,omitempty"`
	MixedData    *MixedData    `json:"mixedData,omitempty"`
}

// For picks the block matching t. Blocks for other types are ignored.
func (b DetailBlocks) For(t TaskType) Detail {
	switch t {
	case TypeLink:
		if b.LinkData != nil {
			return b.LinkData
		}
	case TypeVideo:
		if b.VideoData != nil {
			return b.VideoData
		}
	case TypeReading:
		if b.ReadingData != nil {
			return b.ReadingData
		}
	case TypeQuiz:
		if b.QuizData != nil {
			return b.QuizData
		}
	case TypePomodoro:
		if b.PomodoroData != nil {
			return b.PomodoroData
		}
	case TypeMixed:
		if b.MixedData != nil {
			return b.MixedData
		}
	}
	return nil
}

func BlocksOf(d Detail) DetailBlocks {
	var b DetailBlocks
	switch v := d.(type) {
	case *LinkData:
		b.LinkData = v
	case *VideoData:
		b.VideoData = v
	case *ReadingData:
		b.ReadingData = v
	case *QuizData:
		b.QuizData = v
	case *PomodoroData:
		b.PomodoroData = v
	case *MixedData:
		b.MixedData = v
	}
	return b
}

// LegacyTaskData is the old flat payload shared by all task types.
type LegacyTaskData struct {
	URL                     string         `json:"url"`
	RequiredActiveTime      *float64       `json:"requiredActiveTime"`
	MinimumScrollDepth      *bool          `json:"minimumScrollDepth"`
	VideoURL                string         `json:"videoUrl"`
	RequiredWatchDuration   *float64       `json:"requiredWatchDuration"`
	AutoplayEnabled         *bool          `json:"autoplayEnabled"`
	ContentURL              string         `json:"contentUrl"`
	ArticleText             string         `json:"articleText"`
	RequiredReadingDuration *float64       `json:"requiredReadingDuration"`
	NumberOfQuestions       *int           `json:"numberOfQuestions"`
	Questions               []QuizQuestion `json:"questions" validate:"dive"`
	PassingPercentage       *float64       `json:"passingPercentage"`
}

// DetailFromLegacy maps the flat payload onto the variant for t.
func DetailFromLegacy(t TaskType, l *LegacyTaskData) Detail {
	if l == nil {
		return NewDetail(t)
	}
	switch t {
	case TypeLink:
		return &LinkData{URL: l.URL, MinSeconds: l.RequiredActiveTime}
	case TypeVideo:
		d := &VideoData{VideoURL: l.VideoURL}
		if l.RequiredWatchDuration != nil {
			d.Duration = int(*l.RequiredWatchDuration)
		}
		return d
	case TypeReading:
		return &ReadingData{Content: l.ArticleText, ContentURL: l.ContentURL, MinSeconds: l.RequiredReadingDuration}
	case TypeQuiz:
		d := &QuizData{Questions: l.Questions}
		if l.PassingPercentage != nil && *l.PassingPercentage > 0 && len(l.Questions) > 0 {
			n := math.Ceil(*l.PassingPercentage / 100 * float64(len(l.Questions)))
			d.MinCorrectAnswers = &n
		}
		return d
	}
	return NewDetail(t)
}

// ResolveDetail picks the typed block for t, falling back to the legacy payload.
func ResolveDetail(t TaskType, blocks DetailBlocks, legacy *LegacyTaskData) Detail {
	if d := blocks.For(t); d != nil {
		return d
	}
	return DetailFromLegacy(t, legacy)
}

// EffectiveRequirements is the threshold set a completion is checked
// against: the stored requirements, with every absent field derived from the
// current detail and estimated time. The stored requirements are not modified.
func (t *Task) EffectiveRequirements() Requirements {
	r := t.Requirements
	estimated := float64(t.EstimatedTime) * 60
	orShare := func(v *float64, share float64) *float64 {
		if v != nil || estimated <= 0 {
			return v
		}
		return ptr(estimated * share)
	}

	switch t.Type {
	case TypeLink:
		if r.MinActiveSeconds == nil {
			if d, _ := t.Detail.(*LinkData); d != nil && d.MinSeconds != nil {
				r.MinActiveSeconds = ptr(*d.MinSeconds)
			}
		}
		r.MinActiveSeconds = orShare(r.MinActiveSeconds, linkActiveShare)
	case TypeVideo:
		if r.MinWatchPercent == nil {
			r.MinWatchPercent = ptr(defaultMinWatchPercent)
		}
		r.MinActiveSeconds = orShare(r.MinActiveSeconds, videoActiveShare)
	case TypeReading:
		if d, _ := t.Detail.(*ReadingData); d != nil {
			if r.MinReadPercent == nil && d.MinReadPercent != nil {
				r.MinReadPercent = ptr(*d.MinReadPercent)
			}
			if r.MinActiveSeconds == nil && d.MinSeconds != nil {
				r.MinActiveSeconds = ptr(*d.MinSeconds)
			}
		}
		if r.MinReadPercent == nil {
			r.MinReadPercent = ptr(defaultMinReadPercent)
		}
		r.MinActiveSeconds = orShare(r.MinActiveSeconds, readingActiveShare)
	case TypeQuiz:
		if r.MinCorrectAnswers == nil {
			if d, _ := t.Detail.(*QuizData); d != nil && d.MinCorrectAnswers != nil {
				r.MinCorrectAnswers = ptr(*d.MinCorrectAnswers)
			} else {
				r.MinCorrectAnswers = ptr(defaultMinCorrectAnswers)
			}
		}
	case TypePomodoro:
		d, _ := t.Detail.(*PomodoroData)
		// Capped to the timer's limit.
		required := float64(d.RequiredSeconds(t.EstimatedTime))
		if r.MinActiveSeconds == nil || *r.MinActiveSeconds > required {
			r.MinActiveSeconds = ptr(required)
		}
	}
	return r
}

func ptr[T any](v T) *T { return &v }
