package engagement

import (
	"testing"

	"dailyforge/internal/models"

	"github.com/stretchr/testify/assert"
)

func f(v float64) *float64 { return &v }

func TestMeetsCheatingAlwaysFails(t *testing.T) {
	req := models.Requirements{}
	perfect := Report{
		WatchPercent:        100,
		ReadPercent:         100,
		ActiveSeconds:       1e6,
		CorrectAnswersCount: 100,
		CheatingDetected:    true,
	}
	assert.False(t, Meets(req, perfect))
	assert.ErrorIs(t, Evaluate(req, perfect), ErrNotEngaged)
}

func TestMeetsThresholds(t *testing.T) {
	req := models.Requirements{
		MinWatchPercent:  f(90),
		MinActiveSeconds: f(60),
	}
	tests := []struct {
		name string
		r    Report
		want bool
	}{
		{"both met", Report{WatchPercent: 90, ActiveSeconds: 60}, true},
		{"watch short", Report{WatchPercent: 89, ActiveSeconds: 600}, false},
		{"active short", Report{WatchPercent: 100, ActiveSeconds: 59}, false},
		{"absent metrics are zero", Report{}, false},
		{"unconfigured metrics ignored", Report{WatchPercent: 95, ActiveSeconds: 61, ReadPercent: 0}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Meets(req, tt.r))
		})
	}
}

func TestMeetsNoRequirements(t *testing.T) {
	assert.True(t, Meets(models.Requirements{}, Report{}))
}

func TestTimeSpentFallsBackToActiveSeconds(t *testing.T) {
	assert.Equal(t, 42.0, Report{ActiveSeconds: 42}.TimeSpent())
	assert.Equal(t, 30.0, Report{ActiveSeconds: 42, TimeSpentSeconds: 30}.TimeSpent())
}

func TestCorrectAnswers(t *testing.T) {
	questions := []models.QuizQuestion{
		{Question: "single", CorrectAnswers: []int{1}},
		{Question: "multi", CorrectAnswers: []int{0, 2}},
		{Question: "wrong", CorrectAnswers: []int{3}},
		{Question: "unconfigured", CorrectAnswers: nil},
	}
	selected := map[int][]int{
		0: {1},
		1: {2, 0},
		2: {3, 1},
		3: {},
	}
	assert.Equal(t, 2, CorrectAnswers(questions, selected))

	req := models.Requirements{MinCorrectAnswers: f(2)}
	assert.True(t, Meets(req, Report{CorrectAnswersCount: 2}))
}

func TestCorrectAnswersNoPartialCredit(t *testing.T) {
	questions := []models.QuizQuestion{{CorrectAnswers: []int{0, 1}}}
	assert.Equal(t, 0, CorrectAnswers(questions, map[int][]int{0: {0}}))
	assert.Equal(t, 0, CorrectAnswers(questions, nil))
}

func TestCorrectAnswersEmptyKeyNeverCorrect(t *testing.T) {
	questions := []models.QuizQuestion{{CorrectAnswers: []int{}}}
	assert.Equal(t, 0, CorrectAnswers(questions, map[int][]int{0: {}}))
}
