package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func TestTaskJSONCarriesOnlyItsVariant(t *testing.T) {
	task := Task{
		ID:     7,
		RoomID: "DF1234",
		Type:   TypeVideo,
		Title:  "Watch the lecture",
		Detail: &VideoData{VideoURL: "https://youtu.be/abc", Duration: 600},
	}

	raw, err := json.Marshal(task)
	require.NoError(t, err)

	var generic map[string]any
	require.NoError(t, json.Unmarshal(raw, &generic))
	assert.Contains(t, generic, "videoData")
	assert.NotContains(t, generic, "quizData")
	assert.NotContains(t, generic, "Detail")

	var back Task
	require.NoError(t, json.Unmarshal(raw, &back))
	video, ok := back.Detail.(*VideoData)
	require.True(t, ok)
	assert.Equal(t, 600, video.Duration)
	assert.Equal(t, "DF1234", back.RoomID)
}

func TestResolveDetailPrefersTypedBlock(t *testing.T) {
	blocks := DetailBlocks{LinkData: &LinkData{URL: "https://typed.example"}}
	legacy := &LegacyTaskData{URL: "https://legacy.example"}

	d := ResolveDetail(TypeLink, blocks, legacy)
	assert.Equal(t, "https://typed.example", d.(*LinkData).URL)

	d = ResolveDetail(TypeLink, DetailBlocks{}, legacy)
	assert.Equal(t, "https://legacy.example", d.(*LinkData).URL)

	d = ResolveDetail(TypePomodoro, DetailBlocks{}, nil)
	assert.IsType(t, &PomodoroData{}, d)
}

func TestDetailFromLegacyQuizPassingPercentage(t *testing.T) {
	legacy := &LegacyTaskData{
		Questions: []QuizQuestion{
			{Question: "a", Options: []string{"x", "y"}, CorrectAnswers: []int{0}},
			{Question: "b", Options: []string{"x", "y"}, CorrectAnswers: []int{1}},
			{Question: "c", Options: []string{"x", "y"}, CorrectAnswers: []int{0}},
		},
		PassingPercentage: f(50),
	}

	quiz := DetailFromLegacy(TypeQuiz, legacy).(*QuizData)
	require.NotNil(t, quiz.MinCorrectAnswers)
	assert.Equal(t, 2.0, *quiz.MinCorrectAnswers)
	assert.Len(t, quiz.Questions, 3)
}

func TestEffectiveRequirements(t *testing.T) {
	t.Run("link falls back to estimated time share", func(t *testing.T) {
		task := &Task{Type: TypeLink, EstimatedTime: 10, Detail: &LinkData{}}
		r := task.EffectiveRequirements()
		require.NotNil(t, r.MinActiveSeconds)
		assert.Equal(t, 360.0, *r.MinActiveSeconds)
	})

	t.Run("link detail minimum beats estimate", func(t *testing.T) {
		task := &Task{Type: TypeLink, EstimatedTime: 10, Detail: &LinkData{MinSeconds: f(90)}}
		assert.Equal(t, 90.0, *task.EffectiveRequirements().MinActiveSeconds)
	})

	t.Run("explicit requirement wins", func(t *testing.T) {
		task := &Task{
			Type:         TypeQuiz,
			Requirements: Requirements{MinCorrectAnswers: f(1)},
			Detail:       &QuizData{MinCorrectAnswers: f(3)},
		}
		assert.Equal(t, 1.0, *task.EffectiveRequirements().MinCorrectAnswers)
	})

	t.Run("pomodoro requires full duration and caps larger minimums", func(t *testing.T) {
		task := &Task{
			Type:         TypePomodoro,
			Requirements: Requirements{MinActiveSeconds: f(99999)},
			Detail:       &PomodoroData{RequiredMinutes: 25},
		}
		assert.Equal(t, 1500.0, *task.EffectiveRequirements().MinActiveSeconds)
		assert.Equal(t, 99999.0, *task.Requirements.MinActiveSeconds, "stored requirements are untouched")
	})

	t.Run("video defaults", func(t *testing.T) {
		task := &Task{Type: TypeVideo, EstimatedTime: 10, Detail: &VideoData{Duration: 100}}
		r := task.EffectiveRequirements()
		assert.Equal(t, 90.0, *r.MinWatchPercent)
		assert.Equal(t, 480.0, *r.MinActiveSeconds)
		assert.Equal(t, Requirements{}, task.Requirements)
	})

	t.Run("video without estimate has no active minimum", func(t *testing.T) {
		r := (&Task{Type: TypeVideo}).EffectiveRequirements()
		assert.Equal(t, 90.0, *r.MinWatchPercent)
		assert.Nil(t, r.MinActiveSeconds)
	})

	t.Run("reading defaults", func(t *testing.T) {
		task := &Task{Type: TypeReading, EstimatedTime: 5, Detail: &ReadingData{}}
		r := task.EffectiveRequirements()
		assert.Equal(t, 85.0, *r.MinReadPercent)
		assert.Equal(t, 180.0, *r.MinActiveSeconds)
	})

	t.Run("reading detail thresholds beat defaults", func(t *testing.T) {
		task := &Task{
			Type:          TypeReading,
			EstimatedTime: 5,
			Detail:        &ReadingData{MinReadPercent: f(60), MinSeconds: f(45)},
		}
		r := task.EffectiveRequirements()
		assert.Equal(t, 60.0, *r.MinReadPercent)
		assert.Equal(t, 45.0, *r.MinActiveSeconds)
	})

	t.Run("quiz defaults to one correct answer", func(t *testing.T) {
		r := (&Task{Type: TypeQuiz, Detail: &QuizData{}}).EffectiveRequirements()
		assert.Equal(t, 1.0, *r.MinCorrectAnswers)
	})

	t.Run("derived values follow later edits", func(t *testing.T) {
		task := &Task{Type: TypePomodoro, Detail: &PomodoroData{RequiredMinutes: 10}}
		assert.Equal(t, 600.0, *task.EffectiveRequirements().MinActiveSeconds)

		task.Detail = &PomodoroData{RequiredMinutes: 25}
		assert.Equal(t, 1500.0, *task.EffectiveRequirements().MinActiveSeconds)

		link := &Task{Type: TypeLink, EstimatedTime: 10, Detail: &LinkData{}}
		link.EstimatedTime = 20
		assert.Equal(t, 720.0, *link.EffectiveRequirements().MinActiveSeconds)
	})

	t.Run("mixed has no thresholds", func(t *testing.T) {
		assert.Equal(t, Requirements{}, (&Task{Type: TypeMixed, EstimatedTime: 10}).EffectiveRequirements())
	})
}

func TestMarshalIncludesEffectiveRequirements(t *testing.T) {
	task := Task{Type: TypeQuiz, Detail: &QuizData{}}
	raw, err := json.Marshal(task)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, 1.0, out["effectiveRequirements"].(map[string]any)["minCorrectAnswers"])
	assert.Empty(t, out["requirements"])

	var back Task
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Nil(t, back.Requirements.MinCorrectAnswers, "derived thresholds are not read back as explicit")
}

func TestReward(t *testing.T) {
	five := 5
	assert.Equal(t, 5, (&Task{Points: &five, RewardPoints: 20}).Reward())
	assert.Equal(t, 20, (&Task{RewardPoints: 20}).Reward())
	assert.Equal(t, 0, (&Task{}).Reward())
}

func TestPomodoroRequiredSeconds(t *testing.T) {
	assert.Equal(t, 600, (&PomodoroData{RequiredMinutes: 10}).RequiredSeconds(30))
	assert.Equal(t, 1800, (&PomodoroData{}).RequiredSeconds(30))
	assert.Equal(t, 1500, (*PomodoroData)(nil).RequiredSeconds(0))
}

func TestDecodeDetailRejectsUnknownType(t *testing.T) {
	_, err := DecodeDetail("podcast", []byte(`{}`))
	assert.Error(t, err)

	d, err := DecodeDetail(TypeReading, []byte(`{"content":"hello"}`))
	require.NoError(t, err)
	assert.Equal(t, "hello", d.(*ReadingData).Content)
}
