package engine

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleQuestions(n int) []model.Question {
	questions := make([]model.Question, n)
	for i := range questions {
		questions[i] = model.Question{
			ID:            i + 1,
			SubjectName:   "Math",
			Text:          "q",
			Options:       []string{"A", "B", "C", "D"},
			CorrectOption: "A",
		}
	}
	return questions
}

func TestSessionLifecycle(t *testing.T) {
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", sampleQuestions(3), 600, time.Now())

	assert.Equal(t, StatusNotStarted, sess.Status())
	assert.Equal(t, ErrNotInProgress, sess.SetAnswer(0, "A"))

	sess.Begin()
	assert.Equal(t, StatusInProgress, sess.Status())

	// Begin is a no-op once in progress.
	sess.Begin()
	assert.Equal(t, StatusInProgress, sess.Status())

	require.NoError(t, sess.SetAnswer(0, "B"))
	sess.finalize(func() *model.ScoreResult { return &model.ScoreResult{} })

	assert.Equal(t, StatusSubmitted, sess.Status())
	assert.Equal(t, ErrNotInProgress, sess.SetAnswer(1, "A"))
	assert.Equal(t, ErrNotInProgress, sess.Navigate(1))
}

func TestSetAnswerOverwrite(t *testing.T) {
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", sampleQuestions(3), 600, time.Now())
	sess.Begin()

	require.NoError(t, sess.SetAnswer(1, "B"))
	require.NoError(t, sess.SetAnswer(1, "D"))

	got, ok := sess.Answer(1)
	assert.True(t, ok)
	assert.Equal(t, "D", got)

	_, ok = sess.Answer(0)
	assert.False(t, ok)
}

func TestAnswerIndexBounds(t *testing.T) {
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", sampleQuestions(3), 600, time.Now())
	sess.Begin()

	assert.Equal(t, ErrIndexOutOfRange, sess.SetAnswer(-1, "A"))
	assert.Equal(t, ErrIndexOutOfRange, sess.SetAnswer(3, "A"))
	assert.Equal(t, ErrIndexOutOfRange, sess.Navigate(3))
	require.NoError(t, sess.Navigate(2))
	assert.Equal(t, 2, sess.CurrentIndex())
}

func TestApplyTickMonotonic(t *testing.T) {
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", sampleQuestions(1), 600, time.Now())
	sess.Begin()

	sess.ApplyTick(598)
	assert.Equal(t, int64(598), sess.RemainingSeconds())

	// A stale larger value never moves the clock backwards.
	sess.ApplyTick(599)
	assert.Equal(t, int64(598), sess.RemainingSeconds())
}

func TestSnapshotRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", sampleQuestions(4), 600, now)
	sess.Begin()
	require.NoError(t, sess.SetAnswer(0, "A"))
	require.NoError(t, sess.SetAnswer(2, "C"))
	require.NoError(t, sess.Navigate(2))
	sess.ApplyTick(540)

	snap := sess.Snapshot()

	// Persist and reload through JSON, as the snapshot store does.
	raw, err := json.Marshal(snap)
	require.NoError(t, err)
	var loaded Snapshot
	require.NoError(t, json.Unmarshal(raw, &loaded))

	restored := Resume(&loaded, 600)
	assert.Equal(t, StatusInProgress, restored.Status())
	assert.Equal(t, sess.TestID, restored.TestID)
	assert.Equal(t, 2, restored.CurrentIndex())

	got, ok := restored.Answer(0)
	assert.True(t, ok)
	assert.Equal(t, "A", got)
	got, ok = restored.Answer(2)
	assert.True(t, ok)
	assert.Equal(t, "C", got)

	// Re-saving without mutation yields an identical snapshot.
	again := restored.Snapshot()
	assert.Equal(t, loaded.Answers, again.Answers)
	assert.Equal(t, loaded.CurrentIndex, again.CurrentIndex)
	assert.Equal(t, loaded.Questions, again.Questions)
}

func TestResumeClampsToDeadline(t *testing.T) {
	// Snapshot claims 500s remain but the deadline is only ~60s away, e.g.
	// the candidate closed the tab and came back late.
	snap := &Snapshot{
		TestID:           uuid.New(),
		ApplicationNo:    "SCH-2026-0001",
		ApplicantName:    "Amit Kumar",
		Questions:        sampleQuestions(2),
		Answers:          map[int]string{0: "A"},
		RemainingSeconds: 500,
		StartedAt:        time.Now().Add(-9 * time.Minute),
		Deadline:         time.Now().Add(60 * time.Second),
	}

	sess := Resume(snap, 600)
	assert.LessOrEqual(t, sess.RemainingSeconds(), int64(60))
	assert.Greater(t, sess.RemainingSeconds(), int64(55))
}

func TestResumePastDeadline(t *testing.T) {
	snap := &Snapshot{
		TestID:           uuid.New(),
		ApplicationNo:    "SCH-2026-0001",
		ApplicantName:    "Amit Kumar",
		Questions:        sampleQuestions(2),
		RemainingSeconds: 120,
		StartedAt:        time.Now().Add(-20 * time.Minute),
		Deadline:         time.Now().Add(-10 * time.Minute),
	}

	sess := Resume(snap, 600)
	assert.Equal(t, int64(0), sess.RemainingSeconds())
	// Answers map is usable even when the snapshot carried none.
	assert.Equal(t, ErrIndexOutOfRange, sess.SetAnswer(5, "A"))
}
