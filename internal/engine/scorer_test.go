package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func questionSet(counts map[string]int) ([]model.Question, []model.SubjectCount) {
	var questions []model.Question
	var layout []model.SubjectCount
	id := 1
	for _, subject := range []string{"Math", "Science", "English"} {
		n, ok := counts[subject]
		if !ok {
			continue
		}
		for i := 0; i < n; i++ {
			questions = append(questions, model.Question{
				ID:            id,
				SubjectName:   subject,
				Text:          "q",
				Options:       []string{"A", "B", "C", "D"},
				CorrectOption: "A",
			})
			id++
		}
		layout = append(layout, model.SubjectCount{Name: subject, Count: n})
	}
	return questions, layout
}

func newScoredSession(t *testing.T, questions []model.Question, answers map[int]string) *TestSession {
	t.Helper()
	sess := NewSession(uuid.New(), "SCH-2026-0001", "Amit Kumar", questions, 600, time.Now())
	sess.Begin()
	for i, a := range answers {
		require.NoError(t, sess.SetAnswer(i, a))
	}
	return sess
}

func TestScoreHalfCorrect(t *testing.T) {
	questions, layout := questionSet(map[string]int{"Math": 10})
	def := &model.TestDefinition{Title: "Entrance", SubjectLayout: layout}

	answers := map[int]string{}
	for i := 0; i < 5; i++ {
		answers[i] = "A"
	}
	for i := 5; i < 10; i++ {
		answers[i] = "B"
	}
	sess := newScoredSession(t, questions, answers)

	result := Score(sess, def, 40, 120)

	assert.Equal(t, 10, result.TotalQuestions)
	assert.Equal(t, 5, result.CorrectCount)
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, model.ResultPass, result.Status)
	assert.Equal(t, int64(120), result.TimeTakenSeconds)
}

func TestScorePassBoundary(t *testing.T) {
	questions, layout := questionSet(map[string]int{"Math": 10})
	def := &model.TestDefinition{SubjectLayout: layout}

	// Exactly at the threshold passes.
	sess := newScoredSession(t, questions, map[int]string{0: "A", 1: "A", 2: "A", 3: "A"})
	result := Score(sess, def, 40, 0)
	assert.Equal(t, 40.0, result.Percentage)
	assert.Equal(t, model.ResultPass, result.Status)

	// One below fails.
	sess = newScoredSession(t, questions, map[int]string{0: "A", 1: "A", 2: "A"})
	result = Score(sess, def, 40, 0)
	assert.Equal(t, 30.0, result.Percentage)
	assert.Equal(t, model.ResultFail, result.Status)
}

func TestScoreSubjectBreakdown(t *testing.T) {
	questions, layout := questionSet(map[string]int{"Math": 3, "Science": 3})
	def := &model.TestDefinition{SubjectLayout: layout}

	// All of Math right, all of Science wrong → 50% overall, fails at 60.
	sess := newScoredSession(t, questions, map[int]string{0: "A", 1: "A", 2: "A", 3: "B", 4: "B", 5: "B"})
	result := Score(sess, def, 60, 0)

	require.Len(t, result.SubjectBreakdown, 2)
	assert.Equal(t, model.SubjectScore{Name: "Math", Correct: 3, Total: 3}, result.SubjectBreakdown[0])
	assert.Equal(t, model.SubjectScore{Name: "Science", Correct: 0, Total: 3}, result.SubjectBreakdown[1])
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, model.ResultFail, result.Status)
}

func TestScoreUnansweredCountAgainst(t *testing.T) {
	questions, layout := questionSet(map[string]int{"Math": 4})
	def := &model.TestDefinition{SubjectLayout: layout}

	sess := newScoredSession(t, questions, map[int]string{0: "A"})
	result := Score(sess, def, 40, 0)

	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, 25.0, result.Percentage)
	assert.Equal(t, 4, result.SubjectBreakdown[0].Total)
}

func TestScoreSubjectFallbackWithoutLayout(t *testing.T) {
	questions, _ := questionSet(map[string]int{"Math": 2, "English": 2})
	def := &model.TestDefinition{} // no layout, e.g. legacy snapshot

	sess := newScoredSession(t, questions, map[int]string{0: "A", 2: "A"})
	result := Score(sess, def, 40, 0)

	require.Len(t, result.SubjectBreakdown, 2)
	assert.Equal(t, "Math", result.SubjectBreakdown[0].Name)
	assert.Equal(t, "English", result.SubjectBreakdown[1].Name)
	assert.Equal(t, 1, result.SubjectBreakdown[0].Correct)
	assert.Equal(t, 1, result.SubjectBreakdown[1].Correct)
}

func TestIndexSubjectCumulativeCounts(t *testing.T) {
	def := &model.TestDefinition{SubjectLayout: []model.SubjectCount{
		{Name: "Math", Count: 3},
		{Name: "Science", Count: 2},
	}}

	assert.Equal(t, "Math", def.IndexSubject(0))
	assert.Equal(t, "Math", def.IndexSubject(2))
	assert.Equal(t, "Science", def.IndexSubject(3))
	assert.Equal(t, "Science", def.IndexSubject(4))
	assert.Equal(t, "", def.IndexSubject(5))
}
