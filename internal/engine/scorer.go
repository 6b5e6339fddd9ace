package engine

import (
	"time"

	"github.com/scholarpath/testportal-backend/internal/model"
)

// Score computes the final result of a session in a single pass over the
// flattened question list. Subject ownership of a flat index comes from the
// cumulative-count layout carried on the definition, so the scorer never
// needs its own copy of subject boundaries. A zero-question definition is an
// authoring error upstream; callers never submit an empty session.
func Score(sess *TestSession, def *model.TestDefinition, passThreshold float64, timeTakenSeconds int64) *model.ScoreResult {
	questions := sess.Questions()
	answers := sess.answersCopy()

	breakdown := make([]model.SubjectScore, 0, len(def.SubjectLayout))
	segment := make(map[string]int) // subject name → breakdown position

	subjectFor := func(i int) string {
		if name := def.IndexSubject(i); name != "" {
			return name
		}
		// Custom banks without a materialized layout carry the subject on
		// each question.
		return questions[i].SubjectName
	}

	correct := 0
	for i, q := range questions {
		name := subjectFor(i)
		pos, ok := segment[name]
		if !ok {
			pos = len(breakdown)
			segment[name] = pos
			breakdown = append(breakdown, model.SubjectScore{Name: name})
		}
		breakdown[pos].Total++

		answer, answered := answers[i]
		if answered && answer == q.CorrectOption {
			correct++
			breakdown[pos].Correct++
		}
	}

	total := len(questions)
	var percentage float64
	if total > 0 {
		percentage = 100 * float64(correct) / float64(total)
	}

	status := model.ResultFail
	if percentage >= passThreshold {
		status = model.ResultPass
	}

	return &model.ScoreResult{
		ApplicationNo:    sess.ApplicationNo,
		ApplicantName:    sess.ApplicantName,
		TestID:           sess.TestID,
		TestName:         def.Title,
		TotalQuestions:   total,
		CorrectCount:     correct,
		Percentage:       percentage,
		SubjectBreakdown: breakdown,
		Status:           status,
		TimeTakenSeconds: timeTakenSeconds,
		CreatedAt:        time.Now().UTC(),
	}
}
