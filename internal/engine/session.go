// Package engine implements the timed test-taking session: answer capture
// with reload recovery, a monotonic countdown with exactly-once expiry, and
// deterministic scoring with per-subject breakdown.
package engine

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// Status enumerates session states. Transitions are strictly
// NotStarted → InProgress → Submitted; Submitted is terminal.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusSubmitted  Status = "SUBMITTED"
)

var (
	ErrIndexOutOfRange = errors.New("question index out of range")
	ErrNotInProgress   = errors.New("session is not in progress")
)

// Snapshot is the persisted, resumable representation of an in-progress
// session. Loading a snapshot and re-saving it without mutation yields an
// identical snapshot.
type Snapshot struct {
	TestID           uuid.UUID        `json:"test_id"`
	ApplicationNo    string           `json:"application_no"`
	ApplicantName    string           `json:"applicant_name"`
	Questions        []model.Question `json:"questions"`
	Answers          map[int]string   `json:"answers"`
	CurrentIndex     int              `json:"current_index"`
	RemainingSeconds int64            `json:"remaining_seconds"`
	StartedAt        time.Time        `json:"started_at"`
	Deadline         time.Time        `json:"deadline"`
}

// TestSession is one candidate's single attempt at one test, from eligibility
// verification to final score.
type TestSession struct {
	TestID        uuid.UUID
	ApplicationNo string
	ApplicantName string

	questions       []model.Question
	durationSeconds int64
	startedAt       time.Time
	deadline        time.Time

	mu               sync.Mutex
	answers          map[int]string
	currentIndex     int
	remainingSeconds int64
	status           Status

	submitOnce sync.Once
	result     *model.ScoreResult
	// persistPending is set when the result sink rejected the write, so a
	// later Submit call retries persistence without rescoring.
	persistPending bool
}

// NewSession creates a fresh session over an immutable question list. The
// deadline is the authoritative server-side end of the session: a reload can
// never reset the clock, and a submit after the deadline is clamped.
func NewSession(testID uuid.UUID, applicationNo, applicantName string, questions []model.Question, durationSeconds int64, now time.Time) *TestSession {
	return &TestSession{
		TestID:           testID,
		ApplicationNo:    applicationNo,
		ApplicantName:    applicantName,
		questions:        questions,
		durationSeconds:  durationSeconds,
		startedAt:        now,
		deadline:         now.Add(time.Duration(durationSeconds) * time.Second),
		answers:          make(map[int]string),
		remainingSeconds: durationSeconds,
		status:           StatusNotStarted,
	}
}

// Resume rebuilds a session from a persisted snapshot: same question set,
// same answers, same remaining time. Regenerating instead would change the
// paper and silently reset the clock, which is disallowed.
func Resume(snap *Snapshot, durationSeconds int64) *TestSession {
	answers := snap.Answers
	if answers == nil {
		answers = make(map[int]string)
	}
	remaining := snap.RemainingSeconds
	// Clamp to the recorded deadline so time away from the page still counts.
	if until := int64(time.Until(snap.Deadline).Seconds()); until < remaining {
		remaining = until
	}
	if remaining < 0 {
		remaining = 0
	}
	return &TestSession{
		TestID:           snap.TestID,
		ApplicationNo:    snap.ApplicationNo,
		ApplicantName:    snap.ApplicantName,
		questions:        snap.Questions,
		durationSeconds:  durationSeconds,
		startedAt:        snap.StartedAt,
		deadline:         snap.Deadline,
		answers:          answers,
		currentIndex:     snap.CurrentIndex,
		remainingSeconds: remaining,
		status:           StatusInProgress,
	}
}

// Begin transitions NotStarted → InProgress. Called once, when the timer
// starts. No-op on any other state.
func (s *TestSession) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == StatusNotStarted {
		s.status = StatusInProgress
	}
}

// SetAnswer records or overwrites the selected option for a question index.
// Option validity against the question's declared options is a UI concern.
func (s *TestSession) SetAnswer(index int, selectedOption string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.answers[index] = selectedOption
	return nil
}

// Answer returns the recorded option for a question index, if any.
func (s *TestSession) Answer(index int) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.answers[index]
	return v, ok
}

// Navigate moves the current position to a new question index.
func (s *TestSession) Navigate(index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return ErrNotInProgress
	}
	if index < 0 || index >= len(s.questions) {
		return ErrIndexOutOfRange
	}
	s.currentIndex = index
	return nil
}

// ApplyTick records the countdown position pushed by the timer.
func (s *TestSession) ApplyTick(remaining int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != StatusInProgress {
		return
	}
	if remaining < s.remainingSeconds {
		s.remainingSeconds = remaining
	}
}

// Questions returns the session's immutable question list.
func (s *TestSession) Questions() []model.Question {
	return s.questions
}

// Status returns the current session status.
func (s *TestSession) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// CurrentIndex returns the current question position.
func (s *TestSession) CurrentIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentIndex
}

// RemainingSeconds returns the latest countdown position.
func (s *TestSession) RemainingSeconds() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingSeconds
}

// StartedAt returns the session's authoritative start time.
func (s *TestSession) StartedAt() time.Time {
	return s.startedAt
}

// Deadline returns the session's authoritative end timestamp.
func (s *TestSession) Deadline() time.Time {
	return s.deadline
}

// DurationSeconds returns the full configured duration.
func (s *TestSession) DurationSeconds() int64 {
	return s.durationSeconds
}

// Result returns the final score once the session is submitted, else nil.
func (s *TestSession) Result() *model.ScoreResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Snapshot captures the mutable state for persistence.
func (s *TestSession) Snapshot() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return &Snapshot{
		TestID:           s.TestID,
		ApplicationNo:    s.ApplicationNo,
		ApplicantName:    s.ApplicantName,
		Questions:        s.questions,
		Answers:          answers,
		CurrentIndex:     s.currentIndex,
		RemainingSeconds: s.remainingSeconds,
		StartedAt:        s.startedAt,
		Deadline:         s.deadline,
	}
}

// answersCopy returns a point-in-time copy of the answer map for scoring.
func (s *TestSession) answersCopy() map[int]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	answers := make(map[int]string, len(s.answers))
	for k, v := range s.answers {
		answers[k] = v
	}
	return answers
}

func (s *TestSession) setPersistPending(v bool) {
	s.mu.Lock()
	s.persistPending = v
	s.mu.Unlock()
}

func (s *TestSession) needsPersist() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persistPending
}

// finalize runs compute exactly once, transitioning the session to Submitted
// first. Concurrent callers block until the first completes and then observe
// the same result, which resolves the timeout-vs-manual submit race.
func (s *TestSession) finalize(compute func() *model.ScoreResult) *model.ScoreResult {
	s.submitOnce.Do(func() {
		s.mu.Lock()
		s.status = StatusSubmitted
		s.mu.Unlock()
		r := compute()
		s.mu.Lock()
		s.result = r
		s.mu.Unlock()
	})
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}
