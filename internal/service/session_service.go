package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/engine"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
)

// AnswerRecorder enqueues answer events for the audit trail.
type AnswerRecorder interface {
	RecordAnswer(ctx context.Context, event *model.AnswerEvent) error
}

// ResultReader loads a persisted final score.
type ResultReader interface {
	GetByApplicationAndTest(ctx context.Context, applicationNo string, testID uuid.UUID) (*model.ScoreResult, error)
}

// SessionState is the resumable view of an attempt returned to the
// candidate: everything the client needs to redraw the page after a reload.
type SessionState struct {
	TestID           uuid.UUID                    `json:"test_id"`
	Title            string                       `json:"title"`
	Status           engine.Status                `json:"status"`
	Questions        []model.QuestionForCandidate `json:"questions"`
	Answers          map[int]string               `json:"answers"`
	CurrentIndex     int                          `json:"current_index"`
	RemainingSeconds int64                        `json:"remaining_seconds"`
	Result           *model.ScoreResult           `json:"result,omitempty"`
}

type activeSession struct {
	sess  *engine.TestSession
	timer *engine.Timer
	def   *model.TestDefinition
}

// SessionService owns the live sessions of this server instance. A session
// is created once eligibility passes, driven by a per-session countdown
// timer, snapshotted to Redis on a slower interval so a reload resumes with
// nothing lost, and finalized exactly once regardless of how submission was
// triggered.
type SessionService struct {
	eligibility *EligibilityService
	source      *QuestionSourceService
	tests       TestLookup
	snapshots   engine.SnapshotStore
	submitter   *engine.Submitter
	answers     AnswerRecorder
	results     ResultReader

	snapshotTicks int

	mu     sync.Mutex
	active map[string]*activeSession

	log zerolog.Logger
}

// NewSessionService creates a new SessionService. snapshotInterval is
// rounded down to whole seconds of the one-second countdown tick.
func NewSessionService(
	eligibility *EligibilityService,
	source *QuestionSourceService,
	tests TestLookup,
	snapshots engine.SnapshotStore,
	submitter *engine.Submitter,
	answers AnswerRecorder,
	results ResultReader,
	snapshotInterval time.Duration,
	log zerolog.Logger,
) *SessionService {
	ticks := int(snapshotInterval / time.Second)
	if ticks < 1 {
		ticks = 1
	}
	return &SessionService{
		eligibility:   eligibility,
		source:        source,
		tests:         tests,
		snapshots:     snapshots,
		submitter:     submitter,
		answers:       answers,
		results:       results,
		snapshotTicks: ticks,
		active:        make(map[string]*activeSession),
		log:           log.With().Str("component", "session").Logger(),
	}
}

func sessionKey(testID uuid.UUID, applicationNo string) string {
	return applicationNo + ":" + testID.String()
}

// Verify runs the eligibility gate without creating a session.
func (s *SessionService) Verify(ctx context.Context, testID uuid.UUID, in VerifyInput) (*model.EligibilityRecord, error) {
	return s.eligibility.Verify(ctx, testID, in)
}

// Begin starts or resumes the attempt for an application on a test. The
// snapshot is written before the first question is ever shown, so a crash at
// any later point resumes rather than restarts.
func (s *SessionService) Begin(ctx context.Context, testID uuid.UUID, in VerifyInput) (*SessionState, error) {
	key := sessionKey(testID, in.ApplicationNo)

	as, err := s.lookup(ctx, testID, in.ApplicationNo, in.CandidateName)
	if err == nil {
		return s.stateOf(as), nil
	}
	var coded *CodedError
	if !errors.As(err, &coded) || coded.Code != response.ErrNoActiveSession {
		return nil, err
	}

	record, err := s.eligibility.Verify(ctx, testID, in)
	if err != nil {
		return nil, err
	}
	if !record.Eligible {
		return nil, Coded(response.ErrCode(record.Reason), nil)
	}

	def, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	questions, err := s.source.Resolve(ctx, def)
	if err != nil {
		return nil, err
	}

	duration := int64(def.TimeLimitMinutes) * 60
	sess := engine.NewSession(testID, record.ApplicationNo, record.ApplicantName, questions, duration, time.Now())

	// Persist before rendering: losing this write means the attempt never
	// started, never a half-started one.
	if err := s.snapshots.Save(ctx, sess.Snapshot()); err != nil {
		return nil, fmt.Errorf("save initial snapshot: %w", err)
	}

	as = s.activate(key, sess, def)
	s.log.Info().
		Str("test_id", testID.String()).
		Str("application_no", record.ApplicationNo).
		Int("questions", len(questions)).
		Int64("duration_seconds", duration).
		Msg("Session started")

	return s.stateOf(as), nil
}

// State returns the current view of the attempt, resuming from a snapshot if
// this instance does not hold the session in memory.
func (s *SessionService) State(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) (*SessionState, error) {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return nil, err
	}
	return s.stateOf(as), nil
}

// Answer records or overwrites the selected option for a question index and
// queues the event for the audit trail.
func (s *SessionService) Answer(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string, req *model.AnswerRequest) error {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return err
	}
	if err := as.sess.SetAnswer(req.QuestionIndex, req.SelectedOption); err != nil {
		return s.mapEngineErr(err)
	}

	event := &model.AnswerEvent{
		ApplicationNo:  applicationNo,
		TestID:         testID,
		QuestionID:     req.QuestionIndex + 1,
		SelectedOption: req.SelectedOption,
		AnsweredAt:     time.Now(),
	}
	if err := s.answers.RecordAnswer(ctx, event); err != nil {
		// The in-memory session already holds the answer and the next
		// snapshot carries it; the audit trail misses one event.
		s.log.Warn().Err(err).
			Str("application_no", applicationNo).
			Msg("Queue answer event failed")
	}
	return nil
}

// Navigate moves the session's current question position.
func (s *SessionService) Navigate(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string, index int) error {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return err
	}
	if err := as.sess.Navigate(index); err != nil {
		return s.mapEngineErr(err)
	}
	return nil
}

// Submit finalizes the attempt on the candidate's request. Safe to call
// concurrently with timer expiry; both paths observe the same result. The
// session stays registered on a persistence failure so a retry can re-drive
// the result write.
func (s *SessionService) Submit(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) (*model.ScoreResult, error) {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return nil, err
	}
	result, err := s.submitter.Submit(ctx, as.sess, as.def, as.timer, engine.TriggerManual)
	if err == nil {
		s.deactivate(testID, applicationNo)
	}
	return result, err
}

// Result returns the persisted final score for an attempt.
func (s *SessionService) Result(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) (*model.ScoreResult, error) {
	// A just-submitted session may still be in the worker queue; prefer the
	// in-memory result when the session is still held.
	s.mu.Lock()
	as, ok := s.active[sessionKey(testID, applicationNo)]
	s.mu.Unlock()
	if ok {
		if r := as.sess.Result(); r != nil {
			if !namesMatch(candidateName, r.ApplicantName) {
				return nil, Coded(response.ErrIdentityMismatch, nil)
			}
			return r, nil
		}
	}

	result, err := s.results.GetByApplicationAndTest(ctx, applicationNo, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Coded(response.ErrResultNotFound, nil)
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	if !namesMatch(candidateName, result.ApplicantName) {
		return nil, Coded(response.ErrIdentityMismatch, nil)
	}
	return result, nil
}

// Clock returns the authoritative remaining seconds and status for a live
// session. Cheaper than State; meant for the websocket tick stream.
func (s *SessionService) Clock(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) (int64, engine.Status, error) {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return 0, "", err
	}
	return as.sess.RemainingSeconds(), as.sess.Status(), nil
}

// SaveSnapshot persists the session's current state on demand, outside the
// periodic snapshot interval. Used by the websocket autosave action.
func (s *SessionService) SaveSnapshot(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) error {
	as, err := s.lookup(ctx, testID, applicationNo, candidateName)
	if err != nil {
		return err
	}
	return s.snapshots.Save(ctx, as.sess.Snapshot())
}

// Shutdown snapshots every live session so a restarted instance resumes them.
func (s *SessionService) Shutdown(ctx context.Context) {
	s.mu.Lock()
	sessions := make([]*activeSession, 0, len(s.active))
	for _, as := range s.active {
		sessions = append(sessions, as)
	}
	s.active = make(map[string]*activeSession)
	s.mu.Unlock()

	for _, as := range sessions {
		as.timer.Stop()
		if as.sess.Status() != engine.StatusInProgress {
			continue
		}
		if err := s.snapshots.Save(ctx, as.sess.Snapshot()); err != nil {
			s.log.Error().Err(err).
				Str("application_no", as.sess.ApplicationNo).
				Msg("Snapshot on shutdown failed")
		}
	}
}

// lookup finds the live session in memory, falling back to a snapshot
// resume, and checks the caller's identity against the attempt. An
// application number alone is not authorization: the session belongs to the
// applicant whose identity passed the entry gate, nobody else.
func (s *SessionService) lookup(ctx context.Context, testID uuid.UUID, applicationNo, candidateName string) (*activeSession, error) {
	s.mu.Lock()
	as, ok := s.active[sessionKey(testID, applicationNo)]
	s.mu.Unlock()

	if !ok {
		var err error
		as, err = s.resume(ctx, testID, applicationNo)
		if err != nil {
			return nil, err
		}
		if as == nil {
			return nil, Coded(response.ErrNoActiveSession, nil)
		}
	}

	if !namesMatch(candidateName, as.sess.ApplicantName) {
		s.log.Warn().
			Str("application_no", applicationNo).
			Str("test_id", testID.String()).
			Msg("Session access with mismatched identity")
		return nil, Coded(response.ErrIdentityMismatch, nil)
	}
	return as, nil
}

// resume rebuilds a session from its Redis snapshot. Returns (nil, nil) when
// no snapshot exists. A snapshot whose deadline already passed is submitted
// as a timeout immediately; the returned state carries the final result.
func (s *SessionService) resume(ctx context.Context, testID uuid.UUID, applicationNo string) (*activeSession, error) {
	snap, err := s.snapshots.Load(ctx, testID, applicationNo)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}

	def, err := s.loadTest(ctx, testID)
	if err != nil {
		return nil, err
	}

	duration := int64(def.TimeLimitMinutes) * 60
	sess := engine.Resume(snap, duration)

	if sess.RemainingSeconds() <= 0 {
		// The clock ran out while nobody was looking.
		as := &activeSession{sess: sess, timer: engine.NewTimer(s.snapshotTicks), def: def}
		s.mu.Lock()
		if existing, ok := s.active[sessionKey(testID, applicationNo)]; ok {
			// A concurrent resume got here first; it owns the timeout submit.
			s.mu.Unlock()
			return existing, nil
		}
		s.active[sessionKey(testID, applicationNo)] = as
		s.mu.Unlock()
		if _, err := s.submitter.Submit(ctx, sess, def, as.timer, engine.TriggerTimeout); err != nil {
			s.log.Error().Err(err).
				Str("application_no", applicationNo).
				Msg("Submit expired session failed")
		}
		return as, nil
	}

	as := s.activate(sessionKey(testID, applicationNo), sess, def)
	s.log.Info().
		Str("test_id", testID.String()).
		Str("application_no", applicationNo).
		Int64("remaining_seconds", sess.RemainingSeconds()).
		Msg("Session resumed from snapshot")
	return as, nil
}

// activate registers the session and starts its countdown. When a concurrent
// request already registered the same attempt (the reload pattern: HTTP state
// fetch racing the websocket connect), the registered session wins and this
// one is discarded with its timer never started, so only one countdown and
// one snapshot writer exist per attempt.
func (s *SessionService) activate(key string, sess *engine.TestSession, def *model.TestDefinition) *activeSession {
	timer := engine.NewTimer(s.snapshotTicks)
	as := &activeSession{sess: sess, timer: timer, def: def}

	s.mu.Lock()
	if existing, ok := s.active[key]; ok {
		s.mu.Unlock()
		return existing
	}
	s.active[key] = as
	s.mu.Unlock()

	sess.Begin()
	timer.Start(sess.RemainingSeconds(),
		sess.ApplyTick,
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := s.snapshots.Save(ctx, sess.Snapshot()); err != nil {
				s.log.Warn().Err(err).
					Str("application_no", sess.ApplicationNo).
					Msg("Periodic snapshot failed")
			}
		},
		func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := s.submitter.Submit(ctx, sess, def, timer, engine.TriggerTimeout); err != nil {
				s.log.Error().Err(err).
					Str("application_no", sess.ApplicationNo).
					Msg("Timeout submit failed")
			}
			s.deactivate(sess.TestID, sess.ApplicationNo)
		},
	)
	return as
}

func (s *SessionService) deactivate(testID uuid.UUID, applicationNo string) {
	s.mu.Lock()
	if as, ok := s.active[sessionKey(testID, applicationNo)]; ok {
		as.timer.Stop()
		delete(s.active, sessionKey(testID, applicationNo))
	}
	s.mu.Unlock()
}

func (s *SessionService) loadTest(ctx context.Context, testID uuid.UUID) (*model.TestDefinition, error) {
	def, err := s.tests.GetByID(ctx, testID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, Coded(response.ErrTestNotAvailable, nil)
		}
		return nil, fmt.Errorf("get test: %w", err)
	}
	return def, nil
}

func (s *SessionService) stateOf(as *activeSession) *SessionState {
	snap := as.sess.Snapshot()
	forCandidate := make([]model.QuestionForCandidate, 0, len(snap.Questions))
	for _, q := range snap.Questions {
		forCandidate = append(forCandidate, q.ForCandidate())
	}
	return &SessionState{
		TestID:           snap.TestID,
		Title:            as.def.Title,
		Status:           as.sess.Status(),
		Questions:        forCandidate,
		Answers:          snap.Answers,
		CurrentIndex:     snap.CurrentIndex,
		RemainingSeconds: snap.RemainingSeconds,
		Result:           as.sess.Result(),
	}
}

func (s *SessionService) mapEngineErr(err error) error {
	switch {
	case errors.Is(err, engine.ErrIndexOutOfRange):
		return Coded(response.ErrIndexOutOfRange, nil)
	case errors.Is(err, engine.ErrNotInProgress):
		return Coded(response.ErrSessionSubmitted, nil)
	default:
		return err
	}
}
