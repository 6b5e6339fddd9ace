package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/config"
	"github.com/scholarpath/testportal-backend/internal/engine"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/scholarpath/testportal-backend/internal/response"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSnapshotStore struct {
	mu sync.Mutex
	// loadDelay widens the window between a Load and the activation that
	// follows it, for exercising concurrent resumes.
	loadDelay time.Duration
	snaps     map[string]*engine.Snapshot
}

func newMemSnapshotStore() *memSnapshotStore {
	return &memSnapshotStore{snaps: map[string]*engine.Snapshot{}}
}

func snapKey(testID uuid.UUID, applicationNo string) string {
	return applicationNo + ":" + testID.String()
}

func (m *memSnapshotStore) Save(_ context.Context, snap *engine.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[snapKey(snap.TestID, snap.ApplicationNo)] = snap
	return nil
}

func (m *memSnapshotStore) Load(_ context.Context, testID uuid.UUID, applicationNo string) (*engine.Snapshot, error) {
	if m.loadDelay > 0 {
		time.Sleep(m.loadDelay)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[snapKey(testID, applicationNo)], nil
}

func (m *memSnapshotStore) Clear(_ context.Context, testID uuid.UUID, applicationNo string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, snapKey(testID, applicationNo))
	return nil
}

func (m *memSnapshotStore) get(testID uuid.UUID, applicationNo string) *engine.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snaps[snapKey(testID, applicationNo)]
}

// memResultQueue stands in for the Redis-backed result queue: SaveResult
// enqueues the record and sets the submitted marker in one step, the way the
// repository pipelines RPUSH and SET. flush plays the persistence worker,
// draining the queue into the durable store.
type memResultQueue struct {
	mu      sync.Mutex
	queued  []*model.ScoreResult
	markers map[string]bool
}

func newMemResultQueue() *memResultQueue {
	return &memResultQueue{markers: map[string]bool{}}
}

func (m *memResultQueue) SaveResult(_ context.Context, result *model.ScoreResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queued = append(m.queued, result)
	m.markers[result.ApplicationNo+":"+result.TestID.String()] = true
	return nil
}

func (m *memResultQueue) IsSubmitted(_ context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markers[applicationNo+":"+testID.String()], nil
}

func (m *memResultQueue) flush(store *memResultStore) {
	m.mu.Lock()
	queued := m.queued
	m.queued = nil
	m.mu.Unlock()
	for _, r := range queued {
		store.put(r)
	}
}

func (m *memResultQueue) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queued)
}

// memResultStore stands in for the Postgres results table.
type memResultStore struct {
	mu      sync.Mutex
	results map[string]*model.ScoreResult
}

func newMemResultStore() *memResultStore {
	return &memResultStore{results: map[string]*model.ScoreResult{}}
}

func (m *memResultStore) put(result *model.ScoreResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ApplicationNo+":"+result.TestID.String()] = result
}

func (m *memResultStore) GetByApplicationAndTest(_ context.Context, applicationNo string, testID uuid.UUID) (*model.ScoreResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.results[applicationNo+":"+testID.String()]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return r, nil
}

func (m *memResultStore) ExistsFor(_ context.Context, applicationNo string, testID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.results[applicationNo+":"+testID.String()]
	return ok, nil
}

type memAnswerRecorder struct {
	mu     sync.Mutex
	events []*model.AnswerEvent
}

func (m *memAnswerRecorder) RecordAnswer(_ context.Context, event *model.AnswerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

type sessionFixture struct {
	svc   *SessionService
	def   *model.TestDefinition
	app   *model.Application
	snaps *memSnapshotStore
	queue *memResultQueue
	store *memResultStore
	rec   *memAnswerRecorder
	input VerifyInput
}

func newSessionFixture() *sessionFixture {
	return newSessionFixtureInterval(5 * time.Second)
}

func newSessionFixtureInterval(snapshotInterval time.Duration) *sessionFixture {
	def := &model.TestDefinition{
		ID:               uuid.New(),
		Title:            "Entrance",
		Status:           model.TestStatusPublished,
		TimeLimitMinutes: 30,
		Source:           model.TestSourceGenerated,
		Subjects: []model.SubjectSpec{
			{Name: "Physics", QuestionCount: 2},
			{Name: "Maths", QuestionCount: 1},
		},
	}
	app := &model.Application{
		ApplicationNo:   "SCH-2026-0001",
		ApplicantName:   "Amit Kumar",
		Modality:        model.ModalityOnline,
		PaymentVerified: true,
	}

	f := &sessionFixture{
		def:   def,
		app:   app,
		snaps: newMemSnapshotStore(),
		queue: newMemResultQueue(),
		store: newMemResultStore(),
		rec:   &memAnswerRecorder{},
		input: VerifyInput{ApplicationNo: app.ApplicationNo, CandidateName: app.ApplicantName},
	}
	f.svc = f.newService(snapshotInterval)
	return f
}

// newService builds a SessionService over the fixture's stores, wired the
// way main wires production: the queue is the submitter's sink, and the
// eligibility guard combines the queue's marker with the durable store.
func (f *sessionFixture) newService(snapshotInterval time.Duration) *SessionService {
	tests := &fakeTestLookup{tests: map[uuid.UUID]*model.TestDefinition{f.def.ID: f.def}}
	apps := &fakeApplicationLookup{apps: map[string]*model.Application{f.app.ApplicationNo: f.app}}
	eligibility := NewEligibilityService(tests, apps, NewSubmissionGuard(f.queue, f.store), zerolog.Nop())
	source := NewQuestionSourceService(&fakeGenerator{}, &fakeBankLister{}, config.ShortfallBestEffort, zerolog.Nop())
	submitter := engine.NewSubmitter(f.snaps, f.queue, 40, zerolog.Nop())
	return NewSessionService(eligibility, source, tests, f.snaps, submitter, f.rec, f.store, snapshotInterval, zerolog.Nop())
}

func (f *sessionFixture) begin(t *testing.T) *SessionState {
	t.Helper()
	state, err := f.svc.Begin(context.Background(), f.def.ID, f.input)
	require.NoError(t, err)
	return state
}

func requireCode(t *testing.T, err error, code response.ErrCode) {
	t.Helper()
	var coded *CodedError
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, code, coded.Code)
}

func TestBeginStartsSession(t *testing.T) {
	f := newSessionFixture()

	state := f.begin(t)

	assert.Equal(t, engine.StatusInProgress, state.Status)
	assert.Len(t, state.Questions, 3)
	assert.Equal(t, int64(30*60), state.RemainingSeconds)
	assert.Equal(t, 0, state.CurrentIndex)

	// The initial snapshot lands before the first question is shown.
	snap := f.snaps.get(f.def.ID, f.app.ApplicationNo)
	require.NotNil(t, snap)
	assert.Equal(t, "Amit Kumar", snap.ApplicantName)
}

func TestBeginReturnsExistingSession(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	err := f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 1, SelectedOption: "B"})
	require.NoError(t, err)

	// A second Begin resumes the same attempt instead of issuing a new paper.
	state := f.begin(t)
	assert.Equal(t, "B", state.Answers[1])
}

func TestBeginIneligible(t *testing.T) {
	f := newSessionFixture()
	f.app.PaymentVerified = false

	_, err := f.svc.Begin(context.Background(), f.def.ID, f.input)
	requireCode(t, err, response.ErrPaymentRequired)
}

func TestAnswerRecordsAndAudits(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	err := f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 0, SelectedOption: "A"})
	require.NoError(t, err)

	state, err := f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, "A", state.Answers[0])

	require.Len(t, f.rec.events, 1)
	assert.Equal(t, 1, f.rec.events[0].QuestionID)
	assert.Equal(t, "A", f.rec.events[0].SelectedOption)
}

func TestAnswerIndexOutOfRange(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	err := f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 99, SelectedOption: "A"})
	requireCode(t, err, response.ErrIndexOutOfRange)
}

func TestNavigate(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	require.NoError(t, f.svc.Navigate(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar", 2))

	state, err := f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, 2, state.CurrentIndex)
}

func TestStateWithoutSession(t *testing.T) {
	f := newSessionFixture()

	_, err := f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	requireCode(t, err, response.ErrNoActiveSession)
}

func TestClock(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	remaining, status, err := f.svc.Clock(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusInProgress, status)
	assert.LessOrEqual(t, remaining, int64(30*60))
	assert.Greater(t, remaining, int64(30*60-5))
}

func TestStateResumesFromSnapshot(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)
	require.NoError(t, f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 0, SelectedOption: "C"}))
	require.NoError(t, f.svc.Navigate(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar", 1))

	f.svc.Shutdown(context.Background())

	restarted := f.newService(5 * time.Second)
	state, err := restarted.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusInProgress, state.Status)
	assert.Equal(t, "C", state.Answers[0])
	assert.Equal(t, 1, state.CurrentIndex)
	assert.Len(t, state.Questions, 3)
	restarted.Shutdown(context.Background())
}

func TestConcurrentResumeSingleSession(t *testing.T) {
	f := newSessionFixtureInterval(time.Second)
	f.begin(t)
	require.NoError(t, f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 0, SelectedOption: "A"}))
	f.svc.Shutdown(context.Background())

	// A slow snapshot load lets two resumes overlap: the HTTP state fetch and
	// the websocket connect both miss the in-memory map after a reload.
	f.snaps.loadDelay = 100 * time.Millisecond
	restarted := f.newService(time.Second)
	defer restarted.Shutdown(context.Background())

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := restarted.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	f.snaps.loadDelay = 0

	restarted.mu.Lock()
	registered := len(restarted.active)
	restarted.mu.Unlock()
	assert.Equal(t, 1, registered)

	// An answer recorded after the resume must survive the periodic
	// snapshots; a second live session would keep writing the pre-reload
	// state over it.
	require.NoError(t, restarted.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 1, SelectedOption: "C"}))
	time.Sleep(2300 * time.Millisecond)

	snap := f.snaps.get(f.def.ID, f.app.ApplicationNo)
	require.NotNil(t, snap)
	assert.Equal(t, "C", snap.Answers[1])
}

func TestResumeExpiredSessionSubmits(t *testing.T) {
	f := newSessionFixture()

	started := time.Now().Add(-31 * time.Minute)
	require.NoError(t, f.snaps.Save(context.Background(), &engine.Snapshot{
		TestID:           f.def.ID,
		ApplicationNo:    f.app.ApplicationNo,
		ApplicantName:    f.app.ApplicantName,
		Questions:        []model.Question{{ID: 1, SubjectName: "Physics", Text: "q", Options: []string{"A", "B"}, CorrectOption: "A"}},
		Answers:          map[int]string{0: "A"},
		RemainingSeconds: 40,
		StartedAt:        started,
		Deadline:         started.Add(30 * time.Minute),
	}))

	state, err := f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusSubmitted, state.Status)
	require.NotNil(t, state.Result)
	assert.Equal(t, 1, state.Result.CorrectCount)
	assert.Equal(t, 1, f.queue.len())
}

func TestSubmitFinalizesAndClears(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)
	require.NoError(t, f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 0, SelectedOption: "A"}))

	result, err := f.svc.Submit(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, 1, result.CorrectCount)
	assert.Equal(t, 3, result.TotalQuestions)
	assert.Equal(t, "Amit Kumar", result.ApplicantName)

	// The result is queued for the worker and the snapshot is gone.
	assert.Equal(t, 1, f.queue.len())
	assert.Nil(t, f.snaps.get(f.def.ID, f.app.ApplicationNo))

	_, err = f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	requireCode(t, err, response.ErrNoActiveSession)
}

func TestBeginBlockedAfterSubmit(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)
	_, err := f.svc.Submit(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)

	// The result is still in the worker queue, not in the results table. The
	// submit-time marker must block a fresh attempt through that window.
	exists, err := f.store.ExistsFor(context.Background(), f.app.ApplicationNo, f.def.ID)
	require.NoError(t, err)
	require.False(t, exists)

	_, err = f.svc.Begin(context.Background(), f.def.ID, f.input)
	requireCode(t, err, response.ErrAlreadySubmitted)

	// Still blocked once the worker lands the row.
	f.queue.flush(f.store)
	_, err = f.svc.Begin(context.Background(), f.def.ID, f.input)
	requireCode(t, err, response.ErrAlreadySubmitted)
}

func TestResultReadsStore(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)
	_, err := f.svc.Submit(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)

	// Before the worker runs the row does not exist yet.
	_, err = f.svc.Result(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	requireCode(t, err, response.ErrResultNotFound)

	f.queue.flush(f.store)
	result, err := f.svc.Result(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	assert.Equal(t, f.app.ApplicationNo, result.ApplicationNo)
}

func TestSessionOpsRejectForeignIdentity(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)

	// Knowing the application number is not enough: every operation checks
	// the authenticated name against the attempt.
	_, err := f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma")
	requireCode(t, err, response.ErrIdentityMismatch)

	err = f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma",
		&model.AnswerRequest{QuestionIndex: 0, SelectedOption: "B"})
	requireCode(t, err, response.ErrIdentityMismatch)

	err = f.svc.Navigate(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma", 1)
	requireCode(t, err, response.ErrIdentityMismatch)

	_, err = f.svc.Submit(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma")
	requireCode(t, err, response.ErrIdentityMismatch)

	_, _, err = f.svc.Clock(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma")
	requireCode(t, err, response.ErrIdentityMismatch)

	// Case and whitespace differences are not a mismatch.
	_, err = f.svc.State(context.Background(), f.def.ID, f.app.ApplicationNo, "  amit KUMAR ")
	require.NoError(t, err)

	// The persisted result is bound to the same identity.
	_, err = f.svc.Submit(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar")
	require.NoError(t, err)
	f.queue.flush(f.store)
	_, err = f.svc.Result(context.Background(), f.def.ID, f.app.ApplicationNo, "Priya Sharma")
	requireCode(t, err, response.ErrIdentityMismatch)
}

func TestShutdownSnapshotsLiveSessions(t *testing.T) {
	f := newSessionFixture()
	f.begin(t)
	require.NoError(t, f.svc.Answer(context.Background(), f.def.ID, f.app.ApplicationNo, "Amit Kumar",
		&model.AnswerRequest{QuestionIndex: 2, SelectedOption: "D"}))

	f.svc.Shutdown(context.Background())

	snap := f.snaps.get(f.def.ID, f.app.ApplicationNo)
	require.NotNil(t, snap)
	assert.Equal(t, "D", snap.Answers[2])

	f.svc.mu.Lock()
	assert.Empty(t, f.svc.active)
	f.svc.mu.Unlock()
}
