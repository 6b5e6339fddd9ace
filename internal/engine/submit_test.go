package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshotStore struct {
	mu     sync.Mutex
	snaps  map[string]*Snapshot
	clears int
}

func newFakeSnapshotStore() *fakeSnapshotStore {
	return &fakeSnapshotStore{snaps: make(map[string]*Snapshot)}
}

func (f *fakeSnapshotStore) key(testID uuid.UUID, applicationNo string) string {
	return applicationNo + ":" + testID.String()
}

func (f *fakeSnapshotStore) Save(_ context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snaps[f.key(snap.TestID, snap.ApplicationNo)] = snap
	return nil
}

func (f *fakeSnapshotStore) Load(_ context.Context, testID uuid.UUID, applicationNo string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snaps[f.key(testID, applicationNo)], nil
}

func (f *fakeSnapshotStore) Clear(_ context.Context, testID uuid.UUID, applicationNo string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.snaps, f.key(testID, applicationNo))
	f.clears++
	return nil
}

type fakeResultSink struct {
	mu      sync.Mutex
	results []*model.ScoreResult
}

func (f *fakeResultSink) SaveResult(_ context.Context, result *model.ScoreResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, result)
	return nil
}

func (f *fakeResultSink) saved() []*model.ScoreResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ScoreResult(nil), f.results...)
}

func submitFixture(t *testing.T) (*Submitter, *TestSession, *model.TestDefinition, *fakeSnapshotStore, *fakeResultSink) {
	t.Helper()
	questions, layout := questionSet(map[string]int{"Math": 4})
	def := &model.TestDefinition{
		ID:            uuid.New(),
		Title:         "Entrance",
		SubjectLayout: layout,
	}

	sess := NewSession(def.ID, "SCH-2026-0001", "Amit Kumar", questions, 600, time.Now())
	sess.Begin()
	require.NoError(t, sess.SetAnswer(0, "A"))
	require.NoError(t, sess.SetAnswer(1, "A"))

	snaps := newFakeSnapshotStore()
	require.NoError(t, snaps.Save(context.Background(), sess.Snapshot()))
	sink := &fakeResultSink{}
	sub := NewSubmitter(snaps, sink, 40, zerolog.Nop())
	return sub, sess, def, snaps, sink
}

func TestSubmitScoresAndClears(t *testing.T) {
	sub, sess, def, snaps, sink := submitFixture(t)

	result, err := sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)

	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, model.ResultPass, result.Status)
	assert.Equal(t, StatusSubmitted, sess.Status())

	assert.Len(t, sink.saved(), 1)
	assert.Equal(t, 1, snaps.clears)
	loaded, _ := snaps.Load(context.Background(), sess.TestID, sess.ApplicationNo)
	assert.Nil(t, loaded)
}

func TestSubmitIdempotent(t *testing.T) {
	sub, sess, def, snaps, sink := submitFixture(t)

	first, err := sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)
	second, err := sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Len(t, sink.saved(), 1)
	assert.Equal(t, 1, snaps.clears)
}

func TestSubmitTimeoutManualRace(t *testing.T) {
	sub, sess, def, _, sink := submitFixture(t)
	timer := NewTimer(5)
	timer.Start(600, sess.ApplyTick, nil, func() {})

	var wg sync.WaitGroup
	results := make([]*model.ScoreResult, 2)
	triggers := []Trigger{TriggerManual, TriggerTimeout}
	for i := range triggers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := sub.Submit(context.Background(), sess, def, timer, triggers[i])
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	// One scoring pass, one persisted record, both callers see the same result.
	assert.Same(t, results[0], results[1])
	assert.Len(t, sink.saved(), 1)
}

func TestSubmitUsesDefinitionThreshold(t *testing.T) {
	sub, sess, def, _, _ := submitFixture(t)
	override := 60.0
	def.PassThreshold = &override

	result, err := sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)

	// 2/4 correct is 50%, below the per-test override of 60.
	assert.Equal(t, 50.0, result.Percentage)
	assert.Equal(t, model.ResultFail, result.Status)
}

func TestSubmitPersistErrorRetriesWrite(t *testing.T) {
	questions, layout := questionSet(map[string]int{"Math": 2})
	def := &model.TestDefinition{ID: uuid.New(), SubjectLayout: layout}
	sess := NewSession(def.ID, "SCH-2026-0002", "Priya Sharma", questions, 300, time.Now())
	sess.Begin()

	snaps := newFakeSnapshotStore()
	require.NoError(t, snaps.Save(context.Background(), sess.Snapshot()))
	sink := &flakySink{failures: 1}
	sub := NewSubmitter(snaps, sink, 40, zerolog.Nop())

	result, err := sub.Submit(context.Background(), sess, def, nil, TriggerTimeout)
	assert.Error(t, err)
	require.NotNil(t, result)
	assert.Equal(t, StatusSubmitted, sess.Status())

	// The result is not durable yet; the snapshot must survive the failure.
	assert.Equal(t, 0, snaps.clears)
	loaded, _ := snaps.Load(context.Background(), sess.TestID, sess.ApplicationNo)
	assert.NotNil(t, loaded)

	// The next call re-drives the write without rescoring, then clears.
	again, err := sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)
	assert.Same(t, result, again)
	assert.Len(t, sink.saved(), 1)
	assert.Equal(t, 1, snaps.clears)

	// Once durable, later calls are pure reads.
	_, err = sub.Submit(context.Background(), sess, def, nil, TriggerManual)
	require.NoError(t, err)
	assert.Len(t, sink.saved(), 1)
}

// flakySink rejects the first failures writes, then accepts.
type flakySink struct {
	mu       sync.Mutex
	failures int
	results  []*model.ScoreResult
}

func (f *flakySink) SaveResult(_ context.Context, result *model.ScoreResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return assert.AnError
	}
	f.results = append(f.results, result)
	return nil
}

func (f *flakySink) saved() []*model.ScoreResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.ScoreResult(nil), f.results...)
}
