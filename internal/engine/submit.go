package engine

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/scholarpath/testportal-backend/internal/model"
)

// Trigger identifies what caused a submission.
type Trigger string

const (
	TriggerManual  Trigger = "MANUAL"
	TriggerTimeout Trigger = "TIMEOUT"
)

// SnapshotStore persists resumable session snapshots, keyed by test and
// application. Load returns (nil, nil) when no snapshot exists.
type SnapshotStore interface {
	Save(ctx context.Context, snap *Snapshot) error
	Load(ctx context.Context, testID uuid.UUID, applicationNo string) (*Snapshot, error)
	Clear(ctx context.Context, testID uuid.UUID, applicationNo string) error
}

// ResultSink receives the final score record of a submitted session.
type ResultSink interface {
	SaveResult(ctx context.Context, result *model.ScoreResult) error
}

// Submitter finalizes sessions. Submit is idempotent: the first call scores
// and persists; every later call, including the loser of a timeout-vs-manual
// race, receives the already-computed result.
type Submitter struct {
	snapshots        SnapshotStore
	results          ResultSink
	defaultThreshold float64
	log              zerolog.Logger
}

// NewSubmitter creates a Submitter. defaultThreshold is the portal-wide pass
// mark, used when a definition carries no override.
func NewSubmitter(snapshots SnapshotStore, results ResultSink, defaultThreshold float64, log zerolog.Logger) *Submitter {
	return &Submitter{
		snapshots:        snapshots,
		results:          results,
		defaultThreshold: defaultThreshold,
		log:              log.With().Str("component", "submitter").Logger(),
	}
}

// Submit finalizes a session. On first call it stops the timer, computes
// time taken from the frozen countdown, scores, hands the result to the
// sink, and clears the snapshot. timer may be nil for sessions without a
// running countdown (already expired at resume).
func (s *Submitter) Submit(ctx context.Context, sess *TestSession, def *model.TestDefinition, timer *Timer, trigger Trigger) (*model.ScoreResult, error) {
	first := false

	result := sess.finalize(func() *model.ScoreResult {
		first = true
		if timer != nil {
			timer.Stop()
		}

		threshold := s.defaultThreshold
		if def.PassThreshold != nil {
			threshold = *def.PassThreshold
		}

		timeTaken := sess.DurationSeconds() - sess.RemainingSeconds()
		if timeTaken < 0 {
			timeTaken = 0
		}

		return Score(sess, def, threshold, timeTaken)
	})

	if !first && !sess.needsPersist() {
		return result, nil
	}

	if first {
		s.log.Info().
			Str("test_id", sess.TestID.String()).
			Str("application_no", sess.ApplicationNo).
			Str("trigger", string(trigger)).
			Float64("percentage", result.Percentage).
			Str("status", string(result.Status)).
			Msg("Session submitted")
	}

	if err := s.results.SaveResult(ctx, result); err != nil {
		// The session is terminal but the result is not durable yet; mark it
		// so the next Submit call retries this write without rescoring. The
		// snapshot is kept until the write lands.
		sess.setPersistPending(true)
		s.log.Error().Err(err).Msg("Persist result failed")
		return result, err
	}
	sess.setPersistPending(false)

	if err := s.snapshots.Clear(ctx, sess.TestID, sess.ApplicationNo); err != nil {
		s.log.Warn().Err(err).Msg("Clear snapshot failed")
	}

	return result, nil
}
