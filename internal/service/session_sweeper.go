package service

import (
	"context"
	"time"

	"circles/internal/observability"
	"circles/internal/repository"
)

const (
	defaultSweepBatch = 1000
	sweepOperation    = "session_sweep"
)

// SessionSweeper deletes expired sessions in bounded batches. Authentication
// re-checks expiry itself, so sweeps may lag without affecting correctness.
type SessionSweeper struct {
	sessions  repository.SessionRepository
	batchSize int
	now       func() time.Time
}

// NewSessionSweeper returns a sweeper deleting at most batchSize rows per statement.
func NewSessionSweeper(sessions repository.SessionRepository, batchSize int) *SessionSweeper {
	if batchSize <= 0 {
		batchSize = defaultSweepBatch
	}
	return &SessionSweeper{sessions: sessions, batchSize: batchSize, now: time.Now}
}

// WithClock overrides the time source. Used by tests.
func (s *SessionSweeper) WithClock(now func() time.Time) *SessionSweeper {
	s.now = now
	return s
}

// SweepOnce deletes batches until a short batch shows nothing is left.
func (s *SessionSweeper) SweepOnce(ctx context.Context) (int64, error) {
	ctx = observability.WithCorrelationID(ctx, observability.GenerateCorrelationID())
	cutoff := s.now()
	observability.LogAsyncOperationStart(ctx, sweepOperation, map[string]interface{}{"cutoff": cutoff})

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		n, err := s.sessions.DeleteExpiredBatch(ctx, cutoff, s.batchSize)
		if err != nil {
			observability.LogAsyncOperationError(ctx, sweepOperation, err, map[string]interface{}{"deleted": total})
			return total, err
		}
		total += n
		observability.SessionsSwept.Add(float64(n))
		if n < int64(s.batchSize) {
			break
		}
	}

	observability.LogAsyncOperationEnd(ctx, sweepOperation, map[string]interface{}{"deleted": total})
	return total, nil
}

// Run sweeps immediately and then every interval until ctx is cancelled.
func (s *SessionSweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	_, _ = s.SweepOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = s.SweepOnce(ctx)
		}
	}
}
