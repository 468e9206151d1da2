package jobs

import (
	"time"

	"go.uber.org/zap"
)

// SessionSweepJobName is the name of the idle table session sweep
const SessionSweepJobName = "session_sweep"

// SessionSweeper closes idle table sessions
type SessionSweeper interface {
	Sweep() int
	Len() int
}

// SessionSweepJob closes table sessions that have been idle too long
type SessionSweepJob struct {
	sessions SessionSweeper
	logger   *zap.Logger
}

// NewSessionSweepJob creates a new sweep job
func NewSessionSweepJob(sessions SessionSweeper, logger *zap.Logger) *SessionSweepJob {
	return &SessionSweepJob{sessions: sessions, logger: logger}
}

// Run sweeps once
func (j *SessionSweepJob) Run() {
	start := time.Now()
	closed := j.sessions.Sweep()
	if closed == 0 {
		return
	}
	j.logger.Info("closed idle table sessions",
		zap.Int("closed", closed),
		zap.Int("remaining", j.sessions.Len()),
		zap.Duration("duration", time.Since(start)))
}

// RegisterSessionSweepJob registers the sweep with the scheduler
func RegisterSessionSweepJob(scheduler *Scheduler, sessions SessionSweeper, logger *zap.Logger, cronExpr string) error {
	job := NewSessionSweepJob(sessions, logger)
	return scheduler.AddJob(SessionSweepJobName, cronExpr, job.Run)
}
