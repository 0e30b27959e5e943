package archive

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

// DefaultDelay keeps the check out of the way of initial page load.
const DefaultDelay = 5 * time.Second

// Runner is the archival check the scheduler fires.
type Runner interface {
	CheckAndArchive(ctx context.Context) error
}

// Scheduler arms a one-shot deferred archive check. Cancelling before the
// timer fires is the only supported cancellation point; a run that has
// started always completes. Background failures are logged and never
// propagate.
type Scheduler struct {
	runner Runner
	delay  time.Duration
	logger *log.Logger

	mu    sync.Mutex
	timer *time.Timer
}

// NewScheduler creates a disarmed scheduler.
func NewScheduler(runner Runner, delay time.Duration, logger *log.Logger) *Scheduler {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Scheduler{runner: runner, delay: delay, logger: logger}
}

// Arm starts (or restarts) the delay timer.
func (s *Scheduler) Arm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.delay, s.Tick)
}

// Cancel stops a pending timer. Harmless when nothing is armed.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Tick runs the check immediately. Exposed so tests can drive the
// scheduler without waiting on real timers.
func (s *Scheduler) Tick() {
	if err := s.runner.CheckAndArchive(context.Background()); err != nil {
		s.logger.WithError(err).Error("auto-archive failed")
	}
}
