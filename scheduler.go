package tierq

import (
	"log/slog"
	"sync"
)

// Queue names used in logs and snapshots.
const (
	primaryQueueName   = "primary"
	secondaryQueueName = "secondary"
)

// Scheduler coordinates the two work queues. It accepts job submissions,
// applies dedupe policy, wraps execution with instrumentation, drives the
// suspend/resume protocol for the secondary queue, and publishes change
// events whenever either queue's pending-or-running count changes.
//
// A Scheduler is constructed explicitly by the application's composition
// root and shared by reference; there is no package-level instance.
type Scheduler struct {
	cfg       *Config
	logger    *slog.Logger
	clock     Clock
	primary   *PriorityQueue
	secondary *PriorityQueue
	notifier  *Notifier

	mu              sync.Mutex
	foreground      bool
	resumeTimer     Timer
	resumeTimerGen  uint64
	deferredExpired bool
	closed          bool
}

// NewScheduler creates a scheduler with the given configuration. The
// scheduler starts foregrounded; hosts launching directly into background
// call OnBackground first. cfg may be nil, meaning LoadConfig defaults.
func NewScheduler(cfg *Config, logger *slog.Logger) *Scheduler {
	if cfg == nil {
		cfg = LoadConfig()
	}
	if cfg.ForegroundConcurrency < 1 {
		cfg.ForegroundConcurrency = DefaultForegroundConcurrency
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	clock := cfg.Clock
	if clock == nil {
		clock = systemClock{}
	}

	s := &Scheduler{
		cfg:        cfg,
		logger:     logger,
		clock:      clock,
		notifier:   NewNotifier(logger),
		foreground: true,
	}
	s.primary = NewPriorityQueue(primaryQueueName, 1, PriorityUserInitiated, logger, s.onPrimaryChange)
	s.primary.concurrencyLocked = true
	s.secondary = NewPriorityQueue(secondaryQueueName, cfg.ForegroundConcurrency, PriorityUtility, logger, s.onSecondaryChange)

	logger.Debug("NewScheduler", "cooldown", cfg.Cooldown, "foregroundConcurrency", cfg.ForegroundConcurrency)
	return s
}

// AddPrimaryJob enqueues latency-sensitive work on the strictly serial
// primary queue, at userInitiated priority while foregrounded, background
// otherwise. The secondary queue is suspended indefinitely for as long as
// the primary queue has pending or running work. Submission is asynchronous
// and never blocks the caller.
func (s *Scheduler) AddPrimaryJob(name string, work func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("AddPrimaryJob: scheduler closed, dropping job", "job", name)
		return
	}
	priority := PriorityBackground
	if s.foreground {
		priority = PriorityUserInitiated
	}
	s.mu.Unlock()

	s.logger.Debug("AddPrimaryJob", "job", name, "priority", priority)
	// The count-change callback suspends the secondary queue before
	// Enqueue returns.
	s.primary.Enqueue(name, priority, false, s.instrument(primaryQueueName, name, work))
}

// AddSecondaryJob enqueues deferrable work on the secondary queue, at
// utility priority while foregrounded, background otherwise. If dedupe is
// true and a pending job with the same name already exists, the submission
// is a silent no-op. Submission is asynchronous and never blocks the caller.
func (s *Scheduler) AddSecondaryJob(name string, dedupe bool, work func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("AddSecondaryJob: scheduler closed, dropping job", "job", name)
		return
	}
	priority := PriorityBackground
	if s.foreground {
		priority = PriorityUtility
	}
	s.mu.Unlock()

	s.logger.Debug("AddSecondaryJob", "job", name, "dedupe", dedupe, "priority", priority)
	s.secondary.Enqueue(name, priority, dedupe, s.instrument(secondaryQueueName, name, work))
}

// instrument wraps a job body with start/duration recording and the
// post-run background cool-down. Durations are diagnostics only. Faults in
// the body are not caught; failure handling is the job's own concern.
func (s *Scheduler) instrument(queueName, jobName string, work func()) func() {
	return func() {
		start := s.clock.Now()
		s.logger.Debug("runJob: starting", "queue", queueName, "job", jobName)

		work()

		duration := s.clock.Now().Sub(start)
		s.logger.Debug("runJob: finished", "queue", queueName, "job", jobName, "duration", duration)

		// Backgrounded completion throttles the next start regardless of
		// what is already queued.
		s.mu.Lock()
		if !s.foreground && !s.closed {
			s.pauseLocked(s.cfg.Cooldown)
		}
		s.mu.Unlock()
	}
}

// onPrimaryChange runs after every primary-queue count change. A non-empty
// primary queue keeps the secondary queue suspended indefinitely; draining
// to zero auto-resumes unless a cool-down timer is pending.
func (s *Scheduler) onPrimaryChange() {
	s.notifier.Publish()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if s.primary.PendingOrRunning() > 0 {
		s.pauseLocked(0)
		return
	}
	if s.resumeTimer == nil {
		s.logger.Debug("onPrimaryChange: primary drained, auto-resuming")
		s.resumeLocked()
	}
}

func (s *Scheduler) onSecondaryChange() {
	s.notifier.Publish()
}

// Subscribe registers an observer for queue state changes. The returned
// channel receives a payload-free signal, coalesced while the observer is
// busy, whenever either queue's pending-or-running count changes. The
// returned func unsubscribes and closes the channel.
func (s *Scheduler) Subscribe() (<-chan struct{}, func()) {
	return s.notifier.Subscribe()
}

// Stats returns a point-in-time view of both queues and the lifecycle
// state.
func (s *Scheduler) Stats() SchedulerSnapshot {
	s.mu.Lock()
	foreground := s.foreground
	s.mu.Unlock()

	return SchedulerSnapshot{
		Foreground: foreground,
		Primary:    s.primary.Snapshot(),
		Secondary:  s.secondary.Snapshot(),
	}
}

// Close stops the resume timer and drops all later submissions. Jobs
// already executing run to completion; Close does not wait for them.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
	}
	s.mu.Unlock()

	s.notifier.Close()
	s.logger.Debug("Close: scheduler closed")
	return nil
}
