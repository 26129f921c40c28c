package tierq

// Lifecycle injection points. The hosting application calls OnForeground
// and OnBackground from whatever platform lifecycle mechanism it has; the
// scheduler itself subscribes to nothing. Each transition runs to
// completion under the scheduler's lock, so a job submitted during a
// transition is never scheduled under a half-updated configuration. Both
// transitions are idempotent.

// OnBackground moves the scheduler to backgrounded state: the secondary
// queue's max concurrency drops to 1 and the secondary queue plus every one
// of its pending and running jobs above background priority is demoted to
// background. The primary queue's own class is left untouched; its jobs
// follow the foreground/background rule at submission time.
func (s *Scheduler) OnBackground() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || !s.foreground {
		return
	}
	s.foreground = false
	s.logger.Debug("OnBackground: entering background")

	s.secondary.SetMaxConcurrency(1)
	s.secondary.Demote(PriorityBackground)
}

// OnForeground moves the scheduler to foregrounded state: the secondary
// queue's max concurrency is restored to the configured default, jobs
// sitting at background priority are promoted to userInitiated, and a
// resume is attempted to reverse any backgrounding-induced suspension
// (refused while the primary queue is busy).
func (s *Scheduler) OnForeground() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.foreground {
		return
	}
	s.foreground = true
	s.logger.Debug("OnForeground: entering foreground", "concurrency", s.cfg.ForegroundConcurrency)

	s.secondary.SetMaxConcurrency(s.cfg.ForegroundConcurrency)
	s.secondary.Promote(PriorityBackground, PriorityUserInitiated)
	s.resumeLocked()
}
