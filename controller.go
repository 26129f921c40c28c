package tierq

import "time"

// The suspend/resume protocol for the secondary queue. It guarantees that
// the secondary queue never runs work while the primary queue is non-empty,
// that after the primary queue drains secondary work resumes only once any
// outstanding cool-down has elapsed, and that cool-downs never stack: at
// most one resume timer exists at any time.

// Pause suspends the managed (secondary) queue.
//
// d == 0 requests an indefinite pause: it always wins, cancelling any
// pending resume timer, and the queue stays suspended until Resume is
// invoked. d > 0 requests a timed pause that arms the single-slot resume
// timer; while a resume timer is already pending a timed pause is a no-op
// (not re-armed, not extended).
func (s *Scheduler) Pause(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.pauseLocked(d)
}

func (s *Scheduler) pauseLocked(d time.Duration) {
	if d > 0 && s.resumeTimer != nil {
		s.logger.Debug("pause: resume timer already pending, dropping timed pause", "duration", d)
		return
	}
	if s.resumeTimer != nil {
		// Indefinite pause wins over an outstanding cool-down.
		s.logger.Debug("pause: indefinite pause cancels pending resume timer")
		s.resumeTimer.Stop()
		s.resumeTimer = nil
		s.resumeTimerGen++
	}

	s.secondary.Suspend()

	if d > 0 {
		s.resumeTimerGen++
		gen := s.resumeTimerGen
		s.logger.Debug("pause: arming resume timer", "duration", d)
		s.resumeTimer = s.clock.AfterFunc(d, func() { s.onResumeTimer(gen) })
	} else {
		s.logger.Debug("pause: suspended indefinitely")
	}
}

// onResumeTimer runs when the armed cool-down elapses. The generation check
// discards callbacks from timers that were swapped out or cancelled after
// they had already fired.
func (s *Scheduler) onResumeTimer(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || gen != s.resumeTimerGen {
		s.logger.Debug("onResumeTimer: stale timer, ignoring")
		return
	}
	s.logger.Debug("onResumeTimer: cool-down elapsed")
	s.resumeLocked()
}

// Resume cancels any pending resume timer and, unless the primary queue
// still has pending or running work, clears suspension on the secondary
// queue. While urgent work is outstanding the resume is silently refused;
// it happens automatically once the primary queue drains.
func (s *Scheduler) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.resumeLocked()
}

func (s *Scheduler) resumeLocked() {
	if s.resumeTimer != nil {
		s.resumeTimer.Stop()
		s.resumeTimer = nil
		s.resumeTimerGen++
	}
	if s.primary.PendingOrRunning() > 0 {
		s.logger.Debug("resume: refused, primary queue has outstanding work")
		return
	}
	s.secondary.Resume()
}
