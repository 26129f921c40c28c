package tierq

import (
	"sync"
	"time"
)

// Opportunity is a deadline-bounded execution slot granted by the host
// platform, in which exactly one unit of deferrable work may run. The host
// constructs it, hands it to RunDeferredUnit, and calls Expire when the
// deadline is reached. The scheduler registers the expiration handler
// exactly once per opportunity.
type Opportunity struct {
	deadline time.Time

	mu      sync.Mutex
	handler func()
	expired bool
}

// NewOpportunity creates an opportunity expiring at the given deadline.
func NewOpportunity(deadline time.Time) *Opportunity {
	return &Opportunity{deadline: deadline}
}

// Deadline returns the instant after which the host will expire the
// opportunity.
func (o *Opportunity) Deadline() time.Time {
	return o.deadline
}

// Expire signals that the deadline has been reached. The registered
// expiration handler runs at most once; the scheduler honors expiry by
// refusing to start the next unit of work, never by aborting the current
// one. Expire is idempotent.
func (o *Opportunity) Expire() {
	o.mu.Lock()
	if o.expired {
		o.mu.Unlock()
		return
	}
	o.expired = true
	handler := o.handler
	o.mu.Unlock()

	if handler != nil {
		handler()
	}
}

// setExpirationHandler registers the expiration handler. If the opportunity
// already expired, the handler runs immediately.
func (o *Opportunity) setExpirationHandler(f func()) {
	o.mu.Lock()
	o.handler = f
	expired := o.expired
	o.mu.Unlock()

	if expired {
		f()
	}
}

// DeferredUnit runs one unit of deferrable work synchronously and reports
// its success.
type DeferredUnit func() bool

// UnitProducer is the contract the external model-update logic implements.
// The producer owns the selection policy; the scheduler only cares whether
// a unit was selected.
type UnitProducer interface {
	// NextUnit selects at most one unit of deferrable work. The second
	// return is false when no work is currently needed.
	NextUnit() (DeferredUnit, bool)
}

// RunDeferredUnit runs at most one unit of deferrable work within the given
// opportunity and invokes report exactly once with the outcome:
//
//   - If a previous opportunity's deadline expired, report(false) is
//     invoked immediately, no work starts, and the expiry flag is cleared
//     so the next invocation proceeds normally.
//   - If the producer selects no unit, report(true) is invoked with nothing
//     executed.
//   - Otherwise the unit runs on its own worker goroutine and report
//     receives its success, forced to false when the deadline expires
//     mid-run. An expiry mid-run leaves the flag set for the next
//     invocation's fast path.
//
// The unit does not go through the secondary queue: a background
// opportunity's budget must not be spent waiting on the suspend gate or an
// outstanding cool-down.
func (s *Scheduler) RunDeferredUnit(op *Opportunity, producer UnitProducer, report func(ok bool)) {
	if report == nil {
		report = func(bool) {}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		report(false)
		return
	}
	if s.deferredExpired {
		s.deferredExpired = false
		s.mu.Unlock()
		s.logger.Debug("RunDeferredUnit: previous opportunity expired, failing fast")
		report(false)
		return
	}
	s.mu.Unlock()

	op.setExpirationHandler(func() {
		s.logger.Debug("RunDeferredUnit: opportunity expired")
		s.mu.Lock()
		s.deferredExpired = true
		s.mu.Unlock()
	})

	unit, ok := producer.NextUnit()
	if !ok {
		s.logger.Debug("RunDeferredUnit: producer selected no unit")
		report(true)
		return
	}

	go func() {
		start := s.clock.Now()
		s.logger.Debug("RunDeferredUnit: unit starting", "deadline", op.Deadline())

		success := unit()

		duration := s.clock.Now().Sub(start)
		s.mu.Lock()
		expired := s.deferredExpired
		if !s.foreground && !s.closed {
			s.pauseLocked(s.cfg.Cooldown)
		}
		s.mu.Unlock()

		s.logger.Debug("RunDeferredUnit: unit finished", "success", success, "expired", expired, "duration", duration)
		report(success && !expired)
	}()
}
