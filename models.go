// Package tierq provides an adaptive two-tier job scheduler for on-device
// location/activity-tracking workloads running under strict
// foreground/background execution budgets.
//
// The scheduler owns two work queues:
//   - A primary queue for latency-sensitive processing. It is strictly
//     serial (max concurrency 1, FIFO) and its non-empty state forces
//     suspension of the secondary queue.
//   - A secondary queue for deferrable processing such as retraining
//     classification models. Its concurrency adapts to the host lifecycle:
//     1 while backgrounded, a small platform default while foregrounded.
//
// The library supports:
//   - Dedupe-on-submission for deferrable jobs
//   - Suspend/resume with a single-slot debounced resume timer
//   - Foreground/background lifecycle adjustments of priority and concurrency
//   - Deadline-bounded execution opportunities for one unit of deferred work
//   - A payload-free "queue state changed" publish/subscribe channel
//   - Pluggable needs-update flag stores (in-memory, BadgerDB, SQLite) for
//     the model-update producer
//
// Example usage:
//
//	sched := tierq.NewScheduler(tierq.LoadConfig(), logger)
//	defer sched.Close()
//
//	sched.AddPrimaryJob("classify-visit", func() {
//	    // latency-sensitive work
//	})
//	sched.AddSecondaryJob("retrain/berlin/2", true, func() {
//	    // deferrable work, deduped by name
//	})
package tierq

import (
	"time"
)

// Priority is the abstract scheduling-priority class attached to a queue or
// job. It is adjusted as the host application moves between foreground and
// background. Go offers no portable thread-priority primitive, so the class
// is carried as a hint: it is surfaced in logs and snapshots, and hosts that
// map work onto platform executors can translate it via String().
type Priority int

const (
	// PriorityBackground is the lowest class, applied to everything while
	// the host application is backgrounded.
	PriorityBackground Priority = iota
	// PriorityUtility is the class for deferrable work submitted while
	// foregrounded.
	PriorityUtility
	// PriorityUserInitiated is the highest class, for latency-sensitive
	// work submitted while foregrounded.
	PriorityUserInitiated
)

// String returns the class label used in logs and snapshots.
func (p Priority) String() string {
	switch p {
	case PriorityBackground:
		return "background"
	case PriorityUtility:
		return "utility"
	case PriorityUserInitiated:
		return "userInitiated"
	default:
		return "unknown"
	}
}

// Job is a named unit of work held by a PriorityQueue. Names are not
// globally unique; uniqueness is only enforced within a queue when dedupe is
// requested at submission time.
type Job struct {
	name       string
	priority   Priority // guarded by the owning queue's mutex
	work       func()
	enqueuedAt time.Time
}

// JobSnapshot is a point-in-time view of a single pending or running job.
type JobSnapshot struct {
	Name     string
	Priority Priority
	Running  bool
}

// QueueSnapshot is a point-in-time view of a queue. Observers reacting to
// the scheduler's change events use snapshots to recheck state.
type QueueSnapshot struct {
	Name           string
	Priority       Priority
	MaxConcurrency int
	Suspended      bool
	Pending        int
	Running        int
	Jobs           []JobSnapshot
}

// SchedulerSnapshot is a point-in-time view of both queues and the
// lifecycle state.
type SchedulerSnapshot struct {
	Foreground bool
	Primary    QueueSnapshot
	Secondary  QueueSnapshot
}
