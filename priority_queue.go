package tierq

import (
	"log/slog"
	"sync"
	"time"
)

// PriorityQueue is a thread-safe, ordered, named-job container with a
// configurable maximum concurrency and a suspend flag. Jobs execute on
// per-job worker goroutines, at most maxConcurrency at a time. While
// suspended, no new job starts; jobs already executing always run to
// completion. With maxConcurrency 1 the queue is strict FIFO; above 1 there
// is no ordering guarantee among simultaneously eligible jobs.
type PriorityQueue struct {
	name     string
	logger   *slog.Logger
	onChange func() // fired outside the lock whenever pending-or-running changes

	mu                sync.Mutex
	pending           []*Job
	running           map[*Job]bool
	maxConcurrency    int
	concurrencyLocked bool // primary queue: maxConcurrency stays 1 for its lifetime
	suspended         bool
	priority          Priority
}

// NewPriorityQueue creates a queue with the given max concurrency and
// priority class. onChange, if non-nil, is invoked after every
// pending-or-running count change, outside the queue's lock.
func NewPriorityQueue(name string, maxConcurrency int, priority Priority, logger *slog.Logger, onChange func()) *PriorityQueue {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return &PriorityQueue{
		name:           name,
		logger:         logger,
		onChange:       onChange,
		running:        make(map[*Job]bool),
		maxConcurrency: maxConcurrency,
		priority:       priority,
	}
}

// Enqueue appends a job and starts it immediately if the queue has a spare
// concurrency slot and is not suspended. If dedupe is true and a pending job
// with the same name already exists, the submission is a silent no-op and
// Enqueue returns false. Enqueue never blocks the caller.
func (q *PriorityQueue) Enqueue(name string, priority Priority, dedupe bool, work func()) bool {
	q.mu.Lock()
	if dedupe {
		for _, pending := range q.pending {
			if pending.name == name {
				q.mu.Unlock()
				q.logger.Debug("Enqueue: dedupe hit, dropping submission", "queue", q.name, "job", name)
				return false
			}
		}
	}

	job := &Job{
		name:       name,
		priority:   priority,
		work:       work,
		enqueuedAt: time.Now(),
	}
	q.pending = append(q.pending, job)
	q.logger.Debug("Enqueue: job accepted", "queue", q.name, "job", name, "priority", priority, "pending", len(q.pending), "running", len(q.running))
	starts := q.dispatchLocked()
	q.mu.Unlock()

	q.startAll(starts)
	q.fireChange()
	return true
}

// dispatchLocked moves jobs from pending to running while the queue is
// unsuspended and has spare slots. Callers start the returned jobs after
// releasing the lock.
func (q *PriorityQueue) dispatchLocked() []*Job {
	var starts []*Job
	for !q.suspended && len(q.running) < q.maxConcurrency && len(q.pending) > 0 {
		job := q.pending[0]
		q.pending = q.pending[1:]
		q.running[job] = true
		starts = append(starts, job)
	}
	return starts
}

func (q *PriorityQueue) startAll(jobs []*Job) {
	for _, job := range jobs {
		q.logger.Debug("startAll: starting job", "queue", q.name, "job", job.name, "priority", job.priority)
		go q.runWorker(job)
	}
}

// runWorker executes one job, then releases its slot and dispatches more.
func (q *PriorityQueue) runWorker(job *Job) {
	job.work()

	q.mu.Lock()
	delete(q.running, job)
	q.logger.Debug("runWorker: job finished", "queue", q.name, "job", job.name, "pending", len(q.pending), "running", len(q.running))
	starts := q.dispatchLocked()
	q.mu.Unlock()

	q.startAll(starts)
	q.fireChange()
}

func (q *PriorityQueue) fireChange() {
	if q.onChange != nil {
		q.onChange()
	}
}

// Suspend gates the queue: no new job starts until Resume. Jobs already
// executing continue. Suspending a suspended queue is a no-op.
func (q *PriorityQueue) Suspend() {
	q.mu.Lock()
	already := q.suspended
	q.suspended = true
	q.mu.Unlock()
	if !already {
		q.logger.Debug("Suspend: queue suspended", "queue", q.name)
	}
}

// Resume clears the suspend flag and starts eligible pending jobs.
func (q *PriorityQueue) Resume() {
	q.mu.Lock()
	already := !q.suspended
	q.suspended = false
	starts := q.dispatchLocked()
	q.mu.Unlock()

	if !already {
		q.logger.Debug("Resume: queue resumed", "queue", q.name, "started", len(starts))
	}
	q.startAll(starts)
}

// Suspended reports whether the queue is currently suspended.
func (q *PriorityQueue) Suspended() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.suspended
}

// SetMaxConcurrency adjusts the concurrency limit and starts eligible
// pending jobs if the limit grew. On a concurrency-locked queue the call is
// a no-op: the primary queue's limit stays 1 at all times. Shrinking never
// interrupts jobs already executing; the lower limit applies to new starts.
func (q *PriorityQueue) SetMaxConcurrency(n int) {
	if n < 1 {
		n = 1
	}
	q.mu.Lock()
	if q.concurrencyLocked {
		q.mu.Unlock()
		q.logger.Debug("SetMaxConcurrency: refused on concurrency-locked queue", "queue", q.name, "requested", n)
		return
	}
	old := q.maxConcurrency
	q.maxConcurrency = n
	starts := q.dispatchLocked()
	q.mu.Unlock()

	q.logger.Debug("SetMaxConcurrency", "queue", q.name, "old", old, "new", n, "started", len(starts))
	q.startAll(starts)
}

// MaxConcurrency returns the current concurrency limit.
func (q *PriorityQueue) MaxConcurrency() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxConcurrency
}

// Demote lowers the queue's priority class and the class of every pending
// and running job sitting above p down to p.
func (q *PriorityQueue) Demote(p Priority) {
	q.mu.Lock()
	q.priority = p
	demoted := 0
	for _, job := range q.pending {
		if job.priority > p {
			job.priority = p
			demoted++
		}
	}
	for job := range q.running {
		if job.priority > p {
			job.priority = p
			demoted++
		}
	}
	q.mu.Unlock()
	q.logger.Debug("Demote", "queue", q.name, "to", p, "jobsDemoted", demoted)
}

// Promote raises the queue's priority class to `to` and the class of every
// pending and running job sitting at `from` up to `to`.
func (q *PriorityQueue) Promote(from, to Priority) {
	q.mu.Lock()
	q.priority = to
	promoted := 0
	for _, job := range q.pending {
		if job.priority == from {
			job.priority = to
			promoted++
		}
	}
	for job := range q.running {
		if job.priority == from {
			job.priority = to
			promoted++
		}
	}
	q.mu.Unlock()
	q.logger.Debug("Promote", "queue", q.name, "from", from, "to", to, "jobsPromoted", promoted)
}

// Priority returns the queue's current priority class.
func (q *PriorityQueue) Priority() Priority {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.priority
}

// PendingOrRunning returns the number of jobs that are pending or currently
// executing.
func (q *PriorityQueue) PendingOrRunning() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.running)
}

// Snapshot returns a point-in-time view of the queue. Running jobs precede
// pending ones in Jobs; among running jobs the order is unspecified.
func (q *PriorityQueue) Snapshot() QueueSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()

	snap := QueueSnapshot{
		Name:           q.name,
		Priority:       q.priority,
		MaxConcurrency: q.maxConcurrency,
		Suspended:      q.suspended,
		Pending:        len(q.pending),
		Running:        len(q.running),
		Jobs:           make([]JobSnapshot, 0, len(q.pending)+len(q.running)),
	}
	for job := range q.running {
		snap.Jobs = append(snap.Jobs, JobSnapshot{Name: job.name, Priority: job.priority, Running: true})
	}
	for _, job := range q.pending {
		snap.Jobs = append(snap.Jobs, JobSnapshot{Name: job.name, Priority: job.priority})
	}
	return snap
}
