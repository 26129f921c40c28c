package tierq

import (
	"log/slog"
	"sync"
)

// Notifier is a lightweight broadcast channel for "queue state changed"
// events. Events carry no payload beyond the fact that a recheck is
// warranted; delivery is non-blocking and coalesced per subscriber, so a
// slow observer sees at least one signal for any burst of changes.
type Notifier struct {
	logger *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]chan struct{}
	nextID uint64
	closed bool
}

// NewNotifier creates an empty notifier.
func NewNotifier(logger *slog.Logger) *Notifier {
	return &Notifier{
		logger: logger,
		subs:   make(map[uint64]chan struct{}),
	}
}

// Subscribe registers an observer. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (n *Notifier) Subscribe() (<-chan struct{}, func()) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ch := make(chan struct{}, 1) // buffered for non-blocking publish
	if n.closed {
		close(ch)
		return ch, func() {}
	}

	id := n.nextID
	n.nextID++
	n.subs[id] = ch
	n.logger.Debug("Subscribe: observer registered", "subID", id, "totalSubscribers", len(n.subs))

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			n.mu.Lock()
			defer n.mu.Unlock()
			if _, ok := n.subs[id]; ok {
				delete(n.subs, id)
				close(ch)
				n.logger.Debug("Subscribe: observer unregistered", "subID", id, "totalSubscribers", len(n.subs))
			}
		})
	}
	return ch, unsubscribe
}

// Publish signals every subscriber (at-most-once per pending recheck).
func (n *Notifier) Publish() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	for id, ch := range n.subs {
		select {
		case ch <- struct{}{}:
		default:
			// Signal already pending for this subscriber.
			n.logger.Debug("Publish: signal already pending", "subID", id)
		}
	}
}

// Close unregisters and closes every subscriber channel. Later Publish
// calls are no-ops and later Subscribe calls return a closed channel.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.closed = true
	for id, ch := range n.subs {
		delete(n.subs, id)
		close(ch)
	}
}
