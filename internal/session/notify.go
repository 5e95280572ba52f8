package session

import "sync"

// notifier delivers snapshots to a listener in order on its own goroutine,
// so a listener may call back into the Orchestrator.
type notifier struct {
	fn func(Snapshot)

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Snapshot
	closed bool
	done   chan struct{}
}

func newNotifier(fn func(Snapshot)) *notifier {
	n := &notifier{fn: fn, done: make(chan struct{})}
	n.cond = sync.NewCond(&n.mu)
	go n.loop()
	return n
}

// send queues s for delivery. It never blocks on the listener.
func (n *notifier) send(s Snapshot) {
	if n == nil {
		return
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	n.queue = append(n.queue, s)
	n.cond.Signal()
}

func (n *notifier) loop() {
	defer close(n.done)
	for {
		n.mu.Lock()
		for len(n.queue) == 0 && !n.closed {
			n.cond.Wait()
		}
		if len(n.queue) == 0 {
			n.mu.Unlock()
			return
		}
		batch := n.queue
		n.queue = nil
		n.mu.Unlock()

		for _, s := range batch {
			n.fn(s)
		}
	}
}

// close stops accepting snapshots. Queued ones are still delivered.
func (n *notifier) close() {
	if n == nil {
		return
	}
	n.mu.Lock()
	n.closed = true
	n.cond.Broadcast()
	n.mu.Unlock()
}
