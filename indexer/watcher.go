package indexer

import (
	"context"
	"log"
	"sync"
	"time"

	"openwork-backend/core/conversation"
)

// Update is one consistent poll result: the snapshot and full event log at
// a given version.
type Update struct {
	Job     *conversation.Job
	Events  []conversation.JobEvent
	Version uint64
}

// PollObserver is notified after every poll attempt, for metrics.
type PollObserver interface {
	PollDone(d time.Duration, err error)
}

// Watcher polls the indexer for one job and maintains a monotonically
// versioned, copy-on-write view of its event log. Snapshots handed out are
// never mutated afterwards, so a consumer mid-recompute always reads one
// consistent log.
type Watcher struct {
	client   *Client
	jobID    string
	interval time.Duration
	observer PollObserver

	mu      sync.RWMutex
	job     *conversation.Job
	events  []conversation.JobEvent
	version uint64

	listenersMu sync.Mutex
	listeners   []chan Update
}

// NewWatcher builds a watcher for jobID polling at the given interval.
func NewWatcher(client *Client, jobID string, interval time.Duration) *Watcher {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Watcher{client: client, jobID: jobID, interval: interval}
}

// SetObserver attaches a poll metrics observer. Call before Run.
func (w *Watcher) SetObserver(o PollObserver) {
	w.observer = o
}

// Run polls until the context is cancelled. Poll errors are logged and
// retried on the next tick.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	if err := w.poll(ctx); err != nil {
		log.Printf("indexer poll for job %s: %v", w.jobID, err)
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.poll(ctx); err != nil {
				log.Printf("indexer poll for job %s: %v", w.jobID, err)
			}
		}
	}
}

func (w *Watcher) poll(ctx context.Context) error {
	start := time.Now()
	err := w.pollOnce(ctx)
	if w.observer != nil {
		w.observer.PollDone(time.Since(start), err)
	}
	return err
}

func (w *Watcher) pollOnce(ctx context.Context) error {
	job, err := w.client.GetJob(ctx, w.jobID)
	if err != nil {
		return err
	}

	w.mu.RLock()
	nextSeq := uint64(0)
	if n := len(w.events); n > 0 {
		nextSeq = w.events[n-1].SequenceIndex + 1
	}
	w.mu.RUnlock()

	fresh, err := w.client.GetEvents(ctx, w.jobID, nextSeq)
	if err != nil {
		return err
	}

	w.mu.Lock()
	changed := jobChanged(w.job, job)
	w.job = job
	if len(fresh) > 0 {
		// Copy-on-write: earlier snapshots stay immutable.
		merged := make([]conversation.JobEvent, 0, len(w.events)+len(fresh))
		merged = append(merged, w.events...)
		merged = append(merged, fresh...)
		w.events = merged
		changed = true
	}
	if changed {
		w.version++
	}
	update := Update{Job: w.job, Events: w.events, Version: w.version}
	w.mu.Unlock()

	if changed {
		w.broadcast(update)
	}
	return nil
}

// jobChanged reports whether the fields the engine reacts to differ between
// two snapshots. The whitelist membership is deliberately ignored; it never
// affects status or thread derivation for an already-loaded conversation.
func jobChanged(old, current *conversation.Job) bool {
	if old == nil {
		return current != nil
	}
	return old.State != current.State ||
		old.ResultHash != current.ResultHash ||
		old.Disputed != current.Disputed ||
		old.Rating != current.Rating ||
		old.Roles != current.Roles ||
		old.ClosedAt != current.ClosedAt
}

// Snapshot returns the current job, event log and version atomically.
func (w *Watcher) Snapshot() (*conversation.Job, []conversation.JobEvent, uint64) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.job, w.events, w.version
}

// Subscribe returns a channel receiving future updates. Slow consumers miss
// updates rather than blocking the poll loop; they can always catch up via
// Snapshot.
func (w *Watcher) Subscribe() <-chan Update {
	ch := make(chan Update, 8)
	w.listenersMu.Lock()
	w.listeners = append(w.listeners, ch)
	w.listenersMu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscription channel.
func (w *Watcher) Unsubscribe(ch <-chan Update) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()
	for i, listener := range w.listeners {
		if listener == ch {
			close(listener)
			w.listeners = append(w.listeners[:i], w.listeners[i+1:]...)
			return
		}
	}
}

func (w *Watcher) broadcast(update Update) {
	w.listenersMu.Lock()
	defer w.listenersMu.Unlock()
	for _, listener := range w.listeners {
		select {
		case listener <- update:
		default:
			// Listener buffer full, drop update.
		}
	}
}
