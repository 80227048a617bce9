package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// ContentResolver fetches the bytes behind a content hash. The IPFS client
// satisfies this.
type ContentResolver interface {
	Cat(ctx context.Context, ref string) ([]byte, error)
}

// Observer receives engine signals for metrics. Implementations must be
// cheap and non-blocking; a nil observer is fine.
type Observer interface {
	RecomputeDone(stale bool)
	DecryptFailed()
}

// Message pairs a message-bearing event with its decrypted body. Decrypted
// is false when the viewer holds no key for the pair or the payload failed
// to open; Body is then empty rather than an error.
type Message struct {
	Event     JobEvent `json:"event"`
	Body      string   `json:"body"`
	Decrypted bool     `json:"decrypted"`
}

// ViewModel is one consistent, renderable snapshot of a conversation:
// resolved status, the partitioned thread and the decrypted messages in it.
type ViewModel struct {
	JobID      string        `json:"job_id"`
	Status     DisplayStatus `json:"status"`
	Viewer     string        `json:"viewer"`
	Focused    string        `json:"focused"`
	Thread     []JobEvent    `json:"thread"`
	Messages   []Message     `json:"messages"`
	Generation uint64        `json:"generation"`
}

// ConversationView reconstructs one viewer's conversation for one job. All
// inputs arrive through setters; Recompute then derives a fresh ViewModel
// from a single atomic snapshot of them. Recomputes are versioned so a
// superseded one is discarded instead of racing the newer result.
type ConversationView struct {
	mu sync.Mutex

	keys     *SessionKeyStore
	resolver ContentResolver
	observer Observer
	cache    ThreadCache

	job           *Job
	events        []JobEvent
	eventsVersion uint64

	viewer        string
	focused       string
	focusExplicit bool

	gen     uint64
	current *ViewModel
}

// NewConversationView wires the view to its key store and content resolver.
func NewConversationView(keys *SessionKeyStore, resolver ContentResolver) *ConversationView {
	return &ConversationView{keys: keys, resolver: resolver}
}

// SetObserver attaches a metrics observer.
func (v *ConversationView) SetObserver(o Observer) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.observer = o
}

// SetViewer sets the address the conversation is reconstructed for.
func (v *ConversationView) SetViewer(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.viewer = addr
	v.autoFocusLocked()
}

// FocusCounterparty records an explicit thread selection by the viewer,
// e.g. picking an applicant from the list on an open job.
func (v *ConversationView) FocusCounterparty(addr string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.focused = addr
	v.focusExplicit = addr != ""
}

// Focused returns the currently focused counterparty, which may be empty.
func (v *ConversationView) Focused() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.focused
}

// ReplaceJob installs a fresher job snapshot. Switching to a different job
// resets the thread selection; a state transition into taken or closed pins
// the focus to the assigned worker unless the viewer chose one explicitly.
func (v *ConversationView) ReplaceJob(job *Job) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if job == nil {
		v.job = nil
		return
	}
	if v.job == nil || v.job.ID != job.ID {
		v.focused = ""
		v.focusExplicit = false
	}
	v.job = job
	v.autoFocusLocked()
}

func (v *ConversationView) autoFocusLocked() {
	if v.job == nil {
		return
	}
	switch v.job.State {
	case JobStateTaken, JobStateClosed:
		if !v.focusExplicit && !AddressEmpty(v.job.Roles.Worker) {
			v.focused = v.job.Roles.Worker
		}
	case JobStateOpen:
		// A worker always sees its own thread, never another applicant's.
		if v.focused == "" && v.viewer != "" && !SameAddress(v.viewer, v.job.Roles.Creator) {
			v.focused = v.viewer
		}
	}
}

// ApplyEvents replaces the event log snapshot. The caller hands over a slice
// it will not mutate afterwards; the log is append-only so fresher snapshots
// only ever extend older ones.
func (v *ConversationView) ApplyEvents(events []JobEvent) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = events
	v.eventsVersion++
}

// Current returns the last committed view model, which may be nil before the
// first recompute.
func (v *ConversationView) Current() *ViewModel {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.current
}

// Recompute derives a view model from one atomic snapshot of the inputs and
// commits it unless a newer recompute started in the meantime; the returned
// bool reports whether the result was committed (last request wins).
func (v *ConversationView) Recompute(ctx context.Context) (*ViewModel, bool) {
	v.mu.Lock()
	v.gen++
	gen := v.gen
	job := v.job
	events := v.events
	version := v.eventsVersion
	viewer := v.viewer
	focused := v.focused
	observer := v.observer
	v.mu.Unlock()

	vm := &ViewModel{
		Status:     ResolveStatus(job, events),
		Viewer:     viewer,
		Focused:    focused,
		Generation: gen,
	}
	if job != nil {
		vm.JobID = job.ID
	}
	vm.Thread = v.cache.Partition(version, events, job, focused, viewer)
	vm.Messages = v.decryptThread(ctx, job, vm.Thread, viewer)

	v.mu.Lock()
	defer v.mu.Unlock()
	stale := gen != v.gen
	if !stale {
		v.current = vm
	}
	if observer != nil {
		observer.RecomputeDone(stale)
	}
	return vm, !stale
}

func (v *ConversationView) decryptThread(ctx context.Context, job *Job, thread []JobEvent, viewer string) []Message {
	msgs := make([]Message, 0, len(thread))
	for _, ev := range thread {
		switch {
		case ev.Type.IsMessage() && !HashEmpty(ev.ContentHash):
			msgs = append(msgs, v.decryptDirect(ctx, ev))
		case ev.Type == EventJobDisputed && !HashEmpty(ev.ContentHash):
			msgs = append(msgs, v.decryptDispute(ctx, job, ev, viewer))
		}
	}
	return msgs
}

func (v *ConversationView) decryptDirect(ctx context.Context, ev JobEvent) Message {
	msg := Message{Event: ev}
	key, ok := v.keys.KeyFor(ev.Address, ev.Recipient)
	if !ok {
		v.decryptFailed()
		return msg
	}
	body, err := v.resolveAndOpen(ctx, ev.ContentHash, key)
	if err != nil {
		v.decryptFailed()
		return msg
	}
	msg.Body = string(body)
	msg.Decrypted = true
	return msg
}

// decryptDispute opens a dispute envelope. Participants hold the session key
// directly; the arbitrator first unwraps it from the channel it shares with
// the dispute initiator.
func (v *ConversationView) decryptDispute(ctx context.Context, job *Job, ev JobEvent, viewer string) Message {
	msg := Message{Event: ev}
	if job == nil || v.resolver == nil {
		v.decryptFailed()
		return msg
	}
	raw, err := v.resolver.Cat(ctx, ev.ContentHash)
	if err != nil {
		v.decryptFailed()
		return msg
	}
	var env DisputeEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		v.decryptFailed()
		return msg
	}

	var sessionKey string
	if SameAddress(viewer, job.Roles.Arbitrator) {
		channelKey, ok := v.keys.KeyFor(job.Roles.Arbitrator, ev.Address)
		if !ok {
			v.decryptFailed()
			return msg
		}
		sessionKey, err = UnwrapSessionKey(env.EncryptedKey, channelKey)
		if err != nil {
			v.decryptFailed()
			return msg
		}
	} else {
		key, ok := v.keys.KeyFor(job.Roles.Creator, job.Roles.Worker)
		if !ok {
			v.decryptFailed()
			return msg
		}
		sessionKey = key
	}

	body, err := DecryptString(sessionKey, env.EncryptedContent)
	if err != nil {
		v.decryptFailed()
		return msg
	}
	msg.Body = string(body)
	msg.Decrypted = true
	return msg
}

func (v *ConversationView) resolveAndOpen(ctx context.Context, ref, key string) ([]byte, error) {
	if v.resolver == nil {
		return nil, fmt.Errorf("no content resolver configured")
	}
	sealed, err := v.resolver.Cat(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", ref, err)
	}
	return DecryptMessage(key, sealed)
}

func (v *ConversationView) decryptFailed() {
	v.mu.Lock()
	observer := v.observer
	v.mu.Unlock()
	if observer != nil {
		observer.DecryptFailed()
	}
}
