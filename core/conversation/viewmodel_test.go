package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
)

// mapResolver serves content refs out of memory and can run a hook on every
// fetch to simulate upstream changes mid-recompute.
type mapResolver struct {
	content map[string][]byte
	onCat   func()
}

func (r *mapResolver) Cat(_ context.Context, ref string) ([]byte, error) {
	if r.onCat != nil {
		r.onCat()
	}
	data, ok := r.content[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %s", ref)
	}
	return data, nil
}

func (r *mapResolver) put(t *testing.T, ref, key, body string) {
	t.Helper()
	sealed, err := EncryptMessage(key, []byte(body))
	if err != nil {
		t.Fatalf("seal fixture: %v", err)
	}
	r.content[ref] = sealed
}

func openJob() *Job {
	return &Job{ID: "job-1", State: JobStateOpen, Roles: JobRoles{Creator: creator}}
}

func TestRecomputeDecryptsFocusedThread(t *testing.T) {
	keys := NewSessionKeyStore(nil)
	keys.Put(creator, workerX, "key-cx")
	keys.Put(creator, workerY, "key-cy")

	resolver := &mapResolver{content: map[string][]byte{}}
	resolver.put(t, "QmMsgX", "key-cx", "hi, I want this job")
	resolver.put(t, "QmMsgY", "key-cy", "please pick me instead")

	view := NewConversationView(keys, resolver)
	view.SetViewer(creator)
	view.ReplaceJob(openJob())
	view.ApplyEvents([]JobEvent{
		{SequenceIndex: 0, Type: EventJobCreated, Address: creator},
		{SequenceIndex: 1, Type: EventWorkerMessage, Address: workerX, Recipient: creator, ContentHash: "QmMsgX"},
		{SequenceIndex: 2, Type: EventWorkerMessage, Address: workerY, Recipient: creator, ContentHash: "QmMsgY"},
	})
	view.FocusCounterparty(workerX)

	vm, fresh := view.Recompute(context.Background())
	if !fresh {
		t.Fatal("recompute reported stale without competing updates")
	}
	if vm.Status != StatusAwaitingAcceptance {
		t.Errorf("status = %s, want %s", vm.Status, StatusAwaitingAcceptance)
	}
	if len(vm.Thread) != 1 || vm.Thread[0].SequenceIndex != 1 {
		t.Fatalf("thread = %v, want only applicant X's message", seqIndexes(vm.Thread))
	}
	if len(vm.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(vm.Messages))
	}
	if !vm.Messages[0].Decrypted || vm.Messages[0].Body != "hi, I want this job" {
		t.Errorf("message body = %q (decrypted=%v)", vm.Messages[0].Body, vm.Messages[0].Decrypted)
	}
}

func TestRecomputeMissingKeyYieldsPlaceholder(t *testing.T) {
	keys := NewSessionKeyStore(nil)
	resolver := &mapResolver{content: map[string][]byte{}}
	resolver.put(t, "QmMsgX", "key-cx", "hello")

	view := NewConversationView(keys, resolver)
	view.SetViewer(creator)
	view.ReplaceJob(openJob())
	view.ApplyEvents([]JobEvent{
		{SequenceIndex: 0, Type: EventWorkerMessage, Address: workerX, Recipient: creator, ContentHash: "QmMsgX"},
	})
	view.FocusCounterparty(workerX)

	vm, _ := view.Recompute(context.Background())
	if len(vm.Messages) != 1 {
		t.Fatalf("messages = %d, want 1 placeholder", len(vm.Messages))
	}
	if vm.Messages[0].Decrypted || vm.Messages[0].Body != "" {
		t.Error("undecryptable message must render as an empty placeholder")
	}
}

func TestAutoFocusPinsAssignedWorker(t *testing.T) {
	view := NewConversationView(NewSessionKeyStore(nil), &mapResolver{content: map[string][]byte{}})
	view.SetViewer(creator)
	view.ReplaceJob(openJob())

	if got := view.Focused(); got != "" {
		t.Fatalf("creator viewing open job should have no focus, got %q", got)
	}

	takenJob := openJob()
	takenJob.State = JobStateTaken
	takenJob.Roles.Worker = workerX
	view.ReplaceJob(takenJob)

	if got := view.Focused(); !SameAddress(got, workerX) {
		t.Errorf("focus = %q, want assigned worker", got)
	}
}

func TestAutoFocusKeepsExplicitSelection(t *testing.T) {
	view := NewConversationView(NewSessionKeyStore(nil), &mapResolver{content: map[string][]byte{}})
	view.SetViewer(creator)
	view.ReplaceJob(openJob())
	view.FocusCounterparty(workerY)

	takenJob := openJob()
	takenJob.State = JobStateTaken
	takenJob.Roles.Worker = workerX
	view.ReplaceJob(takenJob)

	if got := view.Focused(); !SameAddress(got, workerY) {
		t.Errorf("explicit focus was overridden: got %q", got)
	}
}

func TestAutoFocusWorkerSeesOwnThread(t *testing.T) {
	view := NewConversationView(NewSessionKeyStore(nil), &mapResolver{content: map[string][]byte{}})
	view.SetViewer(workerX)
	view.ReplaceJob(openJob())

	if got := view.Focused(); !SameAddress(got, workerX) {
		t.Errorf("non-creator viewer of an open job should focus itself, got %q", got)
	}
}

func TestFocusResetsOnJobChange(t *testing.T) {
	view := NewConversationView(NewSessionKeyStore(nil), &mapResolver{content: map[string][]byte{}})
	view.SetViewer(creator)
	view.ReplaceJob(openJob())
	view.FocusCounterparty(workerX)

	other := openJob()
	other.ID = "job-2"
	view.ReplaceJob(other)

	if got := view.Focused(); got != "" {
		t.Errorf("focus should reset on job change, got %q", got)
	}
}

func TestRecomputeLastRequestWins(t *testing.T) {
	keys := NewSessionKeyStore(nil)
	keys.Put(creator, workerX, "key-cx")
	resolver := &mapResolver{content: map[string][]byte{}}
	resolver.put(t, "QmMsgX", "key-cx", "hello")

	view := NewConversationView(keys, resolver)
	view.SetViewer(creator)
	view.ReplaceJob(openJob())
	view.ApplyEvents([]JobEvent{
		{SequenceIndex: 0, Type: EventWorkerMessage, Address: workerX, Recipient: creator, ContentHash: "QmMsgX"},
	})
	view.FocusCounterparty(workerX)

	// A second recompute starts while the first is still resolving content;
	// the first result must be discarded.
	superseded := false
	resolver.onCat = func() {
		if !superseded {
			superseded = true
			hook := resolver.onCat
			resolver.onCat = nil
			defer func() { resolver.onCat = hook }()
			view.Recompute(context.Background())
		}
	}

	vm, fresh := view.Recompute(context.Background())
	if fresh {
		t.Error("superseded recompute must not be committed")
	}
	current := view.Current()
	if current == nil || current.Generation <= vm.Generation {
		t.Error("committed view model should come from the newer recompute")
	}
}

func TestDisputeEnvelopeDecryption(t *testing.T) {
	sessionKey := "creator-worker-key"
	channelKey := "worker-arbitrator-key"

	wrapped, err := WrapSessionKey(sessionKey, channelKey)
	if err != nil {
		t.Fatalf("WrapSessionKey() error: %v", err)
	}
	body, err := EncryptToString(sessionKey, []byte("the delivered work is broken"))
	if err != nil {
		t.Fatalf("EncryptToString() error: %v", err)
	}
	payload, err := json.Marshal(DisputeEnvelope{EncryptedKey: wrapped, EncryptedContent: body})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}

	job := &Job{
		ID:       "job-1",
		State:    JobStateTaken,
		Disputed: true,
		Roles:    JobRoles{Creator: creator, Worker: workerX, Arbitrator: arbitrator},
	}
	events := []JobEvent{
		{SequenceIndex: 0, Type: EventJobTaken, Address: workerX},
		{SequenceIndex: 1, Type: EventJobDisputed, Address: workerX, ContentHash: "QmDispute"},
	}
	resolver := &mapResolver{content: map[string][]byte{"QmDispute": payload}}

	t.Run("arbitrator unwraps the session key first", func(t *testing.T) {
		keys := NewSessionKeyStore(nil)
		keys.Put(arbitrator, workerX, channelKey)

		view := NewConversationView(keys, resolver)
		view.SetViewer(arbitrator)
		view.ReplaceJob(job)
		view.ApplyEvents(events)

		vm, _ := view.Recompute(context.Background())
		if len(vm.Messages) != 1 {
			t.Fatalf("messages = %d, want 1", len(vm.Messages))
		}
		if !vm.Messages[0].Decrypted || vm.Messages[0].Body != "the delivered work is broken" {
			t.Errorf("dispute body = %q (decrypted=%v)", vm.Messages[0].Body, vm.Messages[0].Decrypted)
		}
	})

	t.Run("participant decrypts with the shared session key", func(t *testing.T) {
		keys := NewSessionKeyStore(nil)
		keys.Put(creator, workerX, sessionKey)

		view := NewConversationView(keys, resolver)
		view.SetViewer(creator)
		view.ReplaceJob(job)
		view.ApplyEvents(events)

		vm, _ := view.Recompute(context.Background())
		if len(vm.Messages) != 1 || !vm.Messages[0].Decrypted {
			t.Fatal("participant failed to decrypt dispute body")
		}
	})

	t.Run("arbitrator without channel key sees placeholder", func(t *testing.T) {
		view := NewConversationView(NewSessionKeyStore(nil), resolver)
		view.SetViewer(arbitrator)
		view.ReplaceJob(job)
		view.ApplyEvents(events)

		vm, _ := view.Recompute(context.Background())
		if len(vm.Messages) != 1 {
			t.Fatalf("messages = %d, want 1", len(vm.Messages))
		}
		if vm.Messages[0].Decrypted {
			t.Error("expected placeholder without the channel key")
		}
	})
}
