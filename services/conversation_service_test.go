package services

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openwork-backend/core/conversation"
	storage "openwork-backend/storage/conversation"
)

type fakeContentStore struct {
	added map[string][]byte
}

func newFakeContentStore() *fakeContentStore {
	return &fakeContentStore{added: make(map[string][]byte)}
}

func (f *fakeContentStore) AddBytes(_ context.Context, name string, data []byte) (string, error) {
	hash := "Qm" + name
	f.added[hash] = append([]byte(nil), data...)
	return hash, nil
}

type fakeTxSubmitter struct {
	messages []string
	disputes []string
}

func (f *fakeTxSubmitter) SubmitMessage(_ context.Context, jobID, sender, recipient, contentHash string) error {
	f.messages = append(f.messages, contentHash)
	return nil
}

func (f *fakeTxSubmitter) SubmitDispute(_ context.Context, jobID, initiator, contentHash string) error {
	f.disputes = append(f.disputes, contentHash)
	return nil
}

func newTestService(t *testing.T) (*ConversationService, *fakeContentStore, *fakeTxSubmitter, *conversation.SessionKeyStore) {
	t.Helper()
	store := storage.NewSeededMemoryStore()
	t.Cleanup(store.Close)
	content := newFakeContentStore()
	tx := &fakeTxSubmitter{}
	keys := conversation.NewSessionKeyStore(nil)
	svc := NewConversationService(store, nil, content, keys, tx)
	return svc, content, tx, keys
}

func TestJobStatusFromSeedData(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	status, err := svc.JobStatus(context.Background(), "JOB-1001")
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusAwaitingAcceptance, status)

	status, err = svc.JobStatus(context.Background(), "JOB-1002")
	require.NoError(t, err)
	assert.Equal(t, conversation.StatusStarted, status)
}

type countingStore struct {
	storage.Store
	getJobCalls int
}

func (c *countingStore) GetJob(ctx context.Context, id string) (conversation.Job, error) {
	c.getJobCalls++
	return c.Store.GetJob(ctx, id)
}

func TestJobWithStatusFetchesSnapshotOnce(t *testing.T) {
	seeded := storage.NewSeededMemoryStore()
	t.Cleanup(seeded.Close)
	counting := &countingStore{Store: seeded}
	svc := NewConversationService(counting, nil, newFakeContentStore(), conversation.NewSessionKeyStore(nil), &fakeTxSubmitter{})

	job, status, err := svc.JobWithStatus(context.Background(), "JOB-1002")
	require.NoError(t, err)
	assert.Equal(t, "JOB-1002", job.ID)
	assert.Equal(t, conversation.StatusStarted, status)
	assert.Equal(t, 1, counting.getJobCalls)

	counting.getJobCalls = 0
	_, _, _, err = svc.Thread(context.Background(), "JOB-1002", storage.SeedWorker, storage.SeedCreator)
	require.NoError(t, err)
	assert.Equal(t, 1, counting.getJobCalls)
}

func TestThreadScopesToFocusedApplicant(t *testing.T) {
	svc, _, _, _ := newTestService(t)

	thread, job, status, err := svc.Thread(context.Background(), "JOB-1001", storage.SeedApplicant, storage.SeedCreator)
	require.NoError(t, err)
	assert.Equal(t, "JOB-1001", job.ID)
	assert.Equal(t, conversation.StatusAwaitingAcceptance, status)
	require.Len(t, thread, 1)
	assert.Equal(t, uint64(2), thread[0].SequenceIndex)
	assert.Equal(t, storage.SeedApplicant, thread[0].Address)
}

func TestPostMessageSealsAndSubmits(t *testing.T) {
	svc, content, tx, keys := newTestService(t)
	keys.Put(storage.SeedCreator, storage.SeedWorker, "pair-session-key")

	hash, err := svc.PostMessage(context.Background(), "JOB-1002", storage.SeedCreator, storage.SeedWorker, []byte("status update please"))
	require.NoError(t, err)
	require.Len(t, tx.messages, 1)
	assert.Equal(t, hash, tx.messages[0])

	sealed, ok := content.added[hash]
	require.True(t, ok)
	plain, err := conversation.DecryptMessage("pair-session-key", sealed)
	require.NoError(t, err)
	assert.Equal(t, "status update please", string(plain))
}

func TestPostMessageMissingKeyTouchesNothing(t *testing.T) {
	svc, content, tx, _ := newTestService(t)

	_, err := svc.PostMessage(context.Background(), "JOB-1002", storage.SeedCreator, storage.SeedWorker, []byte("hello"))
	require.ErrorIs(t, err, conversation.ErrSessionKeyMissing)
	assert.Empty(t, content.added, "nothing may be pinned without a session key")
	assert.Empty(t, tx.messages)
}

func TestRaiseDisputeWrapsKeyForArbitrator(t *testing.T) {
	svc, content, tx, keys := newTestService(t)
	keys.Put(storage.SeedCreator, storage.SeedWorker, "pair-session-key")
	keys.Put(storage.SeedCreator, storage.SeedArbitrator, "channel-key")

	hash, err := svc.RaiseDispute(context.Background(), "JOB-1002", storage.SeedCreator, []byte("work never delivered"))
	require.NoError(t, err)
	require.Len(t, tx.disputes, 1)

	var envelope conversation.DisputeEnvelope
	require.NoError(t, json.Unmarshal(content.added[hash], &envelope))

	unwrapped, err := conversation.UnwrapSessionKey(envelope.EncryptedKey, "channel-key")
	require.NoError(t, err)
	assert.Equal(t, "pair-session-key", unwrapped)

	plain, err := conversation.DecryptString(unwrapped, envelope.EncryptedContent)
	require.NoError(t, err)
	assert.Equal(t, "work never delivered", string(plain))
}

func TestRaiseDisputeRequiresBothKeys(t *testing.T) {
	ctx := context.Background()

	t.Run("missing session key", func(t *testing.T) {
		svc, content, _, keys := newTestService(t)
		keys.Put(storage.SeedCreator, storage.SeedArbitrator, "channel-key")
		_, err := svc.RaiseDispute(ctx, "JOB-1002", storage.SeedCreator, []byte("x"))
		require.ErrorIs(t, err, conversation.ErrSessionKeyMissing)
		assert.Empty(t, content.added)
	})

	t.Run("missing channel key", func(t *testing.T) {
		svc, content, _, keys := newTestService(t)
		keys.Put(storage.SeedCreator, storage.SeedWorker, "pair-session-key")
		_, err := svc.RaiseDispute(ctx, "JOB-1002", storage.SeedCreator, []byte("x"))
		require.ErrorIs(t, err, conversation.ErrSessionKeyMissing)
		assert.Empty(t, content.added)
	})
}

func TestRaiseDisputeRejectsUnassignedJob(t *testing.T) {
	svc, _, _, keys := newTestService(t)
	keys.Put(storage.SeedCreator, storage.SeedWorker, "pair-session-key")
	keys.Put(storage.SeedCreator, storage.SeedArbitrator, "channel-key")

	_, err := svc.RaiseDispute(context.Background(), "JOB-1001", storage.SeedCreator, []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no worker assigned")
}
