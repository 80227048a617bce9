package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"

	"openwork-backend/core/conversation"
	storage "openwork-backend/storage/conversation"
)

// ContentStore pins sealed payloads and returns their content hash.
type ContentStore interface {
	AddBytes(ctx context.Context, name string, data []byte) (string, error)
}

// TxSubmitter publishes message and dispute events to the escrow contract.
// The events come back through the indexer once the transaction confirms.
type TxSubmitter interface {
	SubmitMessage(ctx context.Context, jobID, sender, recipient, contentHash string) error
	SubmitDispute(ctx context.Context, jobID, initiator, contentHash string) error
}

// Stats counts successful submissions. A nil recorder disables counting.
type Stats interface {
	MessagePosted()
	DisputeRaised()
}

// ConversationService handles conversation-related business logic: reading
// job status and threads out of the store, and posting sealed messages and
// dispute envelopes through the contract.
type ConversationService struct {
	store   storage.Store
	cache   *storage.JobCache
	content ContentStore
	keys    *conversation.SessionKeyStore
	tx      TxSubmitter
	stats   Stats
}

// SetStats installs a submission counter.
func (s *ConversationService) SetStats(stats Stats) {
	s.stats = stats
}

// NewConversationService creates a new conversation service. cache may be nil.
func NewConversationService(store storage.Store, cache *storage.JobCache, content ContentStore, keys *conversation.SessionKeyStore, tx TxSubmitter) *ConversationService {
	return &ConversationService{
		store:   store,
		cache:   cache,
		content: content,
		keys:    keys,
		tx:      tx,
	}
}

// GetJob returns the job snapshot, consulting the cache first.
func (s *ConversationService) GetJob(ctx context.Context, jobID string) (conversation.Job, error) {
	if s.cache != nil {
		if job, ok := s.cache.Get(ctx, jobID); ok {
			return job, nil
		}
	}
	job, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		return conversation.Job{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, job)
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *ConversationService) ListJobs(ctx context.Context, filter storage.JobFilter) ([]conversation.Job, error) {
	return s.store.ListJobs(ctx, filter)
}

// JobWithStatus returns the snapshot together with its resolved display
// status, fetching the job and its log once each.
func (s *ConversationService) JobWithStatus(ctx context.Context, jobID string) (conversation.Job, conversation.DisplayStatus, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return conversation.Job{}, conversation.StatusUnknown, err
	}
	events, err := s.store.ListEvents(ctx, jobID, 0)
	if err != nil {
		return conversation.Job{}, conversation.StatusUnknown, err
	}
	return job, conversation.ResolveStatus(&job, events), nil
}

// JobStatus resolves the display status from the job snapshot and its log.
func (s *ConversationService) JobStatus(ctx context.Context, jobID string) (conversation.DisplayStatus, error) {
	_, status, err := s.JobWithStatus(ctx, jobID)
	return status, err
}

// Thread returns the events visible to viewer in the thread with the focused
// counterparty, plus the snapshot and display status derived from the same
// fetch.
func (s *ConversationService) Thread(ctx context.Context, jobID, focused, viewer string) ([]conversation.JobEvent, *conversation.Job, conversation.DisplayStatus, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, conversation.StatusUnknown, err
	}
	events, err := s.store.ListEvents(ctx, jobID, 0)
	if err != nil {
		return nil, nil, conversation.StatusUnknown, err
	}
	status := conversation.ResolveStatus(&job, events)
	return conversation.PartitionThread(events, &job, focused, viewer), &job, status, nil
}

// PostMessage seals plaintext for the sender/recipient pair, pins it, and
// submits the message transaction. The pair's session key must already be
// cached; nothing touches the network when it is missing.
func (s *ConversationService) PostMessage(ctx context.Context, jobID, sender, recipient string, plaintext []byte) (string, error) {
	key, ok := s.keys.KeyFor(sender, recipient)
	if !ok {
		return "", fmt.Errorf("post message on %s: %w", jobID, conversation.ErrSessionKeyMissing)
	}

	sealed, err := conversation.EncryptMessage(key, plaintext)
	if err != nil {
		return "", fmt.Errorf("seal message: %w", err)
	}

	name := fmt.Sprintf("msg_%s.bin", uuid.New().String())
	hash, err := s.content.AddBytes(ctx, name, sealed)
	if err != nil {
		return "", fmt.Errorf("pin message: %w", err)
	}

	if err := s.tx.SubmitMessage(ctx, jobID, sender, recipient, hash); err != nil {
		return "", fmt.Errorf("submit message tx: %w", err)
	}

	if s.stats != nil {
		s.stats.MessagePosted()
	}
	log.Printf("Posted message on job %s: %s -> %s (%s)", jobID, sender, recipient, hash)
	return hash, nil
}

// RaiseDispute seals the dispute content under the creator/worker session key,
// wraps that key for the arbitrator, pins the envelope, and submits the
// dispute transaction. Both keys must already be cached.
func (s *ConversationService) RaiseDispute(ctx context.Context, jobID, initiator string, content []byte) (string, error) {
	job, err := s.GetJob(ctx, jobID)
	if err != nil {
		return "", fmt.Errorf("raise dispute on %s: %w", jobID, err)
	}
	if conversation.AddressEmpty(job.Roles.Worker) {
		return "", fmt.Errorf("raise dispute on %s: no worker assigned", jobID)
	}
	if conversation.AddressEmpty(job.Roles.Arbitrator) {
		return "", fmt.Errorf("raise dispute on %s: no arbitrator assigned", jobID)
	}

	sessionKey, ok := s.keys.KeyFor(job.Roles.Creator, job.Roles.Worker)
	if !ok {
		return "", fmt.Errorf("raise dispute on %s: creator/worker key: %w", jobID, conversation.ErrSessionKeyMissing)
	}
	channelKey, ok := s.keys.KeyFor(initiator, job.Roles.Arbitrator)
	if !ok {
		return "", fmt.Errorf("raise dispute on %s: arbitrator channel key: %w", jobID, conversation.ErrSessionKeyMissing)
	}

	sealedContent, err := conversation.EncryptToString(sessionKey, content)
	if err != nil {
		return "", fmt.Errorf("seal dispute content: %w", err)
	}
	wrappedKey, err := conversation.WrapSessionKey(sessionKey, channelKey)
	if err != nil {
		return "", fmt.Errorf("wrap session key: %w", err)
	}

	envelope, err := json.Marshal(conversation.DisputeEnvelope{
		EncryptedKey:     wrappedKey,
		EncryptedContent: sealedContent,
	})
	if err != nil {
		return "", fmt.Errorf("encode dispute envelope: %w", err)
	}

	name := fmt.Sprintf("dispute_%s.json", uuid.New().String())
	hash, err := s.content.AddBytes(ctx, name, envelope)
	if err != nil {
		return "", fmt.Errorf("pin dispute envelope: %w", err)
	}

	if err := s.tx.SubmitDispute(ctx, jobID, initiator, hash); err != nil {
		return "", fmt.Errorf("submit dispute tx: %w", err)
	}

	if s.stats != nil {
		s.stats.DisputeRaised()
	}
	log.Printf("Raised dispute on job %s by %s (%s)", jobID, initiator, hash)
	return hash, nil
}
