package conversation

import (
	"context"

	"openwork-backend/core/conversation"
)

// JobFilter narrows ListJobs results. Zero values match everything.
type JobFilter struct {
	State   *conversation.JobState
	Creator string
	Worker  string
	Limit   int
}

// Store abstracts job, event and user persistence for the conversation
// engine. Implementations mirror the indexer; the event log is append-only
// per job and events are never mutated or deleted.
type Store interface {
	UpsertJob(ctx context.Context, job conversation.Job) error
	GetJob(ctx context.Context, id string) (conversation.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]conversation.Job, error)

	AppendEvents(ctx context.Context, jobID string, events []conversation.JobEvent) error
	ListEvents(ctx context.Context, jobID string, fromSeq uint64) ([]conversation.JobEvent, error)

	UpsertUser(ctx context.Context, user conversation.User) error
	GetUser(ctx context.Context, address string) (conversation.User, error)

	Close()
}
