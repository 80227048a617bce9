package conversation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openwork-backend/core/conversation"
)

func TestMemoryStoreJobs(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	job := conversation.Job{
		ID:        "JOB-1",
		State:     conversation.JobStateOpen,
		Title:     "first",
		Roles:     conversation.JobRoles{Creator: SeedCreator},
		CreatedAt: 100,
	}
	require.NoError(t, store.UpsertJob(ctx, job))

	got, err := store.GetJob(ctx, "JOB-1")
	require.NoError(t, err)
	assert.Equal(t, job, got)

	// Upsert replaces the snapshot wholesale.
	job.State = conversation.JobStateTaken
	job.Roles.Worker = SeedWorker
	require.NoError(t, store.UpsertJob(ctx, job))
	got, err = store.GetJob(ctx, "JOB-1")
	require.NoError(t, err)
	assert.Equal(t, conversation.JobStateTaken, got.State)

	_, err = store.GetJob(ctx, "JOB-404")
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestMemoryStoreListJobsFilter(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	open := conversation.JobStateOpen
	require.NoError(t, store.UpsertJob(ctx, conversation.Job{
		ID: "JOB-1", State: conversation.JobStateOpen,
		Roles: conversation.JobRoles{Creator: SeedCreator}, CreatedAt: 100,
	}))
	require.NoError(t, store.UpsertJob(ctx, conversation.Job{
		ID: "JOB-2", State: conversation.JobStateTaken,
		Roles: conversation.JobRoles{Creator: SeedCreator, Worker: SeedWorker}, CreatedAt: 200,
	}))
	require.NoError(t, store.UpsertJob(ctx, conversation.Job{
		ID: "JOB-3", State: conversation.JobStateOpen,
		Roles: conversation.JobRoles{Creator: SeedWorker}, CreatedAt: 300,
	}))

	jobs, err := store.ListJobs(ctx, JobFilter{State: &open})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)
	assert.Equal(t, "JOB-3", jobs[0].ID, "newest first")

	jobs, err = store.ListJobs(ctx, JobFilter{Creator: SeedCreator})
	require.NoError(t, err)
	assert.Len(t, jobs, 2)

	jobs, err = store.ListJobs(ctx, JobFilter{Worker: SeedWorker})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "JOB-2", jobs[0].ID)

	jobs, err = store.ListJobs(ctx, JobFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, jobs, 1)
}

func TestMemoryStoreEventsAppendOnly(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	first := []conversation.JobEvent{
		{SequenceIndex: 0, Type: conversation.EventJobCreated, Address: SeedCreator},
		{SequenceIndex: 1, Type: conversation.EventWorkerMessage, Address: SeedWorker, Recipient: SeedCreator},
	}
	require.NoError(t, store.AppendEvents(ctx, "JOB-1", first))

	// Re-delivering an overlapping page must not duplicate events.
	overlap := []conversation.JobEvent{
		{SequenceIndex: 1, Type: conversation.EventWorkerMessage, Address: SeedWorker, Recipient: SeedCreator},
		{SequenceIndex: 2, Type: conversation.EventJobTaken, Address: SeedWorker},
	}
	require.NoError(t, store.AppendEvents(ctx, "JOB-1", overlap))

	events, err := store.ListEvents(ctx, "JOB-1", 0)
	require.NoError(t, err)
	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, uint64(i), ev.SequenceIndex)
	}

	tail, err := store.ListEvents(ctx, "JOB-1", 2)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	assert.Equal(t, conversation.EventJobTaken, tail[0].Type)
}

func TestMemoryStoreUsers(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, conversation.User{Address: SeedCreator, Name: "Ada"}))

	got, err := store.GetUser(ctx, SeedCreator)
	require.NoError(t, err)
	assert.Equal(t, "Ada", got.Name)

	// Lookup is case-insensitive.
	upper, err := store.GetUser(ctx, "0X1111111111111111111111111111111111111111")
	require.NoError(t, err)
	assert.Equal(t, got, upper)

	_, err = store.GetUser(ctx, SeedArbitrator)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSeededMemoryStore(t *testing.T) {
	store := NewSeededMemoryStore()
	ctx := context.Background()

	jobs, err := store.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.NotEmpty(t, jobs)

	events, err := store.ListEvents(ctx, "JOB-1001", 0)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}
