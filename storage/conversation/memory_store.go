package conversation

import (
	"context"
	"sort"
	"strings"
	"sync"

	"openwork-backend/core/conversation"
)

// MemoryStore holds indexer-mirrored jobs, events and user profiles in
// memory. The single RWMutex ensures atomic operations across the maps, so
// a job and its events never disagree mid-update.
type MemoryStore struct {
	mu     sync.RWMutex
	jobs   map[string]conversation.Job
	events map[string][]conversation.JobEvent
	users  map[string]conversation.User
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:   make(map[string]conversation.Job),
		events: make(map[string][]conversation.JobEvent),
		users:  make(map[string]conversation.User),
	}
}

// NewSeededMemoryStore returns a store preloaded with demo fixtures.
func NewSeededMemoryStore() *MemoryStore {
	s := NewMemoryStore()
	jobs, events, users := SeedData()
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	for id, evs := range events {
		s.events[id] = evs
	}
	for _, u := range users {
		s.users[strings.ToLower(u.Address)] = u
	}
	return s
}

// UpsertJob replaces the stored snapshot wholesale.
func (s *MemoryStore) UpsertJob(_ context.Context, job conversation.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

// GetJob returns the stored snapshot for id.
func (s *MemoryStore) GetJob(_ context.Context, id string) (conversation.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return conversation.Job{}, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns jobs matching the filter, newest first.
func (s *MemoryStore) ListJobs(_ context.Context, filter JobFilter) ([]conversation.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]conversation.Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		if filter.State != nil && job.State != *filter.State {
			continue
		}
		if filter.Creator != "" && !strings.EqualFold(job.Roles.Creator, filter.Creator) {
			continue
		}
		if filter.Worker != "" && !strings.EqualFold(job.Roles.Worker, filter.Worker) {
			continue
		}
		out = append(out, job)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt > out[j].CreatedAt })
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// AppendEvents extends a job's log. Events at or below the last stored
// sequence index are skipped silently, so re-delivered indexer pages are
// harmless.
func (s *MemoryStore) AppendEvents(_ context.Context, jobID string, events []conversation.JobEvent) error {
	if len(events) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	log := s.events[jobID]
	var lastSeq uint64
	if len(log) > 0 {
		lastSeq = log[len(log)-1].SequenceIndex
	}
	for _, ev := range events {
		if len(log) > 0 && ev.SequenceIndex <= lastSeq {
			continue
		}
		log = append(log, ev)
		lastSeq = ev.SequenceIndex
	}
	s.events[jobID] = log
	return nil
}

// ListEvents returns a copy of the events with sequence index at or above
// fromSeq, preserving log order.
func (s *MemoryStore) ListEvents(_ context.Context, jobID string, fromSeq uint64) ([]conversation.JobEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.events[jobID]
	out := make([]conversation.JobEvent, 0, len(log))
	for _, ev := range log {
		if ev.SequenceIndex >= fromSeq {
			out = append(out, ev)
		}
	}
	return out, nil
}

// UpsertUser stores a display profile keyed by address.
func (s *MemoryStore) UpsertUser(_ context.Context, user conversation.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[strings.ToLower(user.Address)] = user
	return nil
}

// GetUser returns the profile for an address, case-insensitively.
func (s *MemoryStore) GetUser(_ context.Context, address string) (conversation.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	user, ok := s.users[strings.ToLower(address)]
	if !ok {
		return conversation.User{}, ErrUserNotFound
	}
	return user, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() {}
