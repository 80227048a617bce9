package services

import (
	"context"
	"log"

	"openwork-backend/core/conversation"
	"openwork-backend/indexer"
	storage "openwork-backend/storage/conversation"
)

// EventService drains a watcher's update stream into the local store, keeps
// the cache coherent, and feeds live views. One instance serves one job.
type EventService struct {
	watcher *indexer.Watcher
	store   storage.Store
	cache   *storage.JobCache
	views   []*conversation.ConversationView
}

// NewEventService creates a new event service. cache may be nil.
func NewEventService(watcher *indexer.Watcher, store storage.Store, cache *storage.JobCache) *EventService {
	return &EventService{
		watcher: watcher,
		store:   store,
		cache:   cache,
	}
}

// AttachView registers a live view that should track incoming updates.
// Call before Run; the view set is fixed once the service is running.
func (s *EventService) AttachView(view *conversation.ConversationView) {
	s.views = append(s.views, view)
}

// Run applies watcher updates until ctx is cancelled. The watcher itself
// must be started separately.
func (s *EventService) Run(ctx context.Context) {
	updates := s.watcher.Subscribe()
	defer s.watcher.Unsubscribe(updates)

	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			s.apply(ctx, update)
		}
	}
}

func (s *EventService) apply(ctx context.Context, update indexer.Update) {
	if update.Job != nil {
		if err := s.store.UpsertJob(ctx, *update.Job); err != nil {
			log.Printf("Failed to persist job %s: %v", update.Job.ID, err)
		}
		if s.cache != nil {
			s.cache.Invalidate(ctx, update.Job.ID)
		}
	}
	if update.Job != nil && len(update.Events) > 0 {
		if err := s.store.AppendEvents(ctx, update.Job.ID, update.Events); err != nil {
			log.Printf("Failed to persist events for %s: %v", update.Job.ID, err)
		}
	}

	for _, view := range s.views {
		if update.Job != nil {
			view.ReplaceJob(update.Job)
		}
		if len(update.Events) > 0 {
			view.ApplyEvents(update.Events)
		}
		view.Recompute(ctx)
	}
}
