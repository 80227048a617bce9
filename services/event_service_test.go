package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"openwork-backend/core/conversation"
	"openwork-backend/indexer"
	storage "openwork-backend/storage/conversation"
)

// indexerStub serves a fixed job with a log that grows once.
func indexerStub(t *testing.T) *httptest.Server {
	t.Helper()
	polls := 0
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string                 `json:"query"`
			Variables map[string]interface{} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		w.Header().Set("Content-Type", "application/json")

		if strings.Contains(req.Query, "jobEvents") {
			polls++
			from, _ := req.Variables["from"].(float64)
			events := `[{"sequenceIndex":0,"type":0,"address":"0xAAA","timestamp":100,"recipient":"","contentHash":""}]`
			if polls > 1 {
				events = `[{"sequenceIndex":1,"type":17,"address":"0xBBB","timestamp":200,"recipient":"0xAAA","contentHash":"QmNew"}]`
			}
			if from > 1 {
				events = `[]`
			}
			w.Write([]byte(`{"data":{"jobEvents":` + events + `}}`))
			return
		}
		w.Write([]byte(`{"data":{"job":{
			"id":"JOB-77","state":0,"title":"Watcher test",
			"contentHash":"QmJob","resultHash":"",
			"creator":"0xAAA","worker":"","arbitrator":"0xCCC",
			"disputed":false,"rating":0,"amount":"1","token":"SAT",
			"createdAt":100,"assignedAt":0,"closedAt":0,
			"whitelistWorkers":false,"allowedWorkers":null}}}`))
	}))
}

type emptyResolver struct{}

func (emptyResolver) Cat(context.Context, string) ([]byte, error) {
	return nil, context.Canceled
}

func TestEventServiceMirrorsWatcherIntoStore(t *testing.T) {
	srv := indexerStub(t)
	defer srv.Close()

	store := storage.NewMemoryStore()
	defer store.Close()

	client := indexer.NewClient(srv.URL, 5*time.Second)
	watcher := indexer.NewWatcher(client, "JOB-77", 20*time.Millisecond)
	sync := NewEventService(watcher, store, nil)

	view := conversation.NewConversationView(conversation.NewSessionKeyStore(nil), emptyResolver{})
	view.SetViewer("0xBBB")
	sync.AttachView(view)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sync.Run(ctx)
	time.Sleep(10 * time.Millisecond) // let the subscription attach
	go watcher.Run(ctx)

	deadline := time.After(3 * time.Second)
	for {
		events, err := store.ListEvents(ctx, "JOB-77", 0)
		if err == nil && len(events) >= 2 {
			assert.Equal(t, conversation.EventWorkerMessage, events[1].Type)
			break
		}
		select {
		case <-deadline:
			t.Fatalf("store never caught up, have %d events", len(events))
		case <-time.After(20 * time.Millisecond):
		}
	}

	job, err := store.GetJob(ctx, "JOB-77")
	require.NoError(t, err)
	assert.Equal(t, "Watcher test", job.Title)
	assert.Equal(t, conversation.JobStateOpen, job.State)

	// The attached view is recomputed on every update the watcher pushes.
	var vm *conversation.ViewModel
	deadline = time.After(3 * time.Second)
	for vm == nil {
		if vm = view.Current(); vm != nil {
			break
		}
		select {
		case <-deadline:
			t.Fatal("view never populated")
		case <-time.After(20 * time.Millisecond):
		}
	}
	assert.Equal(t, "JOB-77", vm.JobID)
	assert.Equal(t, conversation.StatusAwaitingAcceptance, vm.Status)
}
