package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"openwork-backend/core/conversation"
)

// Client reads job snapshots, event logs and user profiles from the GraphQL
// indexer. The indexer is the only source of truth this service trusts; the
// client never writes.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for the indexer's GraphQL endpoint.
func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{Timeout: timeout},
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

func (c *Client) query(ctx context.Context, query string, vars map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("query indexer: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("query indexer: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("indexer error: %s", envelope.Errors[0].Message)
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}

// jobRecord is the indexer's wire shape for a job snapshot.
type jobRecord struct {
	ID               string   `json:"id"`
	State            uint8    `json:"state"`
	Title            string   `json:"title"`
	ContentHash      string   `json:"contentHash"`
	ResultHash       string   `json:"resultHash"`
	Creator          string   `json:"creator"`
	Worker           string   `json:"worker"`
	Arbitrator       string   `json:"arbitrator"`
	Disputed         bool     `json:"disputed"`
	Rating           uint8    `json:"rating"`
	Amount           string   `json:"amount"`
	Token            string   `json:"token"`
	CreatedAt        int64    `json:"createdAt"`
	AssignedAt       int64    `json:"assignedAt"`
	ClosedAt         int64    `json:"closedAt"`
	WhitelistWorkers bool     `json:"whitelistWorkers"`
	AllowedWorkers   []string `json:"allowedWorkers"`
}

func (r jobRecord) toJob() *conversation.Job {
	return &conversation.Job{
		ID:          r.ID,
		State:       conversation.JobState(r.State),
		Title:       r.Title,
		ContentHash: r.ContentHash,
		ResultHash:  r.ResultHash,
		Roles: conversation.JobRoles{
			Creator:    r.Creator,
			Worker:     r.Worker,
			Arbitrator: r.Arbitrator,
		},
		Disputed:         r.Disputed,
		Rating:           r.Rating,
		Amount:           r.Amount,
		Token:            r.Token,
		CreatedAt:        r.CreatedAt,
		AssignedAt:       r.AssignedAt,
		ClosedAt:         r.ClosedAt,
		WhitelistWorkers: r.WhitelistWorkers,
		AllowedWorkers:   r.AllowedWorkers,
	}
}

// eventRecord is the indexer's wire shape for one log entry.
type eventRecord struct {
	SequenceIndex uint64 `json:"sequenceIndex"`
	Type          uint8  `json:"type"`
	Address       string `json:"address"`
	Timestamp     int64  `json:"timestamp"`
	Recipient     string `json:"recipient"`
	ContentHash   string `json:"contentHash"`
	Diffs         []struct {
		Field string `json:"field"`
		Old   string `json:"oldValue"`
		New   string `json:"newValue"`
	} `json:"diffs"`
}

func (r eventRecord) toEvent() conversation.JobEvent {
	ev := conversation.JobEvent{
		SequenceIndex: r.SequenceIndex,
		Type:          conversation.JobEventType(r.Type),
		Address:       r.Address,
		Timestamp:     r.Timestamp,
		Recipient:     r.Recipient,
		ContentHash:   r.ContentHash,
	}
	for _, d := range r.Diffs {
		ev.Diffs = append(ev.Diffs, conversation.FieldChange{Field: d.Field, Old: d.Old, New: d.New})
	}
	return ev
}

const jobQuery = `
query Job($id: ID!) {
  job(id: $id) {
    id state title contentHash resultHash creator worker arbitrator
    disputed rating amount token createdAt assignedAt closedAt
    whitelistWorkers allowedWorkers
  }
}`

// GetJob fetches the current snapshot for a job.
func (c *Client) GetJob(ctx context.Context, id string) (*conversation.Job, error) {
	var data struct {
		Job *jobRecord `json:"job"`
	}
	if err := c.query(ctx, jobQuery, map[string]interface{}{"id": id}, &data); err != nil {
		return nil, err
	}
	if data.Job == nil {
		return nil, fmt.Errorf("job %s not found", id)
	}
	return data.Job.toJob(), nil
}

const eventsQuery = `
query JobEvents($jobId: ID!, $from: Int!) {
  jobEvents(jobId: $jobId, fromSequenceIndex: $from) {
    sequenceIndex type address timestamp recipient contentHash
    diffs { field oldValue newValue }
  }
}`

// GetEvents fetches the job's events with sequence index at or above from,
// in log order.
func (c *Client) GetEvents(ctx context.Context, jobID string, from uint64) ([]conversation.JobEvent, error) {
	var data struct {
		JobEvents []eventRecord `json:"jobEvents"`
	}
	vars := map[string]interface{}{"jobId": jobID, "from": from}
	if err := c.query(ctx, eventsQuery, vars, &data); err != nil {
		return nil, err
	}
	events := make([]conversation.JobEvent, 0, len(data.JobEvents))
	for _, rec := range data.JobEvents {
		events = append(events, rec.toEvent())
	}
	return events, nil
}

const userQuery = `
query User($address: ID!) {
  user(address: $address) { address name avatarUrl bio }
}`

// GetUser fetches a display profile; a missing profile is not an error.
func (c *Client) GetUser(ctx context.Context, address string) (*conversation.User, error) {
	var data struct {
		User *struct {
			Address   string `json:"address"`
			Name      string `json:"name"`
			AvatarURL string `json:"avatarUrl"`
			Bio       string `json:"bio"`
		} `json:"user"`
	}
	if err := c.query(ctx, userQuery, map[string]interface{}{"address": address}, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, nil
	}
	return &conversation.User{
		Address:   data.User.Address,
		Name:      data.User.Name,
		AvatarURL: data.User.AvatarURL,
		Bio:       data.User.Bio,
	}, nil
}
