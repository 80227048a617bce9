package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// RelaySubmitter forwards message and dispute submissions to the wallet
// relay, which signs and broadcasts the contract transaction. The backend
// never holds signing keys.
type RelaySubmitter struct {
	baseURL string
	client  *http.Client
}

// NewRelaySubmitter creates a submitter against the relay at baseURL.
func NewRelaySubmitter(baseURL string, timeout time.Duration) *RelaySubmitter {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RelaySubmitter{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// SubmitMessage relays a message event submission.
func (s *RelaySubmitter) SubmitMessage(ctx context.Context, jobID, sender, recipient, contentHash string) error {
	return s.post(ctx, "/v1/message", map[string]string{
		"job_id":       jobID,
		"sender":       sender,
		"recipient":    recipient,
		"content_hash": contentHash,
	})
}

// SubmitDispute relays a dispute event submission.
func (s *RelaySubmitter) SubmitDispute(ctx context.Context, jobID, initiator, contentHash string) error {
	return s.post(ctx, "/v1/dispute", map[string]string{
		"job_id":       jobID,
		"initiator":    initiator,
		"content_hash": contentHash,
	})
}

func (s *RelaySubmitter) post(ctx context.Context, path string, payload map[string]string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode relay payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("relay %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("relay %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}
