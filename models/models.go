package models

import (
	"time"

	"openwork-backend/core/conversation"
)

// HealthResponse represents health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string `json:"error"`
	Message   string `json:"message,omitempty"`
	Code      int    `json:"code,omitempty"`
	Hint      string `json:"hint,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// JobStatusResponse carries a job snapshot with its derived display status.
type JobStatusResponse struct {
	Job    conversation.Job `json:"job"`
	Status string           `json:"status"`
}

// JobListResponse represents a page of jobs
type JobListResponse struct {
	Jobs  []conversation.Job `json:"jobs"`
	Total int                `json:"total"`
}

// ThreadResponse carries one partitioned conversation thread.
type ThreadResponse struct {
	JobID   string                  `json:"job_id"`
	Status  string                  `json:"status"`
	Focused string                  `json:"focused"`
	Viewer  string                  `json:"viewer,omitempty"`
	Events  []conversation.JobEvent `json:"events"`
	Total   int                     `json:"total"`
}

// PostMessageRequest represents a message submission
type PostMessageRequest struct {
	Sender    string `json:"sender"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
}

// PostMessageResponse returns the pinned content hash of a sent message.
type PostMessageResponse struct {
	JobID       string `json:"job_id"`
	ContentHash string `json:"content_hash"`
}

// RaiseDisputeRequest represents a dispute submission
type RaiseDisputeRequest struct {
	Initiator string `json:"initiator"`
	Reason    string `json:"reason"`
}

// RaiseDisputeResponse returns the pinned envelope hash of a raised dispute.
type RaiseDisputeResponse struct {
	JobID       string `json:"job_id"`
	ContentHash string `json:"content_hash"`
}

// QRCodeRequest represents QR code generation request
type QRCodeRequest struct {
	Address string `json:"address,omitempty"`
	Amount  string `json:"amount,omitempty"`
	JobID   string `json:"job_id,omitempty"`
}

// UserResponse represents a display profile
type UserResponse struct {
	User conversation.User `json:"user"`
}

// APIResponse represents a generic API response
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(error string, code int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     error,
			Message:   error,
			Code:      code,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithHint creates an error response with a hint.
func NewErrorResponseWithHint(error string, code int, hint string) *APIResponse {
	resp := NewErrorResponse(error, code)
	if resp != nil && resp.Error != nil {
		resp.Error.Hint = hint
	}
	return resp
}

// NewSuccessResponseWithMeta creates a success response with metadata
func NewSuccessResponseWithMeta(data interface{}, meta map[string]interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
		Meta:    meta,
	}
}
