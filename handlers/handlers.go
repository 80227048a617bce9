package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"openwork-backend/core/conversation"
	"openwork-backend/models"
	"openwork-backend/services"
	storage "openwork-backend/storage/conversation"
)

// BaseHandler provides common functionality for all handlers
type BaseHandler struct{}

// NewBaseHandler creates a new base handler
func NewBaseHandler() *BaseHandler {
	return &BaseHandler{}
}

// sendJSON sends a JSON response
func (h *BaseHandler) sendJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// sendError sends an error response
func (h *BaseHandler) sendError(w http.ResponseWriter, statusCode int, message string) {
	errorResp := models.NewErrorResponse(message, statusCode)
	h.sendJSON(w, statusCode, errorResp)
}

// sendSuccess sends a success response
func (h *BaseHandler) sendSuccess(w http.ResponseWriter, data interface{}) {
	successResp := models.NewSuccessResponse(data)
	h.sendJSON(w, http.StatusOK, successResp)
}

// parseJSON parses JSON from request
func (h *BaseHandler) parseJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// storeStatus maps storage errors to HTTP status codes.
func storeStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrJobNotFound), errors.Is(err, storage.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, conversation.ErrSessionKeyMissing):
		return http.StatusPreconditionFailed
	default:
		return http.StatusInternalServerError
	}
}

// HealthHandler handles health check requests
type HealthHandler struct {
	*BaseHandler
}

// NewHealthHandler creates a new health handler
func NewHealthHandler() *HealthHandler {
	return &HealthHandler{BaseHandler: NewBaseHandler()}
}

// HandleHealth handles health check requests
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	h.sendSuccess(w, &models.HealthResponse{
		Status:    "healthy",
		Message:   "Conversation backend is running",
		Timestamp: time.Now().Unix(),
	})
}

// JobHandler handles job and conversation requests
type JobHandler struct {
	*BaseHandler
	conversations *services.ConversationService
}

// NewJobHandler creates a new job handler
func NewJobHandler(conversations *services.ConversationService) *JobHandler {
	return &JobHandler{
		BaseHandler:   NewBaseHandler(),
		conversations: conversations,
	}
}

// HandleJobs handles listing jobs with optional filters
func (h *JobHandler) HandleJobs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	filter := storage.JobFilter{
		Creator: r.URL.Query().Get("creator"),
		Worker:  r.URL.Query().Get("worker"),
	}
	if raw := r.URL.Query().Get("state"); raw != "" {
		n, err := strconv.ParseUint(raw, 10, 8)
		if err != nil {
			h.sendError(w, http.StatusBadRequest, "Invalid state filter")
			return
		}
		state := conversation.JobState(n)
		filter.State = &state
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			h.sendError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		filter.Limit = n
	}

	jobs, err := h.conversations.ListJobs(r.Context(), filter)
	if err != nil {
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	h.sendSuccess(w, &models.JobListResponse{Jobs: jobs, Total: len(jobs)})
}

// HandleJob routes /api/jobs/{id}[/thread|/messages|/dispute].
func (h *JobHandler) HandleJob(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	jobID, sub, _ := strings.Cut(rest, "/")
	if jobID == "" {
		h.sendError(w, http.StatusBadRequest, "Missing job id")
		return
	}

	switch sub {
	case "":
		h.handleJobStatus(w, r, jobID)
	case "thread":
		h.handleThread(w, r, jobID)
	case "messages":
		h.handlePostMessage(w, r, jobID)
	case "dispute":
		h.handleRaiseDispute(w, r, jobID)
	default:
		h.sendError(w, http.StatusNotFound, "Unknown resource")
	}
}

func (h *JobHandler) handleJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	job, status, err := h.conversations.JobWithStatus(r.Context(), jobID)
	if err != nil {
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	h.sendSuccess(w, &models.JobStatusResponse{Job: job, Status: status.String()})
}

func (h *JobHandler) handleThread(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	focused := r.URL.Query().Get("focus")
	viewer := r.URL.Query().Get("viewer")

	thread, job, status, err := h.conversations.Thread(r.Context(), jobID, focused, viewer)
	if err != nil {
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	if focused == "" && job != nil {
		focused = job.Roles.Worker
	}
	h.sendSuccess(w, &models.ThreadResponse{
		JobID:   jobID,
		Status:  status.String(),
		Focused: focused,
		Viewer:  viewer,
		Events:  thread,
		Total:   len(thread),
	})
}

func (h *JobHandler) handlePostMessage(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.PostMessageRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Sender == "" || req.Recipient == "" || req.Body == "" {
		h.sendError(w, http.StatusBadRequest, "sender, recipient and body are required")
		return
	}

	hash, err := h.conversations.PostMessage(r.Context(), jobID, req.Sender, req.Recipient, []byte(req.Body))
	if err != nil {
		if errors.Is(err, conversation.ErrSessionKeyMissing) {
			resp := models.NewErrorResponseWithHint(err.Error(), http.StatusPreconditionFailed,
				"Establish a session key with the recipient before messaging")
			h.sendJSON(w, http.StatusPreconditionFailed, resp)
			return
		}
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	h.sendSuccess(w, &models.PostMessageResponse{JobID: jobID, ContentHash: hash})
}

func (h *JobHandler) handleRaiseDispute(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.RaiseDisputeRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.Initiator == "" || req.Reason == "" {
		h.sendError(w, http.StatusBadRequest, "initiator and reason are required")
		return
	}

	hash, err := h.conversations.RaiseDispute(r.Context(), jobID, req.Initiator, []byte(req.Reason))
	if err != nil {
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	h.sendSuccess(w, &models.RaiseDisputeResponse{JobID: jobID, ContentHash: hash})
}

// UserHandler handles display profile lookups
type UserHandler struct {
	*BaseHandler
	store storage.Store
}

// NewUserHandler creates a new user handler
func NewUserHandler(store storage.Store) *UserHandler {
	return &UserHandler{
		BaseHandler: NewBaseHandler(),
		store:       store,
	}
}

// HandleUser handles /api/users/{address}
func (h *UserHandler) HandleUser(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	address := strings.TrimPrefix(r.URL.Path, "/api/users/")
	if address == "" || strings.Contains(address, "/") {
		h.sendError(w, http.StatusBadRequest, "Missing address")
		return
	}

	user, err := h.store.GetUser(r.Context(), address)
	if err != nil {
		h.sendError(w, storeStatus(err), err.Error())
		return
	}
	h.sendSuccess(w, &models.UserResponse{User: user})
}

// QRCodeHandler handles QR code requests
type QRCodeHandler struct {
	*BaseHandler
	qrService *services.QRCodeService
}

// NewQRCodeHandler creates a new QR code handler
func NewQRCodeHandler(qrService *services.QRCodeService) *QRCodeHandler {
	return &QRCodeHandler{
		BaseHandler: NewBaseHandler(),
		qrService:   qrService,
	}
}

// HandleQRCode generates a payment or job-link QR code as PNG.
func (h *QRCodeHandler) HandleQRCode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.sendError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req models.QRCodeRequest
	if err := h.parseJSON(r, &req); err != nil {
		h.sendError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	var png []byte
	var err error
	switch {
	case req.JobID != "":
		png, err = h.qrService.GenerateJobLinkQR(req.JobID)
	case req.Address != "":
		png, err = h.qrService.GeneratePaymentQR(req.Address, req.Amount)
	default:
		h.sendError(w, http.StatusBadRequest, "address or job_id is required")
		return
	}
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
