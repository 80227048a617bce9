package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"openwork-backend/core/conversation"
	storage "openwork-backend/storage/conversation"
)

// MCPServer exposes the conversation store to AI agents as read-only tools.
// Session keys never pass through here, so message bodies stay sealed; agents
// see the event log shape and job lifecycle, never plaintext.
type MCPServer struct {
	mcpServer *server.MCPServer
	store     storage.Store
}

// NewMCPServer creates a new MCP server using the mcp-go library
func NewMCPServer(store storage.Store) *MCPServer {
	mcpServer := server.NewMCPServer(
		"OpenWork Conversation MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	s := &MCPServer{
		mcpServer: mcpServer,
		store:     store,
	}

	s.registerTools()

	return s
}

// GetMCPServer returns the underlying MCP server for transport setup
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *MCPServer) registerTools() {
	s.registerListJobsTool()
	s.registerGetJobTool()
	s.registerGetJobStatusTool()
	s.registerGetThreadTool()
	s.registerListEventsTool()
	s.registerGetUserTool()
}

func toolJSON(label string, v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%s:\n\n%s", label, data)), nil
}

// registerListJobsTool creates a tool for listing jobs
func (s *MCPServer) registerListJobsTool() {
	tool := mcp.NewTool("list_jobs",
		mcp.WithDescription("List jobs with optional filtering by lifecycle state, creator or worker"),
		mcp.WithString("state", mcp.Description("Filter by state: open, taken or closed")),
		mcp.WithString("creator", mcp.Description("Filter by creator address")),
		mcp.WithString("worker", mcp.Description("Filter by assigned worker address")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of jobs to return")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()

		filter := storage.JobFilter{}
		if raw, ok := args["state"].(string); ok && raw != "" {
			state, err := parseJobState(raw)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			filter.State = &state
		}
		if creator, ok := args["creator"].(string); ok {
			filter.Creator = creator
		}
		if worker, ok := args["worker"].(string); ok {
			filter.Worker = worker
		}
		if limit, ok := args["limit"].(float64); ok && limit > 0 {
			filter.Limit = int(limit)
		}

		jobs, err := s.store.ListJobs(ctx, filter)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list jobs: %v", err)), nil
		}

		result := map[string]interface{}{
			"jobs":        jobs,
			"total_count": len(jobs),
		}
		return toolJSON(fmt.Sprintf("Found %d jobs", len(jobs)), result)
	})
}

// registerGetJobTool creates a tool for fetching one job snapshot
func (s *MCPServer) registerGetJobTool() {
	tool := mcp.NewTool("get_job",
		mcp.WithDescription("Get the current snapshot of a job by ID"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job identifier")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get job: %v", err)), nil
		}
		return toolJSON("Job details", job)
	})
}

// registerGetJobStatusTool creates a tool for resolving the display status
func (s *MCPServer) registerGetJobStatusTool() {
	tool := mcp.NewTool("get_job_status",
		mcp.WithDescription("Resolve the single display status of a job from its snapshot and event log"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job identifier")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get job: %v", err)), nil
		}
		events, err := s.store.ListEvents(ctx, jobID, 0)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}

		status := conversation.ResolveStatus(&job, events)
		result := map[string]interface{}{
			"job_id":      jobID,
			"status":      status.String(),
			"state":       job.State.String(),
			"disputed":    job.Disputed,
			"event_count": len(events),
		}
		return toolJSON("Job status", result)
	})
}

// registerGetThreadTool creates a tool for reading one partitioned thread
func (s *MCPServer) registerGetThreadTool() {
	tool := mcp.NewTool("get_thread",
		mcp.WithDescription("Get the conversation thread between the job creator and one counterparty. Message bodies stay encrypted."),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job identifier")),
		mcp.WithString("focus", mcp.Description("Counterparty address; defaults to the assigned worker")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		focus := ""
		if raw, ok := request.GetArguments()["focus"].(string); ok {
			focus = raw
		}

		job, err := s.store.GetJob(ctx, jobID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get job: %v", err)), nil
		}
		events, err := s.store.ListEvents(ctx, jobID, 0)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}
		if focus == "" {
			focus = job.Roles.Worker
		}

		thread := conversation.PartitionThread(events, &job, focus, "")
		result := map[string]interface{}{
			"job_id":      jobID,
			"focus":       focus,
			"events":      thread,
			"total_count": len(thread),
		}
		return toolJSON(fmt.Sprintf("Thread with %s (%d events)", focus, len(thread)), result)
	})
}

// registerListEventsTool creates a tool for reading the raw event log
func (s *MCPServer) registerListEventsTool() {
	tool := mcp.NewTool("list_events",
		mcp.WithDescription("List the raw append-only event log of a job in sequence order"),
		mcp.WithString("job_id", mcp.Required(), mcp.Description("Job identifier")),
		mcp.WithNumber("from", mcp.Description("Lowest sequence index to include")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		from := uint64(0)
		if raw, ok := request.GetArguments()["from"].(float64); ok && raw > 0 {
			from = uint64(raw)
		}

		events, err := s.store.ListEvents(ctx, jobID, from)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to list events: %v", err)), nil
		}

		result := map[string]interface{}{
			"job_id":      jobID,
			"events":      events,
			"total_count": len(events),
		}
		return toolJSON(fmt.Sprintf("Found %d events", len(events)), result)
	})
}

// registerGetUserTool creates a tool for reading display profiles
func (s *MCPServer) registerGetUserTool() {
	tool := mcp.NewTool("get_user",
		mcp.WithDescription("Get the display profile for an address"),
		mcp.WithString("address", mcp.Required(), mcp.Description("Account address")),
	)

	s.mcpServer.AddTool(tool, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		address, err := request.RequireString("address")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		user, err := s.store.GetUser(ctx, address)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Failed to get user: %v", err)), nil
		}
		return toolJSON("User profile", user)
	})
}

func parseJobState(raw string) (conversation.JobState, error) {
	switch raw {
	case "open":
		return conversation.JobStateOpen, nil
	case "taken":
		return conversation.JobStateTaken, nil
	case "closed":
		return conversation.JobStateClosed, nil
	}
	if n, err := strconv.ParseUint(raw, 10, 8); err == nil && n <= uint64(conversation.JobStateClosed) {
		return conversation.JobState(n), nil
	}
	return 0, fmt.Errorf("unknown state %q, expected open, taken or closed", raw)
}
