package lever_tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/talentops/lever-mcp/internal/server"
	"github.com/talentops/lever-mcp/internal/tools/common"
)

// RegisterLeverTools registers all Lever recruiting tools with the MCP server
func RegisterLeverTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	// List candidates tool
	getCandidatesTool := mcp.NewTool("lever_get_candidates",
		mcp.WithDescription("List candidates from Lever, optionally filtered by pipeline stage"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of candidates to return (default: 10)"),
		),
		mcp.WithString("offset",
			mcp.Description("Pagination offset token from a previous response"),
		),
		mcp.WithString("stage",
			mcp.Description("Filter by pipeline stage ID (e.g., 'lead-new', 'offer')"),
		),
	)

	s.AddTool(getCandidatesTool, common.InstrumentedToolHandlerWithService(
		"lever_get_candidates", "lever", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCandidates(ctx, request, sc)
		}))

	// Get candidate tool
	getCandidateTool := mcp.NewTool("lever_get_candidate",
		mcp.WithDescription("Get detailed information about a specific candidate"),
		mcp.WithString("candidate_id",
			mcp.Required(),
			mcp.Description("The Lever candidate ID"),
		),
	)

	s.AddTool(getCandidateTool, common.InstrumentedToolHandlerWithService(
		"lever_get_candidate", "lever", "get", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleGetCandidate(ctx, request, sc)
		}))

	// Create requisition tool
	createRequisitionTool := mcp.NewTool("lever_create_requisition",
		mcp.WithDescription("Create a new job requisition in Lever"),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Requisition name (e.g., 'Senior Backend Engineer')"),
		),
		mcp.WithString("location",
			mcp.Description("Location for the requisition"),
		),
		mcp.WithString("team",
			mcp.Description("Team the requisition belongs to"),
		),
	)

	s.AddTool(createRequisitionTool, common.InstrumentedToolHandlerWithService(
		"lever_create_requisition", "lever", "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleCreateRequisition(ctx, request, sc)
		}))

	// List postings tool
	listPostingsTool := mcp.NewTool("lever_list_postings",
		mcp.WithDescription("List job postings from Lever"),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of postings to return (default: 10)"),
		),
		mcp.WithString("offset",
			mcp.Description("Pagination offset token from a previous response"),
		),
		mcp.WithString("state",
			mcp.Description("Filter by posting state (e.g., 'published', 'closed', 'draft')"),
		),
	)

	s.AddTool(listPostingsTool, common.InstrumentedToolHandlerWithService(
		"lever_list_postings", "lever", "list", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleListPostings(ctx, request, sc)
		}))

	// Add note tool
	addNoteTool := mcp.NewTool("lever_add_note",
		mcp.WithDescription("Add a note to a candidate's profile in Lever"),
		mcp.WithString("candidate_id",
			mcp.Required(),
			mcp.Description("The Lever candidate ID"),
		),
		mcp.WithString("note",
			mcp.Required(),
			mcp.Description("The note text to add"),
		),
	)

	s.AddTool(addNoteTool, common.InstrumentedToolHandlerWithService(
		"lever_add_note", "lever", "create", sc,
		func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return handleAddNote(ctx, request, sc)
		}))

	return nil
}

func handleGetCandidates(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	limit := 0
	if limitVal, ok := args["limit"].(float64); ok {
		limit = int(limitVal)
	}

	offset := ""
	if offsetVal, ok := args["offset"].(string); ok {
		offset = offsetVal
	}

	stage := ""
	if stageVal, ok := args["stage"].(string); ok {
		stage = stageVal
	}

	client, err := sc.LeverClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	candidates, err := client.ListCandidates(ctx, limit, offset, stage)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list candidates: %v", err)), nil
	}

	return jsonResult(candidates)
}

func handleGetCandidate(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	candidateID, ok := args["candidate_id"].(string)
	if !ok || candidateID == "" {
		return mcp.NewToolResultError("candidate_id is required"), nil
	}

	client, err := sc.LeverClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	candidate, err := client.GetCandidate(ctx, candidateID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to get candidate %s: %v", candidateID, err)), nil
	}

	return jsonResult(candidate)
}

func handleCreateRequisition(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	name, ok := args["name"].(string)
	if !ok || name == "" {
		return mcp.NewToolResultError("name is required"), nil
	}

	data := map[string]any{
		"name": name,
	}
	if location, ok := args["location"].(string); ok && location != "" {
		data["location"] = location
	}
	if team, ok := args["team"].(string); ok && team != "" {
		data["team"] = team
	}

	client, err := sc.LeverClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	requisition, err := client.CreateRequisition(ctx, data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to create requisition: %v", err)), nil
	}

	return jsonResult(requisition)
}

func handleListPostings(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	limit := 0
	if limitVal, ok := args["limit"].(float64); ok {
		limit = int(limitVal)
	}

	offset := ""
	if offsetVal, ok := args["offset"].(string); ok {
		offset = offsetVal
	}

	state := ""
	if stateVal, ok := args["state"].(string); ok {
		state = stateVal
	}

	client, err := sc.LeverClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	postings, err := client.ListPostings(ctx, limit, offset, state)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list postings: %v", err)), nil
	}

	return jsonResult(postings)
}

func handleAddNote(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	candidateID, ok := args["candidate_id"].(string)
	if !ok || candidateID == "" {
		return mcp.NewToolResultError("candidate_id is required"), nil
	}

	note, ok := args["note"].(string)
	if !ok || note == "" {
		return mcp.NewToolResultError("note is required"), nil
	}

	client, err := sc.LeverClient()
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	created, err := client.AddNote(ctx, candidateID, note)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add note to candidate %s: %v", candidateID, err)), nil
	}

	return jsonResult(created)
}

// jsonResult marshals a value as indented JSON for the tool response
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
