package lever_tools

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/talentops/lever-mcp/internal/lever"
	"github.com/talentops/lever-mcp/internal/server"
)

func newRequest(name string, args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	}
}

func resultText(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	if result == nil || len(result.Content) == 0 {
		t.Fatal("result has no content")
	}
	text, ok := result.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", result.Content[0])
	}
	return text.Text
}

// newTestContext builds a server context with a Lever client pointed at a
// stub API server.
func newTestContext(t *testing.T, handler http.HandlerFunc) (*server.ServerContext, *httptest.Server) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	sc := server.NewServerContext(context.Background(), nil)
	t.Cleanup(func() { _ = sc.Shutdown() })

	client, err := lever.NewClient("test-key", ts.URL, ts.Client())
	if err != nil {
		t.Fatalf("failed to create lever client: %v", err)
	}
	sc.SetLeverClient(client)

	return sc, ts
}

func TestHandleGetCandidates(t *testing.T) {
	var gotQuery string
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "cand-1", "name": "Ada Lovelace", "stage": "offer"},
			},
			"hasNext": false,
		})
	})

	request := newRequest("lever_get_candidates", map[string]interface{}{
		"limit": float64(5),
		"stage": "offer",
	})

	result, err := handleGetCandidates(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	text := resultText(t, result)
	if !strings.Contains(text, "Ada Lovelace") {
		t.Errorf("result missing candidate name: %s", text)
	}
	if !strings.Contains(gotQuery, "limit=5") || !strings.Contains(gotQuery, "stage_id=offer") {
		t.Errorf("unexpected query: %s", gotQuery)
	}
}

func TestHandleGetCandidates_NoClient(t *testing.T) {
	sc := server.NewServerContext(context.Background(), nil)
	defer func() { _ = sc.Shutdown() }()

	request := newRequest("lever_get_candidates", map[string]interface{}{})

	result, err := handleGetCandidates(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result when Lever is not configured")
	}
	if !strings.Contains(resultText(t, result), "LEVER_API_KEY") {
		t.Errorf("error should mention LEVER_API_KEY: %s", resultText(t, result))
	}
}

func TestHandleGetCandidate(t *testing.T) {
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/candidates/cand-42" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "cand-42", "name": "Grace Hopper"},
		})
	})

	request := newRequest("lever_get_candidate", map[string]interface{}{
		"candidate_id": "cand-42",
	})

	result, err := handleGetCandidate(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(resultText(t, result), "Grace Hopper") {
		t.Errorf("result missing candidate: %s", resultText(t, result))
	}
}

func TestHandleGetCandidate_MissingID(t *testing.T) {
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected")
	})

	result, err := handleGetCandidate(context.Background(), newRequest("lever_get_candidate", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing candidate_id")
	}
}

func TestHandleCreateRequisition(t *testing.T) {
	var gotBody map[string]any
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/requisitions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "req-1", "name": gotBody["name"]},
		})
	})

	request := newRequest("lever_create_requisition", map[string]interface{}{
		"name":     "Senior Backend Engineer",
		"location": "Berlin",
		"team":     "Platform",
	})

	result, err := handleCreateRequisition(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}

	if gotBody["name"] != "Senior Backend Engineer" {
		t.Errorf("name not forwarded: %v", gotBody)
	}
	if gotBody["location"] != "Berlin" || gotBody["team"] != "Platform" {
		t.Errorf("optional fields not forwarded: %v", gotBody)
	}
}

func TestHandleCreateRequisition_MissingName(t *testing.T) {
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no API call expected")
	})

	result, err := handleCreateRequisition(context.Background(), newRequest("lever_create_requisition", map[string]interface{}{}), sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for missing name")
	}
}

func TestHandleListPostings(t *testing.T) {
	var gotQuery string
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/postings" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "post-1", "text": "Backend Engineer", "state": "published"},
			},
		})
	})

	request := newRequest("lever_list_postings", map[string]interface{}{
		"state": "published",
	})

	result, err := handleListPostings(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if !strings.Contains(gotQuery, "state=published") {
		t.Errorf("state filter not forwarded: %s", gotQuery)
	}
	if !strings.Contains(resultText(t, result), "Backend Engineer") {
		t.Errorf("result missing posting: %s", resultText(t, result))
	}
}

func TestHandleAddNote(t *testing.T) {
	var gotBody map[string]any
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/candidates/cand-7/notes" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"id": "note-1", "text": gotBody["value"]},
		})
	})

	request := newRequest("lever_add_note", map[string]interface{}{
		"candidate_id": "cand-7",
		"note":         "Great phone screen",
	})

	result, err := handleAddNote(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsError {
		t.Fatalf("unexpected error result: %s", resultText(t, result))
	}
	if gotBody["value"] != "Great phone screen" {
		t.Errorf("note value not forwarded: %v", gotBody)
	}
}

func TestHandleAddNote_APIError(t *testing.T) {
	sc, _ := newTestContext(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"ResourceNotFound"}`))
	})

	request := newRequest("lever_add_note", map[string]interface{}{
		"candidate_id": "missing",
		"note":         "hello",
	})

	result, err := handleAddNote(context.Background(), request, sc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsError {
		t.Fatal("expected error result for 404 response")
	}
	if !strings.Contains(resultText(t, result), "404") {
		t.Errorf("error should carry the status code: %s", resultText(t, result))
	}
}
