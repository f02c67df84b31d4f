package lever

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Lever API endpoint
const DefaultBaseURL = "https://api.lever.co/v1"

// Client is an authenticated Lever API client
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Lever client. baseURL and httpClient may be empty
// or nil to use the production endpoint and a default HTTP client.
func NewClient(apiKey, baseURL string, httpClient *http.Client) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Lever API key is required")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		apiKey:     apiKey,
		baseURL:    baseURL,
		httpClient: httpClient,
	}, nil
}

// ListCandidates lists candidates with pagination. offset is the opaque
// cursor from a previous page; stage filters by stage ID. Both may be
// empty.
func (c *Client) ListCandidates(ctx context.Context, limit int, offset, stage string) (*CandidateList, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if offset != "" {
		query.Set("offset", offset)
	}
	if stage != "" {
		query.Set("stage_id", stage)
	}

	var list CandidateList
	if err := c.do(ctx, http.MethodGet, "/candidates", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetCandidate fetches a single candidate by ID
func (c *Client) GetCandidate(ctx context.Context, candidateID string) (*Candidate, error) {
	if candidateID == "" {
		return nil, fmt.Errorf("candidate ID is required")
	}

	var wrapper struct {
		Data Candidate `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/candidates/"+url.PathEscape(candidateID), nil, nil, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Data, nil
}

// CreateRequisition creates a requisition. The request body is passed
// through to Lever unmodified so callers can set any field Lever accepts.
func (c *Client) CreateRequisition(ctx context.Context, data map[string]any) (*Requisition, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("requisition data is required")
	}

	var wrapper struct {
		Data Requisition `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/requisitions", nil, data, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Data, nil
}

// ListPostings lists job postings. state filters by posting state
// (published, internal, closed, draft); empty means all.
func (c *Client) ListPostings(ctx context.Context, limit int, offset, state string) (*PostingList, error) {
	if limit <= 0 {
		limit = 10
	}
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if offset != "" {
		query.Set("offset", offset)
	}
	if state != "" {
		query.Set("state", state)
	}

	var list PostingList
	if err := c.do(ctx, http.MethodGet, "/postings", query, nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// AddNote attaches a note to a candidate
func (c *Client) AddNote(ctx context.Context, candidateID, value string) (*Note, error) {
	if candidateID == "" {
		return nil, fmt.Errorf("candidate ID is required")
	}
	if value == "" {
		return nil, fmt.Errorf("note value is required")
	}

	var wrapper struct {
		Data Note `json:"data"`
	}
	path := "/candidates/" + url.PathEscape(candidateID) + "/notes"
	if err := c.do(ctx, http.MethodPost, path, nil, map[string]any{"value": value}, &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Data, nil
}

// do performs an authenticated request against the Lever API and
// decodes the JSON response into out. Non-2xx responses become an
// *APIError carrying the upstream status and body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	// API key as username, empty password
	req.SetBasicAuth(c.apiKey, "")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("lever API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode Lever response: %w", err)
		}
	}
	return nil
}
