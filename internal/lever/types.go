package lever

import "fmt"

// Candidate is a Lever candidate (opportunity) record. Lever returns
// more fields than listed here; unknown fields are ignored.
type Candidate struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Headline  string   `json:"headline,omitempty"`
	Stage     string   `json:"stage,omitempty"`
	Location  string   `json:"location,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	Phones    []Phone  `json:"phones,omitempty"`
	Tags      []string `json:"tags,omitempty"`
	Origin    string   `json:"origin,omitempty"`
	CreatedAt int64    `json:"createdAt,omitempty"`
}

// Phone is a phone number entry on a candidate
type Phone struct {
	Type  string `json:"type,omitempty"`
	Value string `json:"value"`
}

// CandidateList is a paginated candidate listing
type CandidateList struct {
	Data    []Candidate `json:"data"`
	HasNext bool        `json:"hasNext"`
	Next    string      `json:"next,omitempty"`
}

// Requisition is a Lever requisition record
type Requisition struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	RequisitionCode string `json:"requisitionCode,omitempty"`
	Status          string `json:"status,omitempty"`
	Location        string `json:"location,omitempty"`
	Team            string `json:"team,omitempty"`
	CreatedAt       int64  `json:"createdAt,omitempty"`
}

// Posting is a Lever job posting record
type Posting struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	State     string            `json:"state,omitempty"`
	Location  string            `json:"location,omitempty"`
	Team      string            `json:"team,omitempty"`
	Tags      []string          `json:"tags,omitempty"`
	URLs      map[string]string `json:"urls,omitempty"`
	CreatedAt int64             `json:"createdAt,omitempty"`
}

// PostingList is a paginated posting listing
type PostingList struct {
	Data    []Posting `json:"data"`
	HasNext bool      `json:"hasNext"`
	Next    string    `json:"next,omitempty"`
}

// Note is a note attached to a candidate
type Note struct {
	ID        string `json:"id"`
	Value     string `json:"value"`
	CreatedAt int64  `json:"createdAt,omitempty"`
}

/// APIError carries an upstream Lever failure unchanged: the original
// status code and response body, no wrapping, no retry.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("lever API returned status %d: %s", e.StatusCode, e.Body)
}
