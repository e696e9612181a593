package domain

import "time"

// Passage is one retrieved document fragment with its citation.
type Passage struct {
	Text    string  `json:"text"`
	Source  string  `json:"source"`
	Locator string  `json:"locator,omitempty"`
	Score   float64 `json:"score,omitempty"`
}

// Row is a single record returned by the structured-data backend.
type Row map[string]any

// WebResult is one web search hit.
type WebResult struct {
	Title     string    `json:"title"`
	Snippet   string    `json:"snippet"`
	URL       string    `json:"url"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// BackendResult is a tagged union keyed by Route. Exactly one of the payload
// fields is populated, matching the committed route. Written only by the
// dispatcher.
type BackendResult struct {
	Route Route `json:"route"`

	Passages   []Passage   `json:"passages,omitempty"`
	Rows       []Row       `json:"rows,omitempty"`
	Columns    []string    `json:"columns,omitempty"`
	WebResults []WebResult `json:"web_results,omitempty"`
}

// Empty reports whether the result carries no payload at all. An empty
// result is valid (e.g. a retrieval query with no matches) and is not an
// error.
func (r *BackendResult) Empty() bool {
	if r == nil {
		return true
	}
	return len(r.Passages) == 0 && len(r.Rows) == 0 && len(r.WebResults) == 0
}

// Clone returns a deep copy of the result.
func (r *BackendResult) Clone() *BackendResult {
	if r == nil {
		return nil
	}
	next := *r
	next.Passages = append([]Passage(nil), r.Passages...)
	next.Columns = append([]string(nil), r.Columns...)
	next.WebResults = append([]WebResult(nil), r.WebResults...)
	if r.Rows != nil {
		next.Rows = make([]Row, len(r.Rows))
		for i, row := range r.Rows {
			cp := make(Row, len(row))
			for k, v := range row {
				cp[k] = v
			}
			next.Rows[i] = cp
		}
	}
	return &next
}

// HandoffRecord is the fallback payload produced when no backend answer is
// available. It carries everything a human operator needs to pick up the
// conversation.
type HandoffRecord struct {
	Reason    string       `json:"reason"`
	Rationale string       `json:"rationale,omitempty"`
	History   []Message    `json:"history"`
	Trail     []TrailEntry `json:"trail"`
	CreatedAt time.Time    `json:"created_at"`
}

// Clone returns a deep copy of the record.
func (h *HandoffRecord) Clone() *HandoffRecord {
	if h == nil {
		return nil
	}
	next := *h
	next.History = append([]Message(nil), h.History...)
	next.Trail = append([]TrailEntry(nil), h.Trail...)
	return &next
}
