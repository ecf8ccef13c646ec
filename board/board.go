// Package board defines the collected item model and the per-board extraction
// capability. Each supported job board contributes an Extractor that turns raw
// listing HTML into Items and raw detail HTML into a Detail; the rest of the
// engine never inspects board-specific page shape.
package board

import (
	"time"
)

// Status tracks an item's enrichment lifecycle.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusEnriched   Status = "enriched"
	StatusFailed     Status = "failed"
	StatusSkipped    Status = "skipped"
)

// Item is a single collected job posting.
type Item struct {
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Location    string    `json:"location"`
	Link        string    `json:"link"`
	Description string    `json:"description,omitempty"`
	Salary      string    `json:"salary,omitempty"`
	JobType     string    `json:"job_type,omitempty"`
	Source      string    `json:"source"`
	NaturalKey  string    `json:"external_id,omitempty"`
	DatePosted  string    `json:"date_posted,omitempty"`
	CollectedAt time.Time `json:"collected_at"`
	Status      Status    `json:"status"`

	// Filled by the external scoring collaborator, never by the engine.
	AIScore     int    `json:"ai_score,omitempty"`
	AIReasoning string `json:"ai_reasoning,omitempty"`
}

// Detail is the secondary payload fetched during enrichment.
type Detail struct {
	Salary      string `json:"salary,omitempty"`
	JobType     string `json:"job_type,omitempty"`
	Description string `json:"description,omitempty"` // markdown
}

// ApplyDetail merges enrichment detail into the item. Listing-page values
// win only when the detail page had nothing.
func (it *Item) ApplyDetail(d *Detail) {
	if d == nil {
		return
	}
	if d.Salary != "" {
		it.Salary = d.Salary
	}
	if d.JobType != "" {
		it.JobType = d.JobType
	}
	if d.Description != "" {
		it.Description = d.Description
	}
}

// Query describes one search against one board.
type Query struct {
	Keyword    string `json:"keyword"`
	Location   string `json:"location"`
	MaxResults int    `json:"max_results"`
	Board      string `json:"board"`
}

// Extractor turns board-specific raw pages into the shared model.
type Extractor interface {
	// Board returns the source identifier this extractor handles.
	Board() string
	// Extract parses a search results page into items.
	Extract(raw []byte) ([]Item, error)
	// ExtractDetail parses a posting detail page.
	ExtractDetail(raw []byte) (*Detail, error)
}
