package domain

import "time"

type UserRole string

const (
	RoleUser  UserRole = "user"
	RoleAdmin UserRole = "admin"
)

// LaunchCounters tracks per-channel launch counts for a prompt.
type LaunchCounters struct {
	ChatGPT int `json:"chatgpt"`
	Claude  int `json:"claude"`
	Gemini  int `json:"gemini"`
	Grok    int `json:"grok"`
}

// Sum returns the total across all launch channels.
func (c LaunchCounters) Sum() int {
	return c.ChatGPT + c.Claude + c.Gemini + c.Grok
}

// PromptInput is one caller-supplied item of a bulk submission.
// Seed counters are optional; negative values are treated as absent.
type PromptInput struct {
	Title    string         `json:"title"`
	Content  string         `json:"content"`
	Category string         `json:"category"`
	Slug     string         `json:"slug,omitempty"`
	Views    int            `json:"views,omitempty"`
	Likes    int            `json:"likes,omitempty"`
	Copies   int            `json:"copies,omitempty"`
	Launches LaunchCounters `json:"launches,omitempty"`
	Public   *bool          `json:"public,omitempty"`
}

// Prompt is the persisted record created for each ingested item.
// TotalLaunch is always derived as Launches.Sum() + Copies at creation time.
type Prompt struct {
	ID           string         `json:"id"`
	AuthorID     string         `json:"authorId"`
	BatchID      string         `json:"batchId,omitempty"`
	Title        string         `json:"title"`
	Content      string         `json:"content"`
	Category     string         `json:"category"`
	Slug         string         `json:"slug,omitempty"`
	ThumbnailURL string         `json:"thumbnailUrl,omitempty"`
	Views        int            `json:"views"`
	Likes        int            `json:"likes"`
	Copies       int            `json:"copies"`
	Launches     LaunchCounters `json:"launches"`
	TotalLaunch  int            `json:"totalLaunch"`
	Public       bool           `json:"public"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// IngestionOutcome records the result for one item of a batch.
// Exactly one of PromptID and Error is set.
type IngestionOutcome struct {
	PromptID string `json:"promptId"`
	Title    string `json:"title"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
}

// BatchSummary aggregates a completed batch run.
type BatchSummary struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
}

// Summarize recomputes the aggregate counts from a ledger.
func Summarize(results []IngestionOutcome) BatchSummary {
	s := BatchSummary{Total: len(results)}
	for _, r := range results {
		if r.Error != "" {
			s.Failed++
		} else {
			s.Success++
		}
	}
	return s
}
