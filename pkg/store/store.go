package store

import "promptdeck/pkg/domain"

// Store defines persistence operations for prompt records.
// A single create or update is atomic at the record level; no cross-record
// transactions are required by callers.
type Store interface {
	CreatePrompt(p domain.Prompt) error
	GetPrompt(id string) (domain.Prompt, bool, error)
	SetThumbnail(id string, url string) error
	ListPromptsByBatch(batchID string) ([]domain.Prompt, error)
}
