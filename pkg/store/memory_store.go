package store

import (
	"fmt"
	"sync"
	"time"

	"promptdeck/pkg/domain"
)

// MemoryStore keeps prompt records in-process. It backs tests and local
// development; production uses GormStore.
type MemoryStore struct {
	mu      sync.RWMutex
	prompts map[string]domain.Prompt
	order   []string
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		prompts: make(map[string]domain.Prompt),
	}
}

// CreatePrompt stores a new prompt record and tracks insertion order.
func (m *MemoryStore) CreatePrompt(p domain.Prompt) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.prompts[p.ID]; exists {
		return fmt.Errorf("prompt %s already exists", p.ID)
	}
	m.order = append(m.order, p.ID)
	m.prompts[p.ID] = p
	return nil
}

// GetPrompt returns one prompt by ID.
func (m *MemoryStore) GetPrompt(id string) (domain.Prompt, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.prompts[id]
	return p, ok, nil
}

// SetThumbnail attaches a thumbnail URL and bumps the update time.
func (m *MemoryStore) SetThumbnail(id string, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prompts[id]
	if !ok {
		return fmt.Errorf("prompt %s not found", id)
	}
	p.ThumbnailURL = url
	p.UpdatedAt = time.Now().UTC()
	m.prompts[id] = p
	return nil
}

// ListPromptsByBatch returns prompts created under one batch in insertion order.
func (m *MemoryStore) ListPromptsByBatch(batchID string) ([]domain.Prompt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Prompt, 0, len(m.order))
	for _, id := range m.order {
		if p, ok := m.prompts[id]; ok && p.BatchID == batchID {
			res = append(res, p)
		}
	}
	return res, nil
}

// Len reports the number of stored prompts.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.prompts)
}
