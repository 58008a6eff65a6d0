package app

import (
	"errors"
	"strings"

	"promptdeck/pkg/domain"
)

// buildPrompt validates and normalizes one submitted item into a persistable
// record. Title, content and category are required after trimming; category
// is lowercased; negative seed counters are treated as zero. TotalLaunch is
// derived from the per-channel launch counters plus copies and never taken
// from the input.
func (a *App) buildPrompt(actorID, batchID string, in domain.PromptInput) (domain.Prompt, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return domain.Prompt{}, errors.New("title is required")
	}
	content := strings.TrimSpace(in.Content)
	if content == "" {
		return domain.Prompt{}, errors.New("content is required")
	}
	category := strings.ToLower(strings.TrimSpace(in.Category))
	if category == "" {
		return domain.Prompt{}, errors.New("category is required")
	}

	launches := domain.LaunchCounters{
		ChatGPT: clampSeed(in.Launches.ChatGPT),
		Claude:  clampSeed(in.Launches.Claude),
		Gemini:  clampSeed(in.Launches.Gemini),
		Grok:    clampSeed(in.Launches.Grok),
	}
	copies := clampSeed(in.Copies)

	public := true
	if in.Public != nil {
		public = *in.Public
	}

	now := a.now().UTC()
	return domain.Prompt{
		ID:          a.newID(),
		AuthorID:    actorID,
		BatchID:     batchID,
		Title:       title,
		Content:     content,
		Category:    category,
		Slug:        strings.TrimSpace(in.Slug),
		Views:       clampSeed(in.Views),
		Likes:       clampSeed(in.Likes),
		Copies:      copies,
		Launches:    launches,
		TotalLaunch: launches.Sum() + copies,
		Public:      public,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func clampSeed(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
