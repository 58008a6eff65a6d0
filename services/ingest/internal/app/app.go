package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"promptdeck/internal/util"
	"promptdeck/pkg/ai"
	"promptdeck/pkg/batchlog"
	"promptdeck/pkg/domain"
	"promptdeck/pkg/storage"
	"promptdeck/pkg/store"
)

const (
	// DefaultMaxBatchSize caps the number of items per submission.
	DefaultMaxBatchSize = 100
	// DefaultPacingDelay is the wait between items when auto-thumbnail is on,
	// keeping sequential generation calls under upstream quota.
	DefaultPacingDelay = 5 * time.Second
)

// Identity is the authenticated caller as seen by the application. The
// surrounding account system issues it; this service never mints identities.
type Identity struct {
	ID   string
	Role domain.UserRole
}

// Authorizer decides whether an actor may manage a prompt record.
type Authorizer interface {
	CanManagePrompt(ctx context.Context, actor Identity, p domain.Prompt) (bool, error)
}

// AuthorizerFunc adapts a function to the Authorizer interface.
type AuthorizerFunc func(ctx context.Context, actor Identity, p domain.Prompt) (bool, error)

func (f AuthorizerFunc) CanManagePrompt(ctx context.Context, actor Identity, p domain.Prompt) (bool, error) {
	return f(ctx, actor, p)
}

// DefaultAuthorizer allows the record's author and any admin.
func DefaultAuthorizer() Authorizer {
	return AuthorizerFunc(func(_ context.Context, actor Identity, p domain.Prompt) (bool, error) {
		return actor.Role == domain.RoleAdmin || (actor.ID != "" && actor.ID == p.AuthorID), nil
	})
}

// BatchLog records batch run lifecycle events. Implementations must be safe
// for best-effort use: ingestion never fails because the log is unavailable.
type BatchLog interface {
	Begin(ctx context.Context, batchID, actorID string, total int) error
	Complete(ctx context.Context, batchID string, success, failed int) error
	Get(ctx context.Context, batchID string) (batchlog.BatchRecord, bool, error)
}

// Config wires the ingestion application.
type Config struct {
	Store      store.Store
	Generator  ai.ImageGenerator
	Publisher  *storage.Publisher
	BatchLog   BatchLog
	Authorizer Authorizer

	MaxBatchSize int
	PacingDelay  time.Duration
	RetryPolicy  ai.RetryPolicy
}

// App orchestrates bulk prompt ingestion and thumbnail generation.
type App struct {
	store      store.Store
	generator  ai.ImageGenerator
	publisher  *storage.Publisher
	batchLog   BatchLog
	authorizer Authorizer

	maxBatchSize int
	pacingDelay  time.Duration
	retry        ai.RetryPolicy

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
	newID func() string
}

// New builds the application. Store, Generator and Publisher are required;
// BatchLog is optional. A nil Authorizer denies everything.
func New(cfg Config) (*App, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("app requires a store")
	}
	if cfg.Generator == nil {
		return nil, fmt.Errorf("app requires an image generator")
	}
	if cfg.Publisher == nil {
		return nil, fmt.Errorf("app requires an image publisher")
	}
	maxBatch := cfg.MaxBatchSize
	if maxBatch <= 0 {
		maxBatch = DefaultMaxBatchSize
	}
	pacing := cfg.PacingDelay
	if pacing <= 0 {
		pacing = DefaultPacingDelay
	}
	retry := cfg.RetryPolicy
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = ai.DefaultMaxRetries
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = ai.DefaultBaseDelay
	}
	authorizer := cfg.Authorizer
	if authorizer == nil {
		authorizer = DefaultAuthorizer()
	}
	return &App{
		store:        cfg.Store,
		generator:    cfg.Generator,
		publisher:    cfg.Publisher,
		batchLog:     cfg.BatchLog,
		authorizer:   authorizer,
		maxBatchSize: maxBatch,
		pacingDelay:  pacing,
		retry:        retry,
		sleep:        sleepContext,
		now:          time.Now,
		newID:        util.NewID,
	}, nil
}

// BatchRequest is a bulk submission of prompt items.
type BatchRequest struct {
	Items         []domain.PromptInput `json:"items"`
	AutoThumbnail bool                 `json:"autoThumbnail"`
}

// BatchResult is the full report of one batch run: a per-item ledger in
// submission order plus the aggregate summary.
type BatchResult struct {
	BatchID string                    `json:"batchId"`
	Results []domain.IngestionOutcome `json:"results"`
	Summary domain.BatchSummary       `json:"summary"`
}

// SubmitBatch processes items strictly sequentially. A failing item is
// recorded in the ledger and never aborts the rest of the batch; only an
// out-of-range batch size fails the submission as a whole.
func (a *App) SubmitBatch(ctx context.Context, actor Identity, req BatchRequest) (BatchResult, error) {
	n := len(req.Items)
	if n == 0 || n > a.maxBatchSize {
		return BatchResult{}, fmt.Errorf("%w: got %d items, want 1..%d", ErrBatchSize, n, a.maxBatchSize)
	}

	batchID := a.mintBatchID()
	logger := util.LoggerFromContext(ctx).With("batch_id", batchID)
	if a.batchLog != nil {
		if err := a.batchLog.Begin(ctx, batchID, actor.ID, n); err != nil {
			logger.Warn("batch log begin failed", "err", err)
		}
	}

	results := make([]domain.IngestionOutcome, 0, n)
	for i, item := range req.Items {
		results = append(results, a.processItem(ctx, logger, actor.ID, batchID, item, req.AutoThumbnail))
		// Pacing applies between items whenever auto-thumbnail is on,
		// regardless of whether this item produced an image.
		if req.AutoThumbnail && i < n-1 {
			if err := a.sleep(ctx, a.pacingDelay); err != nil {
				logger.Warn("batch interrupted", "err", err, "processed", len(results))
				for _, rest := range req.Items[i+1:] {
					results = append(results, domain.IngestionOutcome{
						Title: strings.TrimSpace(rest.Title),
						Error: fmt.Sprintf("batch interrupted: %v", err),
					})
				}
				break
			}
		}
	}

	summary := domain.Summarize(results)
	if a.batchLog != nil {
		if err := a.batchLog.Complete(ctx, batchID, summary.Success, summary.Failed); err != nil {
			logger.Warn("batch log complete failed", "err", err)
		}
	}
	logger.Info("batch finished",
		"total", summary.Total,
		"success", summary.Success,
		"failed", summary.Failed,
	)
	return BatchResult{BatchID: batchID, Results: results, Summary: summary}, nil
}

func (a *App) processItem(ctx context.Context, logger *slog.Logger, actorID, batchID string, input domain.PromptInput, autoThumbnail bool) domain.IngestionOutcome {
	outcome := domain.IngestionOutcome{Title: strings.TrimSpace(input.Title)}

	prompt, err := a.buildPrompt(actorID, batchID, input)
	if err != nil {
		outcome.Error = err.Error()
		return outcome
	}
	if err := a.store.CreatePrompt(prompt); err != nil {
		logger.Error("persist prompt failed", "err", err, "title", prompt.Title)
		outcome.Error = fmt.Sprintf("persist prompt: %v", err)
		return outcome
	}
	outcome.PromptID = prompt.ID

	if !autoThumbnail {
		return outcome
	}
	res := a.synthesizeThumbnail(ctx, prompt.Content,
		func(ext string) string {
			return fmt.Sprintf("bulk-prompts/%s/%s/thumbnail.%s", batchID, prompt.ID, ext)
		},
		map[string]string{"batch-id": batchID, "prompt-id": prompt.ID},
	)
	if res.Status != ThumbnailCreated {
		// The record already exists; a missing image degrades the item,
		// it does not fail it.
		return outcome
	}
	if err := a.store.SetThumbnail(prompt.ID, res.URL); err != nil {
		logger.Warn("attach thumbnail failed", "err", err, "prompt_id", prompt.ID)
		return outcome
	}
	outcome.ImageURL = res.URL
	return outcome
}

// BatchStatus returns the run record for a previously submitted batch.
func (a *App) BatchStatus(ctx context.Context, batchID string) (batchlog.BatchRecord, error) {
	if a.batchLog == nil {
		return batchlog.BatchRecord{}, ErrBatchNotFound
	}
	rec, ok, err := a.batchLog.Get(ctx, batchID)
	if err != nil {
		return batchlog.BatchRecord{}, fmt.Errorf("load batch record: %w", err)
	}
	if !ok {
		return batchlog.BatchRecord{}, ErrBatchNotFound
	}
	return rec, nil
}

// RegenerateResult reports a regeneration request. ImageURL is empty when
// generation yielded no image; the record itself is left untouched then.
type RegenerateResult struct {
	PromptID string `json:"promptId"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// RegenerateThumbnail re-runs thumbnail generation for one existing prompt.
func (a *App) RegenerateThumbnail(ctx context.Context, promptID string, actor Identity) (RegenerateResult, error) {
	prompt, ok, err := a.store.GetPrompt(promptID)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("load prompt: %w", err)
	}
	if !ok {
		return RegenerateResult{}, ErrPromptNotFound
	}
	allowed, err := a.authorizer.CanManagePrompt(ctx, actor, prompt)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("authorize: %w", err)
	}
	if !allowed {
		return RegenerateResult{}, ErrForbidden
	}
	if strings.TrimSpace(prompt.Content) == "" {
		return RegenerateResult{}, ErrNoContent
	}

	res := a.synthesizeThumbnail(ctx, prompt.Content,
		func(ext string) string {
			return fmt.Sprintf("thumbnails/%s/%d-%s.%s", actor.ID, a.now().UTC().UnixMilli(), shortID(a.newID()), ext)
		},
		map[string]string{"prompt-id": prompt.ID},
	)
	if res.Status != ThumbnailCreated {
		return RegenerateResult{PromptID: prompt.ID}, nil
	}
	if err := a.store.SetThumbnail(prompt.ID, res.URL); err != nil {
		return RegenerateResult{}, fmt.Errorf("attach thumbnail: %w", err)
	}
	return RegenerateResult{PromptID: prompt.ID, ImageURL: res.URL}, nil
}

func (a *App) mintBatchID() string {
	stamp := a.now().UTC().Format("20060102T150405")
	return stamp + "-" + shortID(uuid.NewString())
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
