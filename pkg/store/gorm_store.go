package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"promptdeck/pkg/domain"
)

const migrateLockID int64 = 55125512

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent service starts do not race.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&PromptModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreatePrompt inserts a new prompt record.
func (s *GormStore) CreatePrompt(p domain.Prompt) error {
	model := promptToModel(p)
	return s.db.Create(&model).Error
}

// GetPrompt retrieves one prompt by ID.
func (s *GormStore) GetPrompt(id string) (domain.Prompt, bool, error) {
	var model PromptModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Prompt{}, false, nil
		}
		return domain.Prompt{}, false, err
	}
	return promptFromModel(model), true, nil
}

// SetThumbnail attaches a generated thumbnail URL and bumps the update time.
func (s *GormStore) SetThumbnail(id string, url string) error {
	return s.db.Model(&PromptModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"thumbnail_url": url,
			"updated_at":    time.Now().UTC(),
		}).Error
}

// ListPromptsByBatch returns all prompts created under one batch.
func (s *GormStore) ListPromptsByBatch(batchID string) ([]domain.Prompt, error) {
	var models []PromptModel
	if err := s.db.Where("batch_id = ?", batchID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Prompt, 0, len(models))
	for _, m := range models {
		res = append(res, promptFromModel(m))
	}
	return res, nil
}

func promptToModel(p domain.Prompt) PromptModel {
	launches, _ := json.Marshal(p.Launches)
	return PromptModel{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		BatchID:      p.BatchID,
		Title:        p.Title,
		Content:      p.Content,
		Category:     p.Category,
		Slug:         p.Slug,
		ThumbnailURL: p.ThumbnailURL,
		Views:        p.Views,
		Likes:        p.Likes,
		Copies:       p.Copies,
		Launches:     launches,
		TotalLaunch:  p.TotalLaunch,
		Public:       p.Public,
		CreatedAt:    p.CreatedAt,
		UpdatedAt:    p.UpdatedAt,
	}
}

func promptFromModel(m PromptModel) domain.Prompt {
	var launches domain.LaunchCounters
	if len(m.Launches) > 0 {
		_ = json.Unmarshal(m.Launches, &launches)
	}
	return domain.Prompt{
		ID:           m.ID,
		AuthorID:     m.AuthorID,
		BatchID:      m.BatchID,
		Title:        m.Title,
		Content:      m.Content,
		Category:     m.Category,
		Slug:         m.Slug,
		ThumbnailURL: m.ThumbnailURL,
		Views:        m.Views,
		Likes:        m.Likes,
		Copies:       m.Copies,
		Launches:     launches,
		TotalLaunch:  m.TotalLaunch,
		Public:       m.Public,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
