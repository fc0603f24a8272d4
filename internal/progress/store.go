// Package progress persists a viewer's watch progress locally. Progress is
// never shared with other participants; it only has to survive restarts of
// the viewer's own session.
package progress

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/selfcinema/server/internal/domain"
)

type record struct {
	EpisodeID   string  `gorm:"primaryKey;column:episode_id"`
	CurrentTime float64 `gorm:"column:current_time"`
	Duration    float64 `gorm:"column:duration"`
	Completed   bool    `gorm:"column:completed"`
	// autoUpdateTime is disabled: the engine stamps this field itself in
	// unix milliseconds and the convention would overwrite it with seconds.
	UpdatedAt int64 `gorm:"column:updated_at;autoUpdateTime:false"`
}

func (record) TableName() string {
	return "watch_progress"
}

type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open progress database: %w", err)
	}

	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Save upserts progress for an episode, keeping only the latest write.
func (s *Store) Save(ctx context.Context, progress domain.WatchProgress) error {
	rec := record{
		EpisodeID:   progress.EpisodeID,
		CurrentTime: progress.CurrentTime,
		Duration:    progress.Duration,
		Completed:   progress.Completed,
		UpdatedAt:   progress.UpdatedAt,
	}

	if err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "episode_id"}},
		UpdateAll: true,
	}).Create(&rec).Error; err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

func (s *Store) Get(ctx context.Context, episodeID string) (domain.WatchProgress, bool, error) {
	var rec record
	if err := s.db.WithContext(ctx).First(&rec, "episode_id = ?", episodeID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.WatchProgress{}, false, nil
		}

		return domain.WatchProgress{}, false, fmt.Errorf("failed to get progress: %w", err)
	}

	return domain.WatchProgress{
		EpisodeID:   rec.EpisodeID,
		CurrentTime: rec.CurrentTime,
		Duration:    rec.Duration,
		Completed:   rec.Completed,
		UpdatedAt:   rec.UpdatedAt,
	}, true, nil
}
