package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/MacPhobos/audio-ident-sub001/internal/apperr"
)

// Store wraps a GORM connection to the SQLite relational store.
type Store struct {
	db *gorm.DB
}

// Open opens (creating if absent) the SQLite database at path, applies
// the write-throughput pragmas the teacher's sibling repo sets on its
// own SQLite connection, and auto-migrates the Track schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to create relational store directory", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to open relational store", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to access underlying sql.DB", err)
	}

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=-4000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := sqlDB.Exec(pragma); err != nil {
			return nil, apperr.New(apperr.CodeInternal, fmt.Sprintf("failed to set pragma %q", pragma), err)
		}
	}

	if err := db.AutoMigrate(&Track{}); err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to migrate relational store schema", err)
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping verifies the database connection is alive (used by C11 startup).
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return apperr.New(apperr.CodeInternal, "relational store unavailable", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return apperr.New(apperr.CodeInternal, "relational store ping failed", err)
	}
	return nil
}

// Insert persists a new track row.
func (s *Store) Insert(ctx context.Context, t *Track) error {
	now := time.Now()
	t.IngestedAt = now
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		return apperr.New(apperr.CodeInternal, "failed to insert track", err)
	}
	return nil
}

// GetByID returns the track with the given ID, or apperr.CodeValidation
// with a "not found" detail if absent.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Track, error) {
	var t Track
	err := s.db.WithContext(ctx).First(&t, "id = ?", id).Error
	if err != nil {
		if errIsNotFound(err) {
			return nil, apperr.New(apperr.CodeValidation, "track not found", err).WithDetails(map[string]any{"track_id": id.String()})
		}
		return nil, apperr.New(apperr.CodeInternal, "failed to load track", err)
	}
	return &t, nil
}

// GetByDigest looks up a track by its content-dedup digest (spec §4.5
// step 1, exact re-upload short-circuit).
func (s *Store) GetByDigest(ctx context.Context, digest string) (*Track, error) {
	var t Track
	err := s.db.WithContext(ctx).First(&t, "content_digest = ?", digest).Error
	if err != nil {
		if errIsNotFound(err) {
			return nil, nil
		}
		return nil, apperr.New(apperr.CodeInternal, "failed to look up track by digest", err)
	}
	return &t, nil
}

// GetByIDs batch-loads tracks, used to hydrate fingerprint/vector-store
// hits with full metadata in the search orchestrator (C10).
func (s *Store) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var tracks []Track
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&tracks).Error; err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to batch-load tracks", err)
	}
	return tracks, nil
}

// ScanByDurationRange returns candidate tracks whose duration falls
// within [minMs, maxMs], used by content dedup (C6) to narrow its
// comparison set before running the more expensive fingerprint
// similarity check.
func (s *Store) ScanByDurationRange(ctx context.Context, minMs, maxMs int64) ([]Track, error) {
	var tracks []Track
	err := s.db.WithContext(ctx).
		Where("duration_ms BETWEEN ? AND ?", minMs, maxMs).
		Find(&tracks).Error
	if err != nil {
		return nil, apperr.New(apperr.CodeInternal, "failed to scan tracks by duration", err)
	}
	return tracks, nil
}

// Delete removes a track row by ID.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.db.WithContext(ctx).Delete(&Track{}, "id = ?", id).Error; err != nil {
		return apperr.New(apperr.CodeInternal, "failed to delete track", err)
	}
	return nil
}

func errIsNotFound(err error) bool {
	return err == gorm.ErrRecordNotFound
}
