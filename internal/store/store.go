// Package store persists client-side preferences in a local SQLite file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zulandar/pyassist/internal/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Preference keys.
const (
	KeyTheme        = "pyassistant-theme"
	KeyLastUsername = "last-username"

	// KeySessionCookies holds the CLI's backend session cookies as JSON.
	KeySessionCookies = "session-cookies"
)

// Store is a key/value preference store backed by gorm.
type Store struct {
	db *gorm.DB
}

// AllModels returns every model the store migrates.
func AllModels() []interface{} {
	return []interface{}{
		&models.Preference{},
	}
}

// Open opens (creating if needed) the SQLite database at path and migrates
// it. Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("store: create dir for %s: %w", path, err)
		}
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	return New(db)
}

// New wraps an existing connection and migrates it.
func New(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("store: db is required")
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Get returns the stored value for key, or def when the key is unset.
func (s *Store) Get(key, def string) (string, error) {
	var p models.Preference
	err := s.db.Where(&models.Preference{Key: key}).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("store: get %s: %w", key, err)
	}
	return p.Value, nil
}

// Set upserts key=value.
func (s *Store) Set(key, value string) error {
	p := models.Preference{Key: key, Value: value}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&p)
	if result.Error != nil {
		return fmt.Errorf("store: set %s: %w", key, result.Error)
	}
	return nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return sqlDB.Close()
}
