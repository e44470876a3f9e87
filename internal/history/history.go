// Package history records catalog mutations (queue, unqueue, add, search)
// in a local SQLite database so operators can audit what the service asked
// the library manager to do.
package history

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/shelfgrab/shelfgrab/internal/logger"
)

// Action names a recorded catalog mutation.
type Action string

const (
	ActionQueue   Action = "queue"
	ActionUnqueue Action = "unqueue"
	ActionAdd     Action = "add"
	ActionSearch  Action = "search"
)

// Event is one recorded mutation.
type Event struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Action    Action    `gorm:"index;size:16" json:"action"`
	BookID    string    `gorm:"index;size:64" json:"book_id"`
	Format    string    `gorm:"size:16" json:"format,omitempty"`
	Outcome   string    `gorm:"size:255" json:"outcome,omitempty"`
	Skipped   bool      `json:"skipped"`
}

// Log is the event store.
type Log struct {
	db     *gorm.DB
	logger *logger.Logger
}

// Open opens (and migrates) the event database at dbPath, creating parent
// directories as needed.
func Open(dbPath string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	// SQLite supports a single writer
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Event{}); err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	log := logger.Get().WithComponent("history")
	log.Debug().Str("path", dbPath).Msg("Event database ready")
	return &Log{db: db, logger: log}, nil
}

// Close closes the underlying database.
func (l *Log) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Record appends one event.
func (l *Log) Record(ctx context.Context, event Event) error {
	if err := l.db.WithContext(ctx).Create(&event).Error; err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}
	return nil
}

// Recent returns the newest events, up to limit.
func (l *Log) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	var events []Event
	err := l.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}

// ForBook returns every event recorded for a book id, newest first.
func (l *Log) ForBook(ctx context.Context, bookID string) ([]Event, error) {
	var events []Event
	err := l.db.WithContext(ctx).
		Where("book_id = ?", bookID).
		Order("id DESC").
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load events: %w", err)
	}
	return events, nil
}
