package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite3 driver

	"photovault/internal/logging"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

// Database manages all catalog operations for the ingestion pipeline.
type Database struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
}

// New creates a new Database instance. dbPath is the full path to the
// database file; the parent directory must already exist and be writable.
func New(ctx context.Context, dbPath string) (*Database, error) {
	logging.Info("Database path: %s", dbPath)

	// Use WAL mode and other optimizations
	// busy_timeout helps prevent "database is locked" errors
	connStr := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000&_temp_store=MEMORY&_busy_timeout=5000", dbPath)

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(time.Hour)

	d := &Database{
		db:     db,
		dbPath: dbPath,
	}

	if err := d.initialize(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			logging.Error("failed to close database after initialization failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	logging.Info("Database initialized successfully at %s", dbPath)
	return d, nil
}

func (d *Database) initialize(ctx context.Context) error {
	schema := `
	-- Ingested media assets
	CREATE TABLE IF NOT EXISTS media_files (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		filename TEXT NOT NULL,
		stored_filename TEXT NOT NULL UNIQUE,
		file_path TEXT NOT NULL,
		file_type TEXT NOT NULL,
		mime_type TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		content_hash TEXT,
		thumbnail_path TEXT,
		thumbnail_webp_path TEXT,
		rotation INTEGER NOT NULL DEFAULT 0,
		title TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		captured_at INTEGER,
		gps_latitude REAL,
		gps_longitude REAL,
		place_name TEXT,
		camera_make TEXT,
		camera_model TEXT,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	CREATE INDEX IF NOT EXISTS idx_media_files_content_hash ON media_files(content_hash);
	CREATE INDEX IF NOT EXISTS idx_media_files_captured_at ON media_files(captured_at);
	CREATE INDEX IF NOT EXISTS idx_media_files_file_type ON media_files(file_type);

	-- Albums
	CREATE TABLE IF NOT EXISTS albums (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		cover_media_id INTEGER REFERENCES media_files(id) ON DELETE SET NULL,
		media_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
	);

	-- Album membership
	CREATE TABLE IF NOT EXISTS album_media_relations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		album_id INTEGER NOT NULL REFERENCES albums(id) ON DELETE CASCADE,
		media_id INTEGER NOT NULL REFERENCES media_files(id) ON DELETE CASCADE,
		display_order INTEGER NOT NULL DEFAULT 0,
		added_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		UNIQUE(album_id, media_id)
	);

	CREATE INDEX IF NOT EXISTS idx_album_media_album ON album_media_relations(album_id, display_order);

	-- Archive import history
	CREATE TABLE IF NOT EXISTS zip_import_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		source_archive_name TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		total_files INTEGER NOT NULL DEFAULT 0,
		imported_count INTEGER NOT NULL DEFAULT 0,
		failed_count INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'processing',
		started_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now')),
		completed_at INTEGER,
		error_message TEXT,
		album_id INTEGER REFERENCES albums(id) ON DELETE SET NULL
	);

	CREATE INDEX IF NOT EXISTS idx_zip_import_status ON zip_import_history(status);

	-- Key-value metadata (rate-limiter timestamps, maintenance markers)
	CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := d.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

func unixTime(seconds int64) time.Time {
	return time.Unix(seconds, 0).UTC()
}

// Ping verifies the database connection is alive.
func (d *Database) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// Close closes the database connection.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.db.Close()
}
