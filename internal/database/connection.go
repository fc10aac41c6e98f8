package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB is the global database connection
var DB *sqlx.DB

// Connect opens the configured database, bootstraps the schema and stores the
// handle in DB.
func Connect(dbType, path, url string) error {
	db, err := Open(dbType, path, url)
	if err != nil {
		return err
	}
	DB = db
	return nil
}

// Open establishes a connection without touching the global handle.
// path is used for sqlite, url for postgres.
func Open(dbType, path, url string) (*sqlx.DB, error) {
	var (
		db  *sqlx.DB
		err error
	)

	switch dbType {
	case "postgres":
		db, err = sqlx.Connect("postgres", url)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	case "sqlite", "":
		if path != ":memory:" {
			// Create data directory if it doesn't exist
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
		db, err = sqlx.Connect("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		// SQLite doesn't support multiple writers, and :memory: is per connection
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	default:
		return nil, fmt.Errorf("unsupported database type %q", dbType)
	}

	if err := initializeSchema(db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func Close() error {
	if DB != nil {
		return DB.Close()
	}
	return nil
}

// initializeSchema creates necessary tables if they don't exist
func initializeSchema(db *sqlx.DB) error {
	idColumn := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if db.DriverName() == "postgres" {
		idColumn = "id BIGSERIAL PRIMARY KEY"
	}

	// Create progress table, one JSON document per storage key
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS progress (
			storage_key TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create progress table: %w", err)
	}

	// Create reminders table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS reminders (
			chat_id BIGINT PRIMARY KEY,
			enabled BOOLEAN DEFAULT true,
			hour INTEGER DEFAULT 7,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create reminders table: %w", err)
	}

	// Create sentences table
	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS sentences (
			` + idColumn + `,
			korean TEXT NOT NULL UNIQUE,
			topic TEXT NOT NULL DEFAULT '',
			level TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create sentences table: %w", err)
	}

	return nil
}
