package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // Import the SQLite3 driver
)

// InitDB opens the SQLite database at dbPath and ensures the schema exists.
// The file and its parent directory are created on first use.
func InitDB(dbPath string) (*sql.DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// WAL plus a busy timeout lets concurrent upserts from a reconcile
	// fan-out queue behind each other instead of failing with SQLITE_BUSY.
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Ping the database to verify the connection.
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createPostsTable(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create posts table: %w", err)
	}

	return db, nil
}

// createPostsTable creates the 'posts' table if it doesn't exist.
func createPostsTable(db *sql.DB) error {
	query := `
    CREATE TABLE IF NOT EXISTS posts (
        announcement_id TEXT NOT NULL,
        webhook_id INTEGER NOT NULL,
        message_id INTEGER NOT NULL,
        last_updated INTEGER NOT NULL,
        PRIMARY KEY (announcement_id, webhook_id)
    );`
	_, err := db.Exec(query)
	return err
}
