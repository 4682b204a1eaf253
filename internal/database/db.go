package database

import (
	"database/sql"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Database represents the database connection and operations
type Database struct {
	DB *sql.DB
}

// New creates a new Database instance
func New(dsn string) (*Database, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	// Verify connection
	if err = db.Ping(); err != nil {
		return nil, err
	}

	return &Database{DB: db}, nil
}

// Init creates the required tables if they don't exist
func (d *Database) Init() error {
	createTables := `
	CREATE TABLE IF NOT EXISTS videos (
		name TEXT PRIMARY KEY,
		size BIGINT NOT NULL,
		content_type TEXT NOT NULL,
		uploaded_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analyses (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		config TEXT NOT NULL,
		status TEXT NOT NULL,
		result_path TEXT NOT NULL DEFAULT '',
		counts TEXT NOT NULL DEFAULT '{}',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);

	CREATE TABLE IF NOT EXISTS analysis_events (
		id SERIAL PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		action TEXT NOT NULL,
		frame BIGINT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id)
	);

	CREATE TABLE IF NOT EXISTS outbox (
		id TEXT PRIMARY KEY,
		analysis_id TEXT NOT NULL,
		action TEXT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		processed_at TIMESTAMP,
		FOREIGN KEY (analysis_id) REFERENCES analyses(id)
	);
	`

	_, err := d.DB.Exec(createTables)
	return err
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.DB.Close()
}
