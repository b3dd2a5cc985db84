package simserver

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// OpenDB opens a private in-memory log database with the schema in place.
// Everything is discarded when it is closed.
func OpenDB() (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)

	if err := createSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func createSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmts := []struct {
		what string
		sql  string
	}{
		{"creating logs table", `
			CREATE TABLE logs (
				id INTEGER PRIMARY KEY AUTOINCREMENT,
				device_type TEXT NOT NULL DEFAULT '',
				device_id TEXT NOT NULL,
				user_id TEXT NOT NULL,
				action TEXT NOT NULL DEFAULT '',
				value TEXT NOT NULL DEFAULT '',
				func TEXT NOT NULL DEFAULT '',
				timestamp TEXT NOT NULL,
				state TEXT NOT NULL DEFAULT '{}'
			)`},
		{"creating timestamp index", `CREATE INDEX idx_logs_timestamp ON logs(timestamp)`},
		{"creating device index", `CREATE INDEX idx_logs_device ON logs(device_type, device_id)`},
		{"creating user index", `CREATE INDEX idx_logs_user ON logs(user_id)`},
	}
	for _, s := range stmts {
		if _, err := tx.Exec(s.sql); err != nil {
			return fmt.Errorf("%s: %w", s.what, err)
		}
	}

	return tx.Commit()
}
