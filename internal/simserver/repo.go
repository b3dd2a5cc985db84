package simserver

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is how timestamps are stored: fixed-width UTC, so the
// text order matches time order.
const TimestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// MaxResultRows caps how many rows Query returns. TotalRows still counts
// every row the statement produced.
const MaxResultRows = 1000

// ErrReadOnly is returned by Query for anything but a single SELECT or
// WITH statement.
var ErrReadOnly = errors.New("only a single SELECT or WITH statement is allowed")

// LogRow is one stored log. State holds the state object as JSON text.
type LogRow struct {
	ID         int64
	DeviceType string
	DeviceID   string
	UserID     string
	Action     string
	Value      string
	Func       string
	Timestamp  time.Time
	State      string
}

// QueryResult is the tabular answer to a read-only SQL statement.
type QueryResult struct {
	Columns   []string
	Rows      []map[string]any
	TotalRows int
}

// Repo stores logs in SQLite.
type Repo struct {
	db *sql.DB
}

// OpenRepo creates an empty in-memory log table.
func OpenRepo() (*Repo, error) {
	db, err := OpenDB()
	if err != nil {
		return nil, err
	}
	return &Repo{db: db}, nil
}

// Close closes the underlying database.
func (r *Repo) Close() error {
	return r.db.Close()
}

// Insert stores rows in one transaction and returns how many were written.
func (r *Repo) Insert(ctx context.Context, rows []LogRow) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO logs (device_type, device_id, user_id, action, value, func, timestamp, state)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, row := range rows {
		state := row.State
		if state == "" {
			state = "{}"
		}
		if _, err := stmt.ExecContext(ctx,
			row.DeviceType, row.DeviceID, row.UserID, row.Action, row.Value, row.Func,
			row.Timestamp.UTC().Format(TimestampLayout), state,
		); err != nil {
			return 0, fmt.Errorf("inserting log %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing logs: %w", err)
	}
	return len(rows), nil
}

// List returns every stored log, newest first.
func (r *Repo) List(ctx context.Context) ([]LogRow, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, device_type, device_id, user_id, action, value, func, timestamp, state
		FROM logs
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var out []LogRow
	for rows.Next() {
		var (
			row LogRow
			ts  string
		)
		if err := rows.Scan(&row.ID, &row.DeviceType, &row.DeviceID, &row.UserID,
			&row.Action, &row.Value, &row.Func, &ts, &row.State); err != nil {
			return nil, fmt.Errorf("scanning log: %w", err)
		}
		row.Timestamp, err = time.Parse(TimestampLayout, ts)
		if err != nil {
			return nil, fmt.Errorf("parsing timestamp of log %d: %w", row.ID, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}
	return out, nil
}

// Count returns the number of stored logs.
func (r *Repo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM logs").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting logs: %w", err)
	}
	return n, nil
}

// Query runs a read-only statement and returns its columns and rows.
func (r *Repo) Query(ctx context.Context, stmt string) (QueryResult, error) {
	stmt, err := readOnly(stmt)
	if err != nil {
		return QueryResult{}, err
	}

	// Always rolled back: a WITH ... DELETE must leave the table intact.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return QueryResult{}, fmt.Errorf("starting transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, stmt)
	if err != nil {
		return QueryResult{}, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return QueryResult{}, fmt.Errorf("reading columns: %w", err)
	}

	res := QueryResult{Columns: cols, Rows: []map[string]any{}}
	for rows.Next() {
		res.TotalRows++
		if len(res.Rows) >= MaxResultRows {
			continue
		}

		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return QueryResult{}, fmt.Errorf("scanning row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, c := range cols {
			if b, ok := vals[i].([]byte); ok {
				row[c] = string(b)
				continue
			}
			row[c] = vals[i]
		}
		res.Rows = append(res.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return QueryResult{}, fmt.Errorf("iterating rows: %w", err)
	}
	return res, nil
}

// readOnly trims a trailing semicolon and rejects anything that is not a
// single SELECT or WITH statement.
func readOnly(stmt string) (string, error) {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSpace(strings.TrimSuffix(s, ";"))
	if s == "" || strings.Contains(s, ";") {
		return "", ErrReadOnly
	}

	upper := strings.ToUpper(s)
	for _, kw := range []string{"SELECT", "WITH"} {
		if strings.HasPrefix(upper, kw) && (len(upper) == len(kw) || !isIdentByte(upper[len(kw)])) {
			return s, nil
		}
	}
	return "", ErrReadOnly
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
