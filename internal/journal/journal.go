package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema
// 1 - Added index on records.kind
const currentSchemaVersion = 1

// Outcome values.
const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeNoop    = "noop"
	OutcomeStopped = "stopped"
)

// Record is one processed message.
type Record struct {
	Seq       int64  `json:"seq"`
	ID        string `json:"id"`
	Kind      string `json:"kind"`
	Subject   string `json:"subject,omitempty"`
	Outcome   string `json:"outcome"`
	Error     string `json:"error,omitempty"`
	Rendered  bool   `json:"rendered"`
	Persisted bool   `json:"persisted"`
}

// Journal is the SQLite store behind the record log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
// Applies required pragmas and migrations automatically.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Append inserts a record. A duplicate id is silently ignored.
func (j *Journal) Append(ctx context.Context, r Record) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO records
		(seq, id, kind, subject, outcome, error, rendered, persisted)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		r.Seq,
		r.ID,
		r.Kind,
		r.Subject,
		r.Outcome,
		r.Error,
		r.Rendered,
		r.Persisted,
	)
	if err != nil {
		return fmt.Errorf("append record %d: %w", r.Seq, err)
	}
	return nil
}

// Recent returns the last limit records in ascending seq order.
// Returns an empty slice (not nil) when the journal is empty.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Record, error) {
	return j.query(ctx, `
		SELECT seq, id, kind, subject, outcome, error, rendered, persisted
		FROM (
			SELECT * FROM records ORDER BY seq DESC LIMIT ?
		)
		ORDER BY seq ASC
	`, limit)
}

// ByKind returns every record of one message kind in ascending seq order.
func (j *Journal) ByKind(ctx context.Context, kind string) ([]Record, error) {
	return j.query(ctx, `
		SELECT seq, id, kind, subject, outcome, error, rendered, persisted
		FROM records
		WHERE kind = ?
		ORDER BY seq ASC
	`, kind)
}

// LastSeq returns the highest recorded seq, or 0 for an empty journal.
func (j *Journal) LastSeq(ctx context.Context) (int64, error) {
	var seq sql.NullInt64
	if err := j.db.QueryRowContext(ctx, "SELECT MAX(seq) FROM records").Scan(&seq); err != nil {
		return 0, fmt.Errorf("query last seq: %w", err)
	}
	return seq.Int64, nil
}

func (j *Journal) query(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.Seq, &r.ID, &r.Kind, &r.Subject, &r.Outcome, &r.Error, &r.Rendered, &r.Persisted); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind, seq)`); err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// pragma reads a pragma value. Used by tests.
func (j *Journal) pragma(name string) (string, error) {
	var value string
	if err := j.db.QueryRow(fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return "", fmt.Errorf("failed to query %s: %w", name, err)
	}
	return value, nil
}
