package events

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/disciplinator/disciplinator/internal/chaintime"
	"github.com/disciplinator/disciplinator/pkg/serialization"
	"github.com/disciplinator/disciplinator/pkg/serialization/codec"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteSink appends every event to an audit table.
type SQLiteSink struct {
	db  *sql.DB
	ser *serialization.Serializer
}

// Record is a stored event.
type Record struct {
	ID        uuid.UUID
	Kind      string
	At        chaintime.Timestamp
	Challenge string
	Payload   string
}

// HistoryFilter narrows a History query. Zero values match everything.
type HistoryFilter struct {
	Kind      string
	Challenge string
	Limit     int
}

// OpenSQLite opens the audit database at path, creating it when missing.
// ":memory:" keeps the log in memory.
func OpenSQLite(path string) (*SQLiteSink, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("audit path is required")
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
		dsn = filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One connection: the log has a single writer and an in-memory database
	// exists per connection.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(db, migrations); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &SQLiteSink{db: db, ser: serialization.NewSerializer(&codec.JSONCodec{})}, nil
}

func (s *SQLiteSink) Emit(ctx context.Context, env Envelope) error {
	payload, err := s.ser.Encode(env.Event)
	if err != nil {
		return fmt.Errorf("encode %s: %w", env.Event.Kind(), err)
	}
	var challenge string
	if ce, ok := env.Event.(ChallengeEvent); ok {
		challenge = ce.ChallengeID().String()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (id, seq, kind, at, challenge, payload)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM events), ?, ?, ?, ?)`,
		env.ID.String(), env.Event.Kind(), int64(env.At), challenge, string(payload),
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// History returns stored events oldest first.
func (s *SQLiteSink) History(ctx context.Context, f HistoryFilter) ([]Record, error) {
	query := `SELECT id, kind, at, challenge, payload FROM events WHERE 1=1`
	var args []any
	if f.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, f.Kind)
	}
	if f.Challenge != "" {
		query += ` AND challenge = ?`
		args = append(args, f.Challenge)
	}
	query += ` ORDER BY seq`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			r  Record
			id string
			at int64
		)
		if err := rows.Scan(&id, &r.Kind, &at, &r.Challenge, &r.Payload); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		r.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse event id: %w", err)
		}
		r.At = chaintime.Timestamp(at)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteSink) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// applyMigrations runs every embedded migration not yet recorded in
// schema_migrations, in file name order.
func applyMigrations(db *sql.DB, fsys fs.FS) error {
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		name TEXT PRIMARY KEY,
		applied_at INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	names, err := fs.Glob(fsys, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var count int
		if err := db.QueryRow(`SELECT COUNT(1) FROM schema_migrations WHERE name = ?`, name).Scan(&count); err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}

		tx, err := db.Begin()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
		if _, err := tx.Exec(`INSERT INTO schema_migrations (name, applied_at) VALUES (?, strftime('%s','now'))`, name); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", name, err)
		}
	}
	return nil
}
