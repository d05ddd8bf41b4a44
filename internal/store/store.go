// Package store persists decision traces in SQLite so they can be
// listed, verified and replayed later.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/ppiankov/amiengine/internal/engine"
	"github.com/ppiankov/amiengine/internal/model"
	"github.com/ppiankov/amiengine/internal/trace"
)

// ErrNotFound is returned when no decision has the requested ID.
var ErrNotFound = errors.New("store: decision not found")

const schema = `
CREATE TABLE IF NOT EXISTS decisions (
	id               TEXT PRIMARY KEY,
	created_at       INTEGER NOT NULL,
	reason           TEXT NOT NULL,
	level            INTEGER NOT NULL,
	human_escalation INTEGER NOT NULL,
	soft_clamp       INTEGER NOT NULL,
	confidence       REAL NOT NULL,
	cus              REAL NOT NULL,
	profile          TEXT NOT NULL DEFAULT '',
	config_hash      TEXT NOT NULL DEFAULT '',
	trace_hash       TEXT NOT NULL,
	trace            BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at);
`

// Entry is one stored decision.
type Entry struct {
	ID              string       `json:"id"`
	CreatedAt       time.Time    `json:"created_at"`
	Reason          model.Reason `json:"reason"`
	Level           model.Level  `json:"level"`
	HumanEscalation bool         `json:"human_escalation"`
	SoftClamp       bool         `json:"soft_clamp"`
	Confidence      float64      `json:"confidence"`
	CUS             float64      `json:"cus"`
	Profile         string       `json:"profile,omitempty"`
	ConfigHash      string       `json:"config_hash,omitempty"`
	TraceHash       string       `json:"trace_hash"`
	Trace           []byte       `json:"-"`
}

// SaveOptions carries metadata stored next to the trace.
type SaveOptions struct {
	Profile    string
	ConfigHash string
	Now        time.Time
}

// Store is a SQLite-backed decision store. Safe for concurrent use.
type Store struct {
	db *sql.DB
}

// DefaultPath returns ~/.amiengine/decisions.db.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".amiengine", "decisions.db")
	}
	return filepath.Join(home, ".amiengine", "decisions.db")
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("store: db path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("store: create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open database: %w", err)
	}
	// SQLite only supports a single writer
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
		schema,
	} {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: initialize: %w", err)
		}
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores res and returns its new run ID.
func (s *Store) Save(ctx context.Context, res *engine.Result, opts SaveOptions) (string, error) {
	data, err := json.Marshal(res.Trace)
	if err != nil {
		return "", fmt.Errorf("store: marshal trace: %w", err)
	}
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	id := uuid.NewString()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (
			id, created_at, reason, level, human_escalation, soft_clamp,
			confidence, cus, profile, config_hash, trace_hash, trace
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, now.UnixNano(), string(res.Reason), int(res.Escalation),
		res.HumanEscalation, res.SoftSafeApplied,
		res.Confidence, res.Uncertainty.CUS,
		opts.Profile, opts.ConfigHash, res.TraceHash, data,
	)
	if err != nil {
		return "", fmt.Errorf("store: insert decision: %w", err)
	}
	return id, nil
}

const selectColumns = `id, created_at, reason, level, human_escalation, soft_clamp,
	confidence, cus, profile, config_hash, trace_hash, trace`

// Get returns the decision with the given ID.
func (s *Store) Get(ctx context.Context, id string) (*Entry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM decisions WHERE id = ?`, id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	return e, nil
}

// Recent returns up to n most recent decisions, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM decisions ORDER BY created_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("store: list decisions: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan decision: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

// Count returns the number of stored decisions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM decisions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: count: %w", err)
	}
	return n, nil
}

// Trace parses the stored trace of decision id.
func (s *Store) Trace(ctx context.Context, id string) (*trace.Trace, error) {
	e, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return trace.Parse(e.Trace)
}

// Verify recomputes the hash of the stored trace and compares it with
// the hash recorded at save time.
func (s *Store) Verify(ctx context.Context, id string) error {
	e, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	t, err := trace.Parse(e.Trace)
	if err != nil {
		return err
	}
	got, err := trace.Hash(t)
	if err != nil {
		return err
	}
	if got != e.TraceHash {
		return fmt.Errorf("store: decision %s: trace hash %s does not match recorded %s", id, got, e.TraceHash)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(sc scanner) (*Entry, error) {
	var (
		e       Entry
		created int64
		reason  string
		level   int
	)
	err := sc.Scan(&e.ID, &created, &reason, &level, &e.HumanEscalation, &e.SoftClamp,
		&e.Confidence, &e.CUS, &e.Profile, &e.ConfigHash, &e.TraceHash, &e.Trace)
	if err != nil {
		return nil, err
	}
	e.CreatedAt = time.Unix(0, created).UTC()
	e.Reason = model.Reason(reason)
	e.Level = model.Level(level)
	return &e, nil
}
