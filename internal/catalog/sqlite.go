// Package catalog indexes finished recordings and validation runs in a local
// SQLite database so sessions can be found later without scanning replay
// directories. Writes go through a single writer goroutine and are dropped if
// the indexer falls behind; the replay files remain the source of truth.
package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteCatalog struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool
}

type reqKind int

const (
	reqSession reqKind = iota + 1
	reqValidation
)

type req struct {
	kind       reqKind
	session    SessionRow
	validation ValidationRow
	done       chan struct{}
}

type SessionRow struct {
	Path        string
	Seed        int64
	PlayerCount int
	InputSize   int
	Frames      int32
	Archived    bool
	RecordedAt  string
}

type ValidationRow struct {
	Seed          int64
	Files         []string
	IsValid       bool
	MismatchCount int
	ReportJSON    string
	CheckedAt     string
}

func Open(path string) (*SQLiteCatalog, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	c := &SQLiteCatalog{
		db: db,
		ch: make(chan req, 1024),
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loop()
	}()
	return c, nil
}

func initPragmas(db *sql.DB) error {
	// WAL is much faster for append-style workloads.
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS sessions (
			path TEXT PRIMARY KEY,
			seed INTEGER NOT NULL,
			player_count INTEGER NOT NULL,
			input_size INTEGER NOT NULL,
			frames INTEGER NOT NULL,
			archived INTEGER NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_seed ON sessions(seed);`,
		`CREATE TABLE IF NOT EXISTS validations (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			seed INTEGER NOT NULL,
			files TEXT NOT NULL,
			is_valid INTEGER NOT NULL,
			mismatch_count INTEGER NOT NULL,
			report_json TEXT NOT NULL,
			checked_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_validations_seed ON validations(seed);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (c *SQLiteCatalog) Close() error {
	var err error
	c.once.Do(func() {
		c.closed.Store(true)
		close(c.ch)
		c.wg.Wait()
		err = c.db.Close()
	})
	return err
}

// RecordSession indexes a finished recording. Best effort: the write is
// dropped silently if the writer queue is full.
func (c *SQLiteCatalog) RecordSession(row SessionRow) {
	if c == nil || c.closed.Load() {
		return
	}
	if row.RecordedAt == "" {
		row.RecordedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case c.ch <- req{kind: reqSession, session: row}:
	default:
	}
}

// RecordValidation indexes one validator run.
func (c *SQLiteCatalog) RecordValidation(row ValidationRow) {
	if c == nil || c.closed.Load() {
		return
	}
	if row.CheckedAt == "" {
		row.CheckedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	select {
	case c.ch <- req{kind: reqValidation, validation: row}:
	default:
	}
}

// Flush blocks until every write queued before the call has been committed.
// Intended for tests and shutdown paths.
func (c *SQLiteCatalog) Flush() {
	if c == nil || c.closed.Load() {
		return
	}
	done := make(chan struct{})
	c.ch <- req{done: done}
	<-done
}

// SessionsForSeed returns every indexed recording for a seed, newest first.
func (c *SQLiteCatalog) SessionsForSeed(ctx context.Context, seed int64) ([]SessionRow, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT path,seed,player_count,input_size,frames,archived,recorded_at
		 FROM sessions WHERE seed=? ORDER BY recorded_at DESC`, seed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionRow
	for rows.Next() {
		var r SessionRow
		var archived int
		if err := rows.Scan(&r.Path, &r.Seed, &r.PlayerCount, &r.InputSize, &r.Frames, &archived, &r.RecordedAt); err != nil {
			return nil, err
		}
		r.Archived = archived != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestValidation returns the most recent validator run for a seed.
func (c *SQLiteCatalog) LatestValidation(ctx context.Context, seed int64) (ValidationRow, bool, error) {
	var r ValidationRow
	var files string
	var valid int
	err := c.db.QueryRowContext(ctx,
		`SELECT seed,files,is_valid,mismatch_count,report_json,checked_at
		 FROM validations WHERE seed=? ORDER BY id DESC LIMIT 1`, seed).
		Scan(&r.Seed, &files, &valid, &r.MismatchCount, &r.ReportJSON, &r.CheckedAt)
	if err == sql.ErrNoRows {
		return ValidationRow{}, false, nil
	}
	if err != nil {
		return ValidationRow{}, false, err
	}
	r.IsValid = valid != 0
	_ = json.Unmarshal([]byte(files), &r.Files)
	return r, true, nil
}

func (c *SQLiteCatalog) loop() {
	insertSession, _ := c.db.Prepare(
		`INSERT OR REPLACE INTO sessions(path,seed,player_count,input_size,frames,archived,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	insertValidation, _ := c.db.Prepare(
		`INSERT INTO validations(seed,files,is_valid,mismatch_count,report_json,checked_at) VALUES(?,?,?,?,?,?)`)
	defer func() {
		if insertSession != nil {
			_ = insertSession.Close()
		}
		if insertValidation != nil {
			_ = insertValidation.Close()
		}
	}()

	for r := range c.ch {
		if r.done != nil {
			close(r.done)
			continue
		}
		switch r.kind {
		case reqSession:
			s := r.session
			archived := 0
			if s.Archived {
				archived = 1
			}
			if insertSession != nil {
				_, _ = insertSession.Exec(s.Path, s.Seed, s.PlayerCount, s.InputSize, int64(s.Frames), archived, s.RecordedAt)
			}

		case reqValidation:
			v := r.validation
			valid := 0
			if v.IsValid {
				valid = 1
			}
			files, _ := json.Marshal(v.Files)
			if insertValidation != nil {
				_, _ = insertValidation.Exec(v.Seed, string(files), valid, v.MismatchCount, v.ReportJSON, v.CheckedAt)
			}
		}
	}
}
