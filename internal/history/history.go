// Package history keeps a local record of completed refresh passes. The
// refresh workflow never reads it back; it exists so `remeta history` can
// show how past runs went.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	dbFileName = "remeta.db"
)

type Store struct {
	db *sql.DB
}

type Pass struct {
	ID         int64
	Server     string
	StartedAt  time.Time
	FinishedAt time.Time
	Success    int
	Failed     int
	Skipped    int
}

// Duration is the wall-clock length of the pass.
func (p Pass) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}

func DBPath(storeDir string) string {
	return filepath.Join(storeDir, dbFileName)
}

func Open(storeDir string) (*Store, error) {
	if err := os.MkdirAll(storeDir, 0700); err != nil {
		return nil, fmt.Errorf("creating store dir: %w", err)
	}

	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000", DBPath(storeDir)))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) init() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS passes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	server TEXT NOT NULL,
	started_at TEXT NOT NULL,
	finished_at TEXT NOT NULL,
	success INTEGER NOT NULL,
	failed INTEGER NOT NULL,
	skipped INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_passes_started ON passes(started_at);
`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) RecordPass(p Pass) (int64, error) {
	res, err := s.db.Exec(`
INSERT INTO passes (server, started_at, finished_at, success, failed, skipped)
VALUES (?, ?, ?, ?, ?, ?)
`,
		p.Server,
		p.StartedAt.UTC().Format(time.RFC3339Nano),
		p.FinishedAt.UTC().Format(time.RFC3339Nano),
		p.Success,
		p.Failed,
		p.Skipped,
	)
	if err != nil {
		return 0, fmt.Errorf("record pass: %w", err)
	}
	id, _ := res.LastInsertId()
	return id, nil
}

// ListPasses returns the most recent passes, newest first. limit <= 0 means
// no limit.
func (s *Store) ListPasses(limit int) ([]Pass, error) {
	query := `SELECT id, server, started_at, finished_at, success, failed, skipped FROM passes ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list passes: %w", err)
	}
	defer rows.Close()

	var out []Pass
	for rows.Next() {
		var p Pass
		var started, finished string
		if err := rows.Scan(&p.ID, &p.Server, &started, &finished, &p.Success, &p.Failed, &p.Skipped); err != nil {
			return nil, fmt.Errorf("scan pass: %w", err)
		}
		p.StartedAt = parseTime(started)
		p.FinishedAt = parseTime(finished)
		out = append(out, p)
	}
	return out, rows.Err()
}

func parseTime(v string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return time.Time{}
	}
	return t
}
