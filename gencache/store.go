// Package gencache remembers generated candidates by the SHA-256 of the
// canonical bundle rendering, so an unchanged bundle never reaches the
// generation backend twice.
package gencache

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/jitter/am"
	"github.com/teranos/jitter/db"
	"github.com/teranos/jitter/errors"
	"github.com/teranos/jitter/logger"
)

// Candidate is one cached generation result
type Candidate struct {
	Key       string    `json:"key" yaml:"key"`
	Target    string    `json:"target" yaml:"target"`
	Backend   string    `json:"backend" yaml:"backend"`
	Text      string    `json:"candidate" yaml:"candidate"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Hits      int       `json:"hits" yaml:"hits"`
}

// Store reads and writes the candidates table
type Store struct {
	db  *sql.DB
	log *zap.SugaredLogger
}

// New wraps an already migrated database
func New(d *sql.DB) *Store {
	return &Store{db: d, log: logger.ComponentLogger("gencache")}
}

// Open opens (creating and migrating as needed) the cache at path.
// A leading ~ is expanded.
func Open(path string) (*Store, error) {
	log := logger.ComponentLogger("gencache")
	d, err := db.OpenWithMigrations(am.ExpandHome(path), log)
	if err != nil {
		return nil, errors.WithHint(errors.Wrap(err, "open generation cache"),
			"set cache.enabled = false to run without a cache")
	}
	return &Store{db: d, log: log}, nil
}

// Close closes the underlying database
func (s *Store) Close() error {
	return s.db.Close()
}

// Key is the cache key of a rendering
func Key(rendered string) string {
	sum := sha256.Sum256([]byte(rendered))
	return hex.EncodeToString(sum[:])
}

const selectCandidate = `SELECT key, target, backend, candidate, created_at, hits FROM candidates`

// Get returns the candidate stored under key and counts the hit.
// A miss is ErrNotFound.
func (s *Store) Get(ctx context.Context, key string) (*Candidate, error) {
	var c Candidate
	err := s.db.QueryRowContext(ctx, selectCandidate+` WHERE key = ?`, key).
		Scan(&c.Key, &c.Target, &c.Backend, &c.Text, &c.CreatedAt, &c.Hits)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(errors.ErrNotFound, "candidate %s", short(key))
	}
	if err != nil {
		return nil, wrapDB(err, "get candidate %s", short(key))
	}

	if _, err := s.db.ExecContext(ctx, `UPDATE candidates SET hits = hits + 1 WHERE key = ?`, key); err != nil {
		return nil, wrapDB(err, "count hit on %s", short(key))
	}
	c.Hits++
	return &c, nil
}

// Put stores c, replacing any candidate under the same key
func (s *Store) Put(ctx context.Context, c Candidate) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO candidates (key, target, backend, candidate, created_at, hits) VALUES (?, ?, ?, ?, ?, 0)
		ON CONFLICT(key) DO UPDATE SET target = excluded.target, backend = excluded.backend,
			candidate = excluded.candidate, created_at = excluded.created_at, hits = 0`,
		c.Key, c.Target, c.Backend, c.Text, c.CreatedAt)
	if err != nil {
		return wrapDB(err, "put candidate %s", short(c.Key))
	}
	s.log.Debugw("Cached candidate", logger.FieldTarget, c.Target, "key", short(c.Key), "backend", c.Backend)
	return nil
}

// Delete removes the candidate under key. Deleting a missing key is not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM candidates WHERE key = ?`, key); err != nil {
		return wrapDB(err, "delete candidate %s", short(key))
	}
	return nil
}

// List returns the candidates for target, or all of them when target is
// empty, newest first
func (s *Store) List(ctx context.Context, target string) ([]Candidate, error) {
	query := selectCandidate
	var args []interface{}
	if target != "" {
		query += ` WHERE target = ?`
		args = append(args, target)
	}
	query += ` ORDER BY created_at DESC, key`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDB(err, "list candidates")
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Key, &c.Target, &c.Backend, &c.Text, &c.CreatedAt, &c.Hits); err != nil {
			return nil, errors.Wrap(err, "scan candidate")
		}
		out = append(out, c)
	}
	return out, errors.Wrap(rows.Err(), "list candidates")
}

func wrapDB(err error, format string, args ...interface{}) error {
	if db.IsDatabaseClosed(err) {
		err = errors.Mark(err, db.ErrDatabaseClosed)
	}
	return errors.Wrapf(err, format, args...)
}

func short(key string) string {
	if len(key) > 12 {
		return key[:12]
	}
	return key
}
