package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"github.com/ibeckermayer/hotwatch/internal/types"
)

// DB keeps the dedup keys and an archive of accepted items in SQLite.
// It implements dedup.Set: keys added since the last Load or Flush stay
// in memory until Flush commits them in one transaction.
type DB struct {
	db      *sql.DB
	log     zerolog.Logger
	keys    map[string]struct{}
	pending map[string]struct{}
}

// Open creates a DB with SQLite backend at dbPath
func Open(dbPath string, logger zerolog.Logger) (*DB, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// single writer process, single connection
	db.SetMaxOpenConns(1)

	s := &DB{
		db:      db,
		log:     logger,
		keys:    make(map[string]struct{}),
		pending: make(map[string]struct{}),
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *DB) Close() error {
	return s.db.Close()
}

// migrate creates the database schema
func (s *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_keys (
		key TEXT PRIMARY KEY,
		first_seen DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		identity_key TEXT NOT NULL,
		rank INTEGER NOT NULL,
		title TEXT NOT NULL,
		url TEXT,
		heat_value TEXT,
		answer_count INTEGER,
		follower_count INTEGER,
		view_count INTEGER,
		tags TEXT,
		detail_status TEXT,
		observed_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_items_observed_at ON items(observed_at);
	CREATE INDEX IF NOT EXISTS idx_items_identity_key ON items(identity_key);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Load reads every persisted key into memory. A failing read is logged
// and leaves the set empty.
func (s *DB) Load() error {
	s.keys = make(map[string]struct{})
	s.pending = make(map[string]struct{})

	rows, err := s.db.Query(`SELECT key FROM seen_keys`)
	if err != nil {
		s.log.Warn().Err(err).Msg("could not read seen keys, starting empty")
		return nil
	}
	defer rows.Close()

	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			s.log.Warn().Err(err).Msg("could not scan seen key, starting empty")
			s.keys = make(map[string]struct{})
			return nil
		}
		s.keys[key] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		s.log.Warn().Err(err).Msg("could not read seen keys, starting empty")
		s.keys = make(map[string]struct{})
	}
	return nil
}

func (s *DB) Contains(key string) bool {
	if _, ok := s.keys[key]; ok {
		return true
	}
	_, ok := s.pending[key]
	return ok
}

func (s *DB) Add(key string) {
	if _, ok := s.keys[key]; ok {
		return
	}
	s.pending[key] = struct{}{}
}

// Flush commits the pending keys in a single transaction
func (s *DB) Flush() error {
	if len(s.pending) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin flush: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for key := range s.pending {
		if _, err := tx.Exec(`INSERT OR IGNORE INTO seen_keys (key, first_seen) VALUES (?, ?)`, key, now); err != nil {
			return fmt.Errorf("failed to insert key %s: %w", key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit keys: %w", err)
	}

	for key := range s.pending {
		s.keys[key] = struct{}{}
	}
	s.pending = make(map[string]struct{})
	return nil
}

func (s *DB) Rollback() {
	s.pending = make(map[string]struct{})
}

func (s *DB) Len() int { return len(s.keys) + len(s.pending) }

// Archive stores the accepted items of one run
func (s *DB) Archive(ctx context.Context, runID string, items []types.HotItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO items (run_id, identity_key, rank, title, url, heat_value,
			answer_count, follower_count, view_count, tags, detail_status, observed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		tagsJSON, err := json.Marshal(it.Tags)
		if err != nil {
			return fmt.Errorf("failed to encode tags of %s: %w", it.IdentityKey, err)
		}
		_, err = stmt.ExecContext(ctx, runID, it.IdentityKey, it.Rank, it.Title, it.URL, it.HeatValue,
			it.AnswerCount, it.FollowerCount, it.ViewCount, string(tagsJSON), string(it.Status), it.ObservedAt.UTC())
		if err != nil {
			return fmt.Errorf("failed to archive %s: %w", it.IdentityKey, err)
		}
	}

	return tx.Commit()
}

// ArchivedItems returns the items observed at or after since, newest first
func (s *DB) ArchivedItems(ctx context.Context, since time.Time) ([]types.HotItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT identity_key, rank, title, url, heat_value, answer_count,
			follower_count, view_count, tags, detail_status, observed_at
		FROM items
		WHERE observed_at >= ?
		ORDER BY observed_at DESC, rank ASC
	`, since.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []types.HotItem
	for rows.Next() {
		var it types.HotItem
		var tagsJSON, status string

		err := rows.Scan(&it.IdentityKey, &it.Rank, &it.Title, &it.URL, &it.HeatValue, &it.AnswerCount,
			&it.FollowerCount, &it.ViewCount, &tagsJSON, &status, &it.ObservedAt)
		if err != nil {
			return nil, err
		}

		if tagsJSON != "" {
			if err := json.Unmarshal([]byte(tagsJSON), &it.Tags); err != nil {
				s.log.Warn().Err(err).Str("key", it.IdentityKey).Msg("could not decode archived tags, dropping them")
				it.Tags = nil
			}
		}
		it.Status = types.DetailStatus(status)
		items = append(items, it)
	}
	return items, rows.Err()
}
