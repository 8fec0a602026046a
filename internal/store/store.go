// Package store keeps named copies of exported workflow documents in a
// local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"attackbuilder/internal/workflow"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("snapshot not found")

// Snapshot describes a stored document without its body.
type Snapshot struct {
	Name        string
	Modules     int
	Connections int
	UpdatedAt   time.Time
}

type Store struct {
	conn *sql.DB
}

// Open opens (or creates) the snapshot database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	conn, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// one writer
	conn.SetMaxOpenConns(1)

	s := &Store{conn: conn}
	if err := s.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func (s *Store) migrate() error {
	_, err := s.conn.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		name TEXT PRIMARY KEY,
		document TEXT NOT NULL,
		modules INTEGER NOT NULL DEFAULT 0,
		connections INTEGER NOT NULL DEFAULT 0,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// Save stores doc under name, replacing any earlier snapshot with that
// name. doc must be a valid workflow document.
func (s *Store) Save(ctx context.Context, name string, doc []byte) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errors.New("snapshot name is empty")
	}
	parsed, err := workflow.Decode(doc)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	_, err = s.conn.ExecContext(ctx,
		`INSERT INTO snapshots (name, document, modules, connections, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			modules = excluded.modules,
			connections = excluded.connections,
			updated_at = excluded.updated_at`,
		name, string(doc), len(parsed.Instances), len(parsed.Connections), time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save snapshot %q: %w", name, err)
	}
	return nil
}

// Load returns the document stored under name.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	var doc string
	err := s.conn.QueryRowContext(ctx, `SELECT document FROM snapshots WHERE name = ?`, name).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("load snapshot %q: %w", name, err)
	}
	return []byte(doc), nil
}

// List returns every snapshot, most recently saved first.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.conn.QueryContext(ctx,
		`SELECT name, modules, connections, updated_at FROM snapshots ORDER BY updated_at DESC, name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		var (
			snap Snapshot
			ms   int64
		)
		if err := rows.Scan(&snap.Name, &snap.Modules, &snap.Connections, &ms); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snap.UpdatedAt = time.UnixMilli(ms)
		out = append(out, snap)
	}
	return out, rows.Err()
}

// Delete removes the snapshot called name.
func (s *Store) Delete(ctx context.Context, name string) error {
	res, err := s.conn.ExecContext(ctx, `DELETE FROM snapshots WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("delete snapshot %q: %w", name, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return nil
}
