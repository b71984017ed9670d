// Package sqlite provides a SQLite-backed inferred-graph store. Records are
// kept in memory for reads and written through to the database on every
// committed transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/internal/infra/persistence/rows"
	"orthoinfer/pkg/domain"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

var _ domain.PersistentStore = (*Store)(nil)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		db_id INTEGER PRIMARY KEY,
		kind TEXT NOT NULL,
		payload BLOB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inferences (
		key TEXT PRIMARY KEY,
		source_id INTEGER NOT NULL,
		species TEXT NOT NULL,
		target_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		mocked INTEGER NOT NULL DEFAULT 0
	)`,
}

// Store persists the inferred graph to SQLite.
type Store struct {
	*memory.Store
	db   *sql.DB
	path string
}

// NewStore opens (or creates) the database at path and loads its records.
func NewStore(path string, engine *domain.RulesEngine) (*Store, error) {
	if path == "" {
		path = "orthoinfer.db"
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	ctx := context.Background()
	for _, ddl := range schema {
		if _, err := db.ExecContext(ctx, ddl); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create tables: %w", err)
		}
	}
	s := &Store{db: db, path: path}
	s.Store = memory.NewStore(engine, memory.WithCommitHook(s.persist))
	if err := s.load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) load(ctx context.Context) error {
	var loader rows.Loader
	recs, err := s.db.QueryContext(ctx, `SELECT kind, payload FROM records ORDER BY db_id`)
	if err != nil {
		return fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = recs.Close() }()
	for recs.Next() {
		var kind string
		var payload []byte
		if err := recs.Scan(&kind, &payload); err != nil {
			return fmt.Errorf("scan record: %w", err)
		}
		if err := loader.Record(kind, payload); err != nil {
			return err
		}
	}
	if err := recs.Err(); err != nil {
		return fmt.Errorf("iterate records: %w", err)
	}

	infs, err := s.db.QueryContext(ctx, `SELECT source_id, species, target_id, kind, mocked FROM inferences`)
	if err != nil {
		return fmt.Errorf("select inferences: %w", err)
	}
	defer func() { _ = infs.Close() }()
	for infs.Next() {
		var rec domain.InferenceRecord
		if err := infs.Scan(&rec.Source, &rec.Species, &rec.Target, &rec.Kind, &rec.Mocked); err != nil {
			return fmt.Errorf("scan inference: %w", err)
		}
		loader.Inference(rec)
	}
	if err := infs.Err(); err != nil {
		return fmt.Errorf("iterate inferences: %w", err)
	}
	s.ImportState(loader.Snapshot())
	return nil
}

// persist writes the rows touched by a transaction in one SQL transaction.
func (s *Store) persist(ctx context.Context, changes []domain.Change) (retErr error) {
	records, inferences, err := rows.FromChanges(changes)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `INSERT INTO records(db_id,kind,payload) VALUES(?,?,?) ON CONFLICT(db_id) DO UPDATE SET kind=excluded.kind, payload=excluded.payload`,
			int64(r.ID), string(r.Kind), r.Payload); err != nil {
			return fmt.Errorf("upsert record %d: %w", r.ID, err)
		}
	}
	for _, rec := range inferences {
		if _, err := tx.ExecContext(ctx, `INSERT INTO inferences(key,source_id,species,target_id,kind,mocked) VALUES(?,?,?,?,?,?) ON CONFLICT(key) DO UPDATE SET target_id=excluded.target_id, kind=excluded.kind, mocked=excluded.mocked`,
			rows.InferenceKey(rec), int64(rec.Source), rec.Species, int64(rec.Target), rec.Kind, rec.Mocked); err != nil {
			return fmt.Errorf("upsert inference %s: %w", rows.InferenceKey(rec), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
