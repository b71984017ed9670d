// Package postgres provides a Postgres-backed inferred-graph store that
// mirrors the in-memory semantics and writes every committed transaction
// through to the database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"orthoinfer/internal/infra/persistence/memory"
	"orthoinfer/internal/infra/persistence/rows"
	"orthoinfer/pkg/domain"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

// Compile-time contract assertion ensuring the store satisfies the domain interface.
var _ domain.PersistentStore = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/orthoinfer?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS records (
		db_id BIGINT PRIMARY KEY,
		kind TEXT NOT NULL,
		payload JSONB NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS inferences (
		key TEXT PRIMARY KEY,
		source_id BIGINT NOT NULL,
		species TEXT NOT NULL,
		target_id BIGINT NOT NULL,
		kind TEXT NOT NULL,
		mocked BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS inferences_species_idx ON inferences (species)`,
}

// Store persists the inferred graph to Postgres while serving reads from
// the in-memory working set.
type Store struct {
	*memory.Store
	db *sql.DB
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the tables exist and hydrates the working set.
func NewStore(ctx context.Context, dsn string, engine *domain.RulesEngine) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	s := &Store{db: db}
	s.Store = memory.NewStore(engine, memory.WithCommitHook(s.persist))
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ImportState(snapshot)
	return s, nil
}

// Close closes the database pool.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

func applySchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	var loader rows.Loader
	recs, err := db.QueryContext(ctx, `SELECT kind, payload FROM records ORDER BY db_id`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select records: %w", err)
	}
	defer func() { _ = recs.Close() }()
	for recs.Next() {
		var kind string
		var payload []byte
		if err := recs.Scan(&kind, &payload); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan record: %w", err)
		}
		if err := loader.Record(kind, payload); err != nil {
			return memory.Snapshot{}, err
		}
	}
	if err := recs.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate records: %w", err)
	}

	infs, err := db.QueryContext(ctx, `SELECT source_id, species, target_id, kind, mocked FROM inferences`)
	if err != nil {
		return memory.Snapshot{}, fmt.Errorf("select inferences: %w", err)
	}
	defer func() { _ = infs.Close() }()
	for infs.Next() {
		var rec domain.InferenceRecord
		if err := infs.Scan(&rec.Source, &rec.Species, &rec.Target, &rec.Kind, &rec.Mocked); err != nil {
			return memory.Snapshot{}, fmt.Errorf("scan inference: %w", err)
		}
		loader.Inference(rec)
	}
	if err := infs.Err(); err != nil {
		return memory.Snapshot{}, fmt.Errorf("iterate inferences: %w", err)
	}
	return loader.Snapshot(), nil
}

func (s *Store) persist(ctx context.Context, changes []domain.Change) error {
	records, inferences, err := rows.FromChanges(changes)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for _, r := range records {
		if _, err := tx.ExecContext(ctx, `INSERT INTO records (db_id, kind, payload) VALUES ($1,$2,$3) ON CONFLICT (db_id) DO UPDATE SET kind=EXCLUDED.kind, payload=EXCLUDED.payload`,
			int64(r.ID), string(r.Kind), r.Payload); err != nil {
			return fmt.Errorf("upsert record %d: %w", r.ID, err)
		}
	}
	for _, rec := range inferences {
		if _, err := tx.ExecContext(ctx, `INSERT INTO inferences (key, source_id, species, target_id, kind, mocked) VALUES ($1,$2,$3,$4,$5,$6) ON CONFLICT (key) DO UPDATE SET target_id=EXCLUDED.target_id, kind=EXCLUDED.kind, mocked=EXCLUDED.mocked`,
			rows.InferenceKey(rec), int64(rec.Source), rec.Species, int64(rec.Target), rec.Kind, rec.Mocked); err != nil {
			return fmt.Errorf("upsert inference %s: %w", rows.InferenceKey(rec), err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
