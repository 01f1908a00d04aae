package worldstate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"eduledger/internal/sentinel"
)

// PostgresStore persists the world state in PostgreSQL. Each key carries a
// version column; Commit takes row locks on the read-set and aborts with
// sentinel.ErrConflict when an observed version has moved, so concurrent
// conflicting submissions resolve exactly like the in-memory store.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed world state store.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the world state tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS world_state (
	key     TEXT PRIMARY KEY,
	value   BYTEA NOT NULL,
	version BIGINT NOT NULL
);
CREATE TABLE IF NOT EXISTS world_state_history (
	key          TEXT NOT NULL,
	version      BIGINT NOT NULL,
	value        BYTEA,
	deleted      BOOLEAN NOT NULL DEFAULT FALSE,
	tx_id        TEXT NOT NULL,
	committed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (key, version)
);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure world state schema: %w", err)
	}
	return nil
}

// Snapshot returns a view backed by the live tables. Point-in-time isolation
// is not required for correctness here: Commit re-checks every observed
// version under row locks, so a read that raced a commit simply aborts and
// is retried by the runtime with a fresh snapshot.
func (s *PostgresStore) Snapshot(_ context.Context) (Snapshot, error) {
	return &postgresSnapshot{db: s.db}, nil
}

// Commit applies the proposal in a single database transaction.
func (s *PostgresStore) Commit(ctx context.Context, p Proposal, meta CommitMeta) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after successful commit

	for key, observed := range p.Reads {
		var current int64
		err := tx.QueryRowContext(ctx,
			`SELECT version FROM world_state WHERE key = $1 FOR UPDATE`, key,
		).Scan(&current)
		if errors.Is(err, sql.ErrNoRows) {
			current = 0
		} else if err != nil {
			return fmt.Errorf("lock read-set key %q: %w", key, err)
		}
		if Version(current) != observed {
			return sentinel.ErrConflict
		}
	}

	for _, w := range p.Writes {
		var next int64
		if w.Delete {
			err := tx.QueryRowContext(ctx,
				`DELETE FROM world_state WHERE key = $1 RETURNING version + 1`, w.Key,
			).Scan(&next)
			if errors.Is(err, sql.ErrNoRows) {
				next = 1
			} else if err != nil {
				return fmt.Errorf("delete key %q: %w", w.Key, err)
			}
		} else {
			err := tx.QueryRowContext(ctx, `
INSERT INTO world_state (key, value, version) VALUES ($1, $2, 1)
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, version = world_state.version + 1
RETURNING version`, w.Key, w.Value,
			).Scan(&next)
			if err != nil {
				return fmt.Errorf("upsert key %q: %w", w.Key, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO world_state_history (key, version, value, deleted, tx_id, committed_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
			w.Key, next, w.Value, w.Delete, meta.TxID, meta.Time,
		); err != nil {
			return fmt.Errorf("append history for key %q: %w", w.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit world state transaction: %w", err)
	}
	return nil
}

// likePrefix turns a raw key prefix into a LIKE pattern matching exactly the
// keys that start with it. LIKE compares character by character, so listings
// keep the memory store's byte-prefix semantics regardless of the database
// collation; a range comparison on the key column would not.
func likePrefix(prefix string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(prefix)
	return escaped + "%"
}

type postgresSnapshot struct {
	db *sql.DB
}

func (s *postgresSnapshot) Get(ctx context.Context, key string) ([]byte, Version, error) {
	var (
		value   []byte
		version int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT value, version FROM world_state WHERE key = $1`, key,
	).Scan(&value, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 0, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, 0, fmt.Errorf("get key %q: %w", key, err)
	}
	return value, Version(version), nil
}

func (s *postgresSnapshot) List(ctx context.Context, prefix string) ([]KV, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT key, value, version FROM world_state
WHERE key LIKE $1 ESCAPE '\'
ORDER BY key`, likePrefix(prefix))
	if err != nil {
		return nil, fmt.Errorf("list prefix %q: %w", prefix, err)
	}
	defer rows.Close() //nolint:errcheck // read-only iterator

	var out []KV
	for rows.Next() {
		var (
			kv      KV
			version int64
		)
		if err := rows.Scan(&kv.Key, &kv.Value, &version); err != nil {
			return nil, fmt.Errorf("scan list row: %w", err)
		}
		kv.Version = Version(version)
		out = append(out, kv)
	}
	return out, rows.Err()
}

func (s *postgresSnapshot) History(ctx context.Context, key string) ([]VersionedValue, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT value, version, deleted, tx_id, committed_at FROM world_state_history
WHERE key = $1 ORDER BY version`, key)
	if err != nil {
		return nil, fmt.Errorf("history for key %q: %w", key, err)
	}
	defer rows.Close() //nolint:errcheck // read-only iterator

	var out []VersionedValue
	for rows.Next() {
		var (
			vv      VersionedValue
			version int64
		)
		if err := rows.Scan(&vv.Value, &version, &vv.Deleted, &vv.TxID, &vv.CommittedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		vv.Version = Version(version)
		out = append(out, vv)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return out, nil
}
