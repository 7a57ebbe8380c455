// Copyright 2025 Certen Protocol

package counterstore

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/google/uuid"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// PGStore is a Postgres-backed CounterStore with a pooled *sql.DB connection.
type PGStore struct {
	db     *sql.DB
	logger *log.Logger
}

// PGOption is a functional option for configuring a PGStore.
type PGOption func(*PGStore)

// WithLogger sets a custom logger for the store.
func WithLogger(logger *log.Logger) PGOption {
	return func(s *PGStore) {
		s.logger = logger
	}
}

// NewPGStore opens a pooled connection to dsn and verifies it is reachable.
func NewPGStore(dsn string, maxConns, minConns int, opts ...PGOption) (*PGStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("counterstore: dsn cannot be empty")
	}

	store := &PGStore{logger: log.New(log.Writer(), "[CounterStore] ", log.LstdFlags)}
	for _, opt := range opts {
		opt(store)
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("counterstore: open database: %w", err)
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(minConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("counterstore: ping database: %w", err)
	}

	store.db = db
	return store, nil
}

// Close closes the underlying connection pool.
func (s *PGStore) Close() error {
	return s.db.Close()
}

func (s *PGStore) Get(ctx context.Context, credentialID uuid.UUID) (*CounterRecord, error) {
	var rec CounterRecord
	var parentID sql.NullString

	row := s.db.QueryRowContext(ctx,
		`SELECT credential_id, used, max, revoked, expires_at, parent_id FROM counters WHERE credential_id = $1`,
		credentialID)
	if err := row.Scan(&rec.CredentialID, &rec.Used, &rec.Max, &rec.Revoked, &rec.ExpiresAt, &parentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if parentID.Valid {
		id, err := uuid.Parse(parentID.String)
		if err != nil {
			return nil, err
		}
		rec.ParentID = &id
	}
	return &rec, nil
}

func (s *PGStore) RecordIssuance(ctx context.Context, rec *CounterRecord) error {
	var parentID any
	if rec.ParentID != nil {
		parentID = rec.ParentID.String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO counters (credential_id, used, max, revoked, expires_at, parent_id)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.CredentialID, rec.Used, rec.Max, rec.Revoked, rec.ExpiresAt, parentID)
	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return ErrAlreadyExists
		}
		return err
	}
	return nil
}

// CASIncrement performs the compare-and-swap as a single atomic UPDATE:
// it only advances Used when the credential is neither revoked nor
// exhausted, avoiding the read-then-write race a SELECT-then-UPDATE pair
// would expose to concurrent verification requests.
func (s *PGStore) CASIncrement(ctx context.Context, credentialID uuid.UUID) (uint64, error) {
	var used uint64
	row := s.db.QueryRowContext(ctx,
		`UPDATE counters SET used = used + 1
		 WHERE credential_id = $1 AND revoked = false AND used < max
		 RETURNING used`,
		credentialID)

	switch err := row.Scan(&used); {
	case err == nil:
		return used, nil
	case errors.Is(err, sql.ErrNoRows):
		rec, getErr := s.Get(ctx, credentialID)
		if getErr != nil {
			return 0, getErr
		}
		if rec.Revoked {
			return 0, ErrRevoked
		}
		return 0, ErrCounterExhausted
	default:
		return 0, err
	}
}

func (s *PGStore) Revoke(ctx context.Context, credentialID uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `UPDATE counters SET revoked = true WHERE credential_id = $1`, credentialID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PGStore) ObservedTag(ctx context.Context, credentialID uuid.UUID, serverID string, m1Tag, nonce []byte, window time.Duration) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var existingNonce []byte
	var observedAt time.Time
	row := tx.QueryRowContext(ctx,
		`SELECT nonce, observed_at FROM observed_tags WHERE credential_id = $1 AND server_id = $2 AND m1_tag = $3 FOR UPDATE`,
		credentialID, serverID, m1Tag)

	replayed := false
	switch err := row.Scan(&existingNonce, &observedAt); {
	case err == nil:
		if time.Since(observedAt) < window && string(existingNonce) != string(nonce) {
			replayed = true
		}
	case errors.Is(err, sql.ErrNoRows):
		// first sighting, fall through to insert
	default:
		return false, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO observed_tags (credential_id, server_id, m1_tag, nonce, observed_at)
		 VALUES ($1, $2, $3, $4, now())
		 ON CONFLICT (credential_id, server_id, m1_tag) DO UPDATE SET nonce = EXCLUDED.nonce, observed_at = EXCLUDED.observed_at`,
		credentialID, serverID, m1Tag, nonce)
	if err != nil {
		return false, err
	}

	return replayed, tx.Commit()
}

// MigrateUp applies all embedded migrations not yet recorded in
// schema_migrations.
func (s *PGStore) MigrateUp(ctx context.Context) error {
	migrations, err := s.readMigrations()
	if err != nil {
		return fmt.Errorf("counterstore: read migrations: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := s.db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err == nil {
		defer rows.Close()
		for rows.Next() {
			var version string
			if err := rows.Scan(&version); err != nil {
				return err
			}
			applied[version] = true
		}
	}

	for _, m := range migrations {
		if applied[m.version] {
			continue
		}
		s.logger.Printf("applying migration %s", m.version)
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("counterstore: apply migration %s: %w", m.version, err)
		}
		if err := tx.Commit(); err != nil {
			return err
		}
	}
	return nil
}

type migration struct {
	version string
	sql     string
}

func (s *PGStore) readMigrations() ([]migration, error) {
	var migrations []migration
	err := fs.WalkDir(migrationsFS, "migrations", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".sql") {
			return nil
		}
		content, err := migrationsFS.ReadFile(path)
		if err != nil {
			return err
		}
		migrations = append(migrations, migration{
			version: strings.TrimSuffix(d.Name(), ".sql"),
			sql:     string(content),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].version < migrations[j].version })
	return migrations, nil
}
