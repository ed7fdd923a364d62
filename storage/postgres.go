package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/CreativeUnicorns/suiteprefs"
)

// sqlOpenFunc is a package-level variable that can be overridden for testing.
var sqlOpenFunc = sql.Open

const (
	createTableSQL = `
		CREATE TABLE IF NOT EXISTS preference_slots (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			encrypted BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		);
	`

	upsertSQL = `
		INSERT INTO preference_slots (namespace, key, value, encrypted, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (namespace, key)
		DO UPDATE SET value = $3, encrypted = $4, updated_at = $5
	`

	selectSQL = `
		SELECT namespace, key, value, encrypted, updated_at
		FROM preference_slots
		WHERE namespace = $1 AND key = $2
	`

	selectAllSQL = `
		SELECT namespace, key, value, encrypted, updated_at
		FROM preference_slots
		WHERE namespace = $1
	`

	deleteSQL = `
		DELETE FROM preference_slots
		WHERE namespace = $1 AND key = $2
	`
)

// PostgresStorage implements suiteprefs.Backend using PostgreSQL.
// Values are kept as TEXT rather than JSONB because encrypted payloads are opaque.
type PostgresStorage struct {
	db *sql.DB
}

// NewPostgresStorage initializes a new PostgresStorage instance.
// It connects to the PostgreSQL database using the provided connection string and runs migrations.
func NewPostgresStorage(connString string) (*PostgresStorage, error) {
	db, err := sqlOpenFunc("postgres", connString)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to ping database: %w", err)
	}

	storage := &PostgresStorage{db: db}
	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *PostgresStorage) migrate() error {
	if _, err := s.db.Exec(createTableSQL); err != nil {
		return fmt.Errorf("postgres: failed to execute create table statement: %w", err)
	}
	return nil
}

// Load retrieves a slot by namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *PostgresStorage) Load(ctx context.Context, namespace, key string) (*suiteprefs.Record, error) {
	var rec suiteprefs.Record

	err := s.db.QueryRowContext(ctx, selectSQL, namespace, key).Scan(
		&rec.Namespace,
		&rec.Key,
		&rec.Value,
		&rec.Encrypted,
		&rec.UpdatedAt,
	)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, suiteprefs.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan slot '%s/%s': %w", namespace, key, err)
	}

	return &rec, nil
}

// Save stores or updates a slot.
func (s *PostgresStorage) Save(ctx context.Context, rec *suiteprefs.Record) error {
	_, err := s.db.ExecContext(ctx, upsertSQL,
		rec.Namespace,
		rec.Key,
		rec.Value,
		rec.Encrypted,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: failed to execute upsert for slot '%s/%s': %w", rec.Namespace, rec.Key, err)
	}

	return nil
}

// Delete removes a slot by namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *PostgresStorage) Delete(ctx context.Context, namespace, key string) error {
	result, err := s.db.ExecContext(ctx, deleteSQL, namespace, key)
	if err != nil {
		return fmt.Errorf("postgres: failed to execute delete for slot '%s/%s': %w", namespace, key, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to get affected rows for slot '%s/%s': %w", namespace, key, err)
	}

	if rowsAffected == 0 {
		return suiteprefs.ErrNotFound
	}

	return nil
}

// List retrieves every slot in a namespace.
func (s *PostgresStorage) List(ctx context.Context, namespace string) (map[string]*suiteprefs.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectAllSQL, namespace)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query slots for namespace '%s': %w", namespace, err)
	}
	return scanRecords(rows)
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
