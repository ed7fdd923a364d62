package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/CreativeUnicorns/suiteprefs"
)

const (
	sqliteCreateTableSQL = `
		CREATE TABLE IF NOT EXISTS preference_slots (
			namespace TEXT NOT NULL,
			key TEXT NOT NULL,
			value TEXT NOT NULL,
			encrypted BOOLEAN NOT NULL DEFAULT 0,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (namespace, key)
		);
	`

	sqliteUpsertSQL = `
		INSERT INTO preference_slots (namespace, key, value, encrypted, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(namespace, key)
		DO UPDATE SET value = excluded.value, encrypted = excluded.encrypted, updated_at = excluded.updated_at
	`

	sqliteSelectSQL = `
		SELECT namespace, key, value, encrypted, updated_at
		FROM preference_slots
		WHERE namespace = ? AND key = ?
	`

	sqliteSelectAllSQL = `
		SELECT namespace, key, value, encrypted, updated_at
		FROM preference_slots
		WHERE namespace = ?
	`

	sqliteDeleteSQL = `
		DELETE FROM preference_slots
		WHERE namespace = ? AND key = ?
	`
)

// SQLiteStorage implements suiteprefs.Backend using SQLite.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage initializes a new SQLiteStorage instance.
// It connects to the SQLite database at the specified path and runs migrations.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping sqlite database: %v", suiteprefs.ErrStorageUnavailable, err)
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return storage, nil
}

func (s *SQLiteStorage) migrate() error {
	_, err := s.db.Exec(sqliteCreateTableSQL)
	return err
}

// Load retrieves a slot by namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *SQLiteStorage) Load(ctx context.Context, namespace, key string) (*suiteprefs.Record, error) {
	var rec suiteprefs.Record

	err := s.db.QueryRowContext(ctx, sqliteSelectSQL, namespace, key).Scan(
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
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}

	return &rec, nil
}

// Save stores or updates a slot.
func (s *SQLiteStorage) Save(ctx context.Context, rec *suiteprefs.Record) error {
	_, err := s.db.ExecContext(ctx, sqliteUpsertSQL,
		rec.Namespace,
		rec.Key,
		rec.Value,
		rec.Encrypted,
		rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save slot: %w", err)
	}

	return nil
}

// Delete removes a slot by namespace and key.
// It returns suiteprefs.ErrNotFound if the slot does not exist.
func (s *SQLiteStorage) Delete(ctx context.Context, namespace, key string) error {
	result, err := s.db.ExecContext(ctx, sqliteDeleteSQL, namespace, key)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}

	if rows == 0 {
		return suiteprefs.ErrNotFound
	}

	return nil
}

// List retrieves every slot in a namespace.
func (s *SQLiteStorage) List(ctx context.Context, namespace string) (map[string]*suiteprefs.Record, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectAllSQL, namespace)
	if err != nil {
		return nil, fmt.Errorf("failed to query slots: %w", err)
	}
	return scanRecords(rows)
}

// Close closes the SQLite database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// scanRecords drains rows into a map keyed by slot key and closes rows.
func scanRecords(rows *sql.Rows) (map[string]*suiteprefs.Record, error) {
	defer rows.Close()

	out := make(map[string]*suiteprefs.Record)
	for rows.Next() {
		var rec suiteprefs.Record
		if err := rows.Scan(&rec.Namespace, &rec.Key, &rec.Value, &rec.Encrypted, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		out[rec.Key] = &rec
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return out, nil
}
