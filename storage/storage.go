// Package storage provides suiteprefs.Backend implementations: in-memory, SQLite,
// PostgreSQL and MongoDB.
package storage

import (
	"fmt"

	"github.com/CreativeUnicorns/suiteprefs"
)

var (
	_ suiteprefs.Backend = (*MemoryStorage)(nil)
	_ suiteprefs.Backend = (*SQLiteStorage)(nil)
	_ suiteprefs.Backend = (*PostgresStorage)(nil)
	_ suiteprefs.Backend = (*MongoStorage)(nil)
)

// Open returns the Backend named by driver. dsn is the SQLite path, the PostgreSQL
// connection string or the MongoDB URI; it is ignored for "memory".
func Open(driver, dsn string) (suiteprefs.Backend, error) {
	switch driver {
	case "", "memory":
		return NewMemoryStorage(), nil
	case "sqlite", "sqlite3":
		return wrap(NewSQLiteStorage(dsn))
	case "postgres", "postgresql":
		return wrap(NewPostgresStorage(dsn))
	case "mongo", "mongodb":
		return wrap(NewMongoStorage(dsn, DefaultMongoDatabase))
	default:
		return nil, fmt.Errorf("%w: unknown storage driver %q", suiteprefs.ErrInvalidInput, driver)
	}
}

// wrap keeps a failed constructor from producing a non-nil Backend holding a nil pointer.
func wrap[B suiteprefs.Backend](b B, err error) (suiteprefs.Backend, error) {
	if err != nil {
		return nil, err
	}
	return b, nil
}
