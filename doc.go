// Package suiteprefs provides the reactive preference services behind the tool suite:
// a fail-safe persistent key-value store, a preference resolver, and a handle-based
// subscription registry.
//
// The theme, i18n and telemetry subpackages build on these pieces. Storage backends
// (memory, SQLite, PostgreSQL, MongoDB), caches (in-memory, Redis) and at-rest
// encryption are pluggable through functional options.
package suiteprefs
