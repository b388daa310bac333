// Package sqlite persists kbase metadata in a single SQLite database.
//
// It uses modernc.org/sqlite, a pure Go driver, so the binary builds without
// CGO. One Store hands out several port implementations over the same
// connection pool:
//
//   - DocumentStore: document status records and their chunks
//   - RetrievalLogStore: one row per search call
//   - SchedulerStore: background task state and run history
//
// The sqlite vector index shares the handle returned by Store.DB.
//
// # Schema
//
// Versioned scripts in migrations/ are embedded at build time. The highest
// applied version is kept in PRAGMA user_version.
//
// # Data Location
//
// By default the database is stored at ~/.kbase/data/kbase.db.
package sqlite
