// Package store persists extraction runs in SQLite.
//
// Each run keeps its plugins, every resolved record and the diagnostics raised
// along the way, so winners and override chains can be queried after the run.
// The schema is embedded and versioned; a database written by another schema
// version is rejected with ErrSchemaMismatch. A lock file beside the database
// stops two extraction runs writing the same store.
package store
