// Package repositories implements SQLite persistence for the catalog.
//
// Key Implementations:
//   - [EntryRepository] : catalog entries with their per-user ratings; soft deletes via deleted_at
//   - [UserRepository] : users keyed by email or username; Delete disables, Purge removes
//
// Users carry a sequence number for stable, human-readable ordering independent of their ids.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
