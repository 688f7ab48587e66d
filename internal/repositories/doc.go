// Package repositories implements SQLite persistence for the pipeline's three
// domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for
// human-readable ordering. All repositories support soft deletes via
// deleted_at timestamps and exclude deleted records from queries by default.
//
// Key Implementations:
//   - [PlaylistRepository] : catalog-A playlist tracking
//   - [TrackRepository] : canonical track persistence and phase-eligibility queries (I2-I4)
//   - [LinkRepository] : playlist/track membership, ordering, and view paths
//   - [TrackDedup] : ISRC/title-artist dedup wrapper used during ingestion
//
// Sequence numbers provide stable, human-readable ordering independent of
// UUIDs and creation timestamps. [NextSequence] atomically increments
// per-table sequence counters in dedicated sequence tables.
package repositories
