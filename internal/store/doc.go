// Package store provides durable storage for provenance records: the
// mapping from a watermark fingerprint to the prompt that produced it.
//
// Two backends implement the same contract:
//
//   - [Store]: SQLite via mattn/go-sqlite3 (default)
//   - [BoltStore]: bbolt, a single-file key/value store
//
// # Contract
//
//   - Put inserts (fingerprint, prompt) only if the fingerprint is absent.
//     An existing record is never overwritten; the second write is a silent
//     no-op, reported through the inserted return value.
//   - Get returns the stored prompt, or found=false.
//   - Records are permanent. There is no delete path and no TTL.
//
// Insert-if-absent is resolved by the storage engine itself: the fingerprint
// primary key with ON CONFLICT DO NOTHING in SQLite, and a serialized write
// transaction in bbolt. Concurrent writers for the same key cannot lose or
// overwrite each other, and callers need no locking of their own.
//
// # SQLite configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL: balance durability/performance
//   - busy_timeout=5000: wait for locks up to 5 seconds
//   - one open connection: single writer, no SQLITE_BUSY between our own
//     connections
//
// The schema version is tracked in PRAGMA user_version. Version 1 imports
// rows from the legacy watermarks(hash, prompt) table when one is present.
package store
