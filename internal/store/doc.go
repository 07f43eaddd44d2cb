// Package store is the SQLite persistence layer for the relay: events with
// their denormalized tag columns, the tag index, tombstones, content-hash
// dedup witnesses, and the read-only payments table.
//
// The storage backend is the source of truth. Callers hold no caches or
// locks; every operation round-trips through the database, and the only
// multi-statement writes (event + tag rows, tombstone + delete) run inside
// a single transaction.
package store
