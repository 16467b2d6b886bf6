// Package quotes is the Won-Quotes knowledge base: a durable collection of
// historically observed award prices.
//
// A Store owns the collection in memory and persists it through a Backend.
// Two backends are provided:
//
//   - FileBackend writes the whole collection as one JSON document.
//   - PebbleBackend keeps one key per record and upserts single records
//     without rewriting the collection.
//
// # Ingestion
//
// Ingest derives the normalized description, token set, category and a
// deterministic id from (order number, item code, description). Re-ingesting
// the same triple replaces the stored record. Records with a missing or
// non-positive unit price are rejected.
//
// # Capacity
//
// The collection is capped (DefaultMaxRecords). When a save finds the
// collection over the cap, the records ingested longest ago are evicted.
//
// # Concurrency
//
// All mutations go through the Store's lock, so writers inside one process
// are serialized. Two processes sharing a FileBackend document still race:
// each rewrites the whole document and the last writer wins. Use the pebble
// backend, or a single owning process, when that matters.
package quotes
