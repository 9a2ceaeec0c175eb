// Package store provides the SQLite run archive.
//
// Each rendered gel is stored as one runs row plus one bands row per
// fragment. Rows are written once and never updated.
//
// # Ordering
//
// Runs carry a logical seq assigned at insert time. Listings use
// ORDER BY seq DESC, id ASC COLLATE BINARY; wall-clock time is never used.
//
// # Fingerprints
//
// runs.fingerprint is the canonical hash of the gel configuration and run
// parameters, so identical inputs can be found with RunsByFingerprint.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - foreign_keys=ON: bands are deleted with their run
//   - user_version: schema migrations
package store
