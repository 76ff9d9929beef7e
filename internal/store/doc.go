// Package store provides SQLite-backed storage for compiled explores and
// saved charts.
//
// Two kinds of data are kept:
//   - Explores: the explore catalog of a project, stored as canonical JSON
//     with its fingerprint so re-syncing an unchanged explore is a no-op
//   - Saved charts: a named metric query bound to an explore, with an
//     append-only list of versions
//
// Compiled queries are never stored. A saved chart is compiled fresh from
// its latest raw version every time it is run.
//
// # Ordering
//
// Every write takes a seq from a logical clock. List queries order by
// name or seq with COLLATE BINARY so results are identical across runs.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Fingerprints are computed by internal/ir using RFC 8785 canonical JSON
// and SHA-256 with domain separation.
package store
