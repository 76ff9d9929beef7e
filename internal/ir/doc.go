// Package ir provides the semantic model and query types shared by the
// compiler, the store and the CLI.
//
// This package contains type definitions and serialization helpers only. All
// other internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Field ids are always {table}_{field}, never normalised
//   - Explores are read-only once built; the compiler never mutates them
//   - All JSON tags use snake_case
//   - Iteration over maps that reaches observable output goes through a
//     sorted key list so compiled output is deterministic
package ir
