// Package store provides the SQLite journal of slot changes.
//
// The journal is append-only: one row per applied write, accepted or
// rejected, carrying the flow token, the logical seq, the old, proposed and
// committed values, and the cause (an external Set or a reaction).
//
// # Patterns
//
// Idempotent writes
//   - Change IDs are content-addressed (ir.ChangeID)
//   - INSERT ... ON CONFLICT(id) DO NOTHING makes rewriting a change a no-op
//
// Logical time
//   - All ordering uses seq INTEGER (logical clock), never timestamps
//
// Deterministic reads
//   - Multi-row queries use ORDER BY seq ASC, id ASC COLLATE BINARY
//
// Canonical values
//   - Values are stored as RFC 8785 canonical JSON TEXT
//
// # Database Configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
package store
