// Package ir holds the declarative representation of slot hosts and the
// change records the engine produces.
//
// ir imports nothing internal; every other package may import it.
//
// Constraints:
//   - Values are IRValue: string, int64, bool, array, object. No floats,
//     no null, so that canonical JSON and content hashes are stable.
//   - JSON tags are snake_case.
//   - Ordering uses logical seq numbers, never wall-clock time.
package ir
