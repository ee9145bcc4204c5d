// Package journal provides an SQLite-backed record of processed messages.
//
// Every message the dispatch loop handles can be appended as a Record:
// its sequence number, id, kind, subject, outcome and whether it caused a
// render or a save round. The journal is diagnostic only. Content state is
// never rebuilt from it.
//
// The dispatch loop never touches SQLite directly. It hands records to a
// Writer, which queues them and appends on its own goroutine.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads (sheetsync trace) during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// All reads are ordered by seq ASC.
package journal
