// Package store provides the key-value stores comande devices persist to.
//
// A device uses two stores through the same KV contract:
//   - a local store holding its own state (orders, counter, menus,
//     device id, sync watermark)
//   - a shared store holding the single sync envelope every device polls
//
// Implementations:
//   - Store: SQLite file. Several device processes may open the same file
//     as their shared medium.
//   - Memory: in-process map, used by tests and the scenario harness.
//   - pgstore.Store: PostgreSQL table, for devices on different hosts.
//
// # Write Semantics
//
// PutAll is all-or-nothing: either every entry is written or none is.
// There is no isolation between a Get and a later Put; the last physical
// write wins, which is exactly what the envelope protocol expects.
//
// # Leases (SQLite)
//
// Store.AcquireLease claims a named row in the leases table until a TTL
// expires. The CLI holds the "device" lease on a local store for as long
// as a process has it open, so a second process on the same file fails
// instead of writing over the first one's state.
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
