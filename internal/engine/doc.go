// Package engine runs one device: it owns the device's in-memory state and
// composes the persistence gateway, the reconciliation merge, the
// lifecycle timers and the notification dispatcher around it.
//
// ARCHITECTURE:
//
// Single Writer:
// Every mutation of the device state happens under one lock, whether it
// comes from a user action, a lifecycle timer or a sync tick. Each
// mutation is followed by a save of the full snapshot, which also
// publishes the envelope to other devices.
//
// Sync Tick:
// Run polls the shared envelope every poll interval. Foreign envelopes
// newer than the device's watermark are merged with reconcile.Merge; the
// merged state is saved locally together with the watermark and is
// published again only when it holds information the envelope lacks.
//
// Timers:
// The two automatic lifecycle steps are scheduled only for orders this
// device created. Orders absorbed from other devices already carry the
// status their creator has reached.
//
// Event Feed:
// Everything that happens is appended to an unbounded FIFO feed that a
// presentation layer drains with Events and waits on with Wait.
//
// Storage Failures:
// A failed save keeps the in-memory change, emits a warning event and
// returns the storage error. The device keeps working locally.
package engine
