// Package model provides the shared domain types for comande.
//
// This package contains type definitions and pure helpers only. All other
// internal packages import model; model imports nothing internal.
//
// Key design constraints:
//   - Order ids are immutable once assigned
//   - Status only moves forward: pending -> preparing -> ready -> served
//   - JSON tags follow the wire format of the shared store (camelCase keys)
//   - Menu and table labels are NFC normalised before comparison
package model
