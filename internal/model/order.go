package model

import (
	"slices"
	"time"
)

// Status is the lifecycle position of an order.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPreparing Status = "preparing"
	StatusReady     Status = "ready"
	StatusServed    Status = "served"
)

// lifecycle lists statuses in the only order they may be visited.
var lifecycle = []Status{StatusPending, StatusPreparing, StatusReady, StatusServed}

// statusLabels are the user-facing labels shown by the presentation layer.
var statusLabels = map[Status]string{
	StatusPending:   "In Attesa",
	StatusPreparing: "In Preparazione",
	StatusReady:     "Pronto",
	StatusServed:    "Servito",
}

// Rank returns the position of s in the lifecycle, or -1 for unknown values.
func (s Status) Rank() int {
	return slices.Index(lifecycle, s)
}

// Valid reports whether s is one of the four lifecycle statuses.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// Next returns the status that follows s. ok is false for served and for
// unknown values.
func (s Status) Next() (next Status, ok bool) {
	r := s.Rank()
	if r < 0 || r == len(lifecycle)-1 {
		return "", false
	}
	return lifecycle[r+1], true
}

// Terminal reports whether no transition may follow s.
func (s Status) Terminal() bool {
	return s == StatusServed
}

// Label returns the display label, falling back to the raw value.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// Order is a single table order.
type Order struct {
	ID              int       `json:"id"`
	Table           string    `json:"table"`
	Dishes          []string  `json:"dishes"`
	Drinks          []string  `json:"drinks"`
	CreatedAt       time.Time `json:"timestamp"`
	Status          Status    `json:"status"`
	StatusUpdatedBy string    `json:"statusUpdatedBy,omitempty"`
	StatusUpdatedAt time.Time `json:"statusUpdatedAt,omitzero"`
	DeviceID        string    `json:"deviceId"`
}

// Clone returns a deep copy of o.
func (o Order) Clone() Order {
	o.Dishes = cloneStrings(o.Dishes)
	o.Drinks = cloneStrings(o.Drinks)
	return o
}

func cloneStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
