package model

// State is the local view of one device: the order set, the next id to
// assign, and both menu lists.
type State struct {
	Orders  []Order
	Counter int
	Dishes  []string
	Drinks  []string
}

// Envelope is the single snapshot exchanged through the shared store.
// Timestamp is in Unix milliseconds.
type Envelope struct {
	Orders    []Order  `json:"orders"`
	Counter   int      `json:"orderIdCounter"`
	Dishes    []string `json:"dishes"`
	Drinks    []string `json:"drinks"`
	DeviceID  string   `json:"deviceId"`
	Timestamp int64    `json:"timestamp"`
}

// Clone returns a deep copy of s. Nil slices become empty slices so the
// copy always serialises as arrays.
func (s State) Clone() State {
	out := State{
		Orders:  make([]Order, len(s.Orders)),
		Counter: s.Counter,
		Dishes:  cloneStrings(s.Dishes),
		Drinks:  cloneStrings(s.Drinks),
	}
	for i, o := range s.Orders {
		out.Orders[i] = o.Clone()
	}
	return out
}

// Find returns the index of the order with the given id, or -1.
func (s State) Find(id int) int {
	for i := range s.Orders {
		if s.Orders[i].ID == id {
			return i
		}
	}
	return -1
}

// IDs returns the order ids in stored order.
func (s State) IDs() []int {
	ids := make([]int, len(s.Orders))
	for i, o := range s.Orders {
		ids[i] = o.ID
	}
	return ids
}

// Envelope wraps a copy of s for publication by deviceID at timestamp.
func (s State) Envelope(deviceID string, timestamp int64) Envelope {
	c := s.Clone()
	return Envelope{
		Orders:    c.Orders,
		Counter:   c.Counter,
		Dishes:    c.Dishes,
		Drinks:    c.Drinks,
		DeviceID:  deviceID,
		Timestamp: timestamp,
	}
}

// State returns a copy of the snapshot carried by e.
func (e Envelope) State() State {
	return State{
		Orders:  e.Orders,
		Counter: e.Counter,
		Dishes:  e.Dishes,
		Drinks:  e.Drinks,
	}.Clone()
}
