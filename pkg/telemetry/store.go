package telemetry

import (
	"sync/atomic"
	"time"
)

// Snapshot is an immutable set of values published together.
type Snapshot struct {
	Generation uint64
	Time       time.Time
	Values     []Value
}

// Numeric returns the values sent in data packets, in order.
func (s *Snapshot) Numeric() []Value {
	values := make([]Value, 0, len(s.Values))
	for _, v := range s.Values {
		if v.Kind == Numeric {
			values = append(values, v)
		}
	}
	return values
}

// Lookup finds the value with id.
func (s *Snapshot) Lookup(id uint8) (Value, bool) {
	for _, v := range s.Values {
		if v.ID == id {
			return v, true
		}
	}
	return Value{}, false
}

var empty = &Snapshot{}

// Store holds the latest snapshot. Publish is called by a single writer;
// Read may be called concurrently and never blocks.
// The zero value is an empty store.
type Store struct {
	current atomic.Pointer[Snapshot]
	// Now is the clock, time.Now if nil.
	Now func() time.Time
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Publish replaces the snapshot with a copy of values and returns the
// new generation.
func (s *Store) Publish(values []Value) uint64 {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	snap := &Snapshot{
		Generation: s.Read().Generation + 1,
		Time:       now(),
		Values:     append([]Value(nil), values...),
	}
	s.current.Store(snap)
	return snap.Generation
}

// Read returns the latest snapshot, generation 0 if nothing was published.
func (s *Store) Read() *Snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return empty
}
