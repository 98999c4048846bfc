// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package pipeline

import (
	"fmt"
	"maps"
	"slices"
)

// InitialKey is the reserved state key holding a run's initial input. It is
// also the input key of the first stage.
const InitialKey = "initial"

// State is the key/value bag threaded through one run. Keys are write-once:
// the bag only grows. A State belongs to a single run and is not safe for
// concurrent mutation.
type State struct {
	values map[string]string
}

// NewState returns an empty state.
func NewState() *State {
	return &State{values: make(map[string]string)}
}

// StateFrom copies values into a new state.
func StateFrom(values map[string]string) *State {
	s := NewState()
	maps.Copy(s.values, values)
	return s
}

// Get returns the value at key.
func (s *State) Get(key string) (string, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether key is set.
func (s *State) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Set stores value at key. An existing key is never overwritten.
func (s *State) Set(key, value string) error {
	if _, ok := s.values[key]; ok {
		return fmt.Errorf("%w: %q", ErrKeyExists, key)
	}
	s.values[key] = value
	return nil
}

// Len returns the number of keys.
func (s *State) Len() int { return len(s.values) }

// Keys returns the keys in sorted order.
func (s *State) Keys() []string {
	return slices.Sorted(maps.Keys(s.values))
}

// Snapshot returns a copy of the current values.
func (s *State) Snapshot() map[string]string {
	return maps.Clone(s.values)
}
