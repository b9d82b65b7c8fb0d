// Package promptstore provides a process-wide store of pending call
// instructions, keyed by call ID.
//
// The call-placement layer writes a prompt under a fresh call ID before the
// telephony provider connects the media stream. When the relay for that call
// initializes its model session it consumes the prompt exactly once; a second
// lookup for the same ID returns empty. This keeps instructions from leaking
// into a later call that happens to reuse the identifier space.
package promptstore

import "sync"

// Store maps call IDs to pending instruction text.
type Store struct {
	mu      sync.Mutex
	prompts map[string]string
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		prompts: make(map[string]string),
	}
}

// Put stores instructions for a call ID, replacing any previous value.
func (s *Store) Put(callID, instructions string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts[callID] = instructions
}

// GetAndClear returns the instructions stored for callID and removes them.
// It returns the empty string when nothing is stored. Under concurrent
// lookups at most one caller observes the stored value.
func (s *Store) GetAndClear(callID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	instructions, ok := s.prompts[callID]
	if !ok {
		return ""
	}
	delete(s.prompts, callID)
	return instructions
}

// Evict removes any instructions stored for callID. It is called when a call
// terminates so that prompts for calls that never reached initialization do
// not accumulate.
func (s *Store) Evict(callID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.prompts, callID)
}

// Len returns the number of pending prompts.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
