// Package store provides reference Repository implementations for
// relationship-memory state: an in-memory store for tests and demos, and a
// SQLite store for durable single-node deployments. Both enforce
// optimistic concurrency on State.Version.
package store

import (
	"context"
	"sync"

	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/memory"
)

// InMemory is a process-local Repository. All data is lost on exit.
type InMemory struct {
	mu     sync.RWMutex
	states map[string]*memory.State
}

var _ memory.Repository = (*InMemory)(nil)

// NewInMemory creates an empty in-memory repository.
func NewInMemory() *InMemory {
	return &InMemory{states: make(map[string]*memory.State)}
}

func pairKey(userID, characterID string) string {
	return userID + "\x00" + characterID
}

// Load returns a copy of the stored state for the pair.
func (s *InMemory) Load(ctx context.Context, userID, characterID string) (*memory.State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state, ok := s.states[pairKey(userID, characterID)]
	if !ok {
		return nil, errors.NotFound("no memory state for pair",
			errors.WithUserID(userID), errors.WithCharacterID(characterID))
	}
	return state.Clone(), nil
}

// Save stores the state, rejecting versions not newer than what is held.
func (s *InMemory) Save(ctx context.Context, userID, characterID string, state *memory.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := pairKey(userID, characterID)
	if existing, ok := s.states[key]; ok && state.Version <= existing.Version {
		return errors.Conflict("stale memory state write",
			errors.WithUserID(userID), errors.WithCharacterID(characterID),
			errors.WithMetadata("held_version", itoa(existing.Version)),
			errors.WithMetadata("offered_version", itoa(state.Version)))
	}
	s.states[key] = state.Clone()
	return nil
}

// Len returns how many pairs have stored state.
func (s *InMemory) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.states)
}

func itoa(v int64) string {
	// Small positive numbers dominate; fmt is fine here.
	if v == 0 {
		return "0"
	}
	neg := v < 0
	if neg {
		v = -v
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
