// Package memory tracks per-(user, character) relationship state across
// conversational turns: status values nudged by keyword triggers, one-time
// milestones, extracted persistent facts, and an append-only event log.
package memory

import (
	"fmt"
	"time"
)

// Status value bounds. Every status value stays inside them at all times.
const (
	StatusMin = 0
	StatusMax = 100
)

// maxEventText is the longest user-message excerpt stored per event.
const maxEventText = 100

// maxCompressedHistory bounds the rolling summary so state stays small.
const maxCompressedHistory = 2000

// Event is one entry of the append-only event log.
type Event struct {
	Timestamp     time.Time      `json:"timestamp"`
	UserText      string         `json:"user_text"` // truncated to maxEventText runes
	StatusChanges map[string]int `json:"status_changes,omitempty"`
	NewMilestones []string       `json:"new_milestones,omitempty"`
}

// State is the persisted relationship state for one (user, character) pair.
// It is the unit of persistence; Version supports optimistic concurrency in
// the repository and is bumped on every update.
type State struct {
	UserID      string `json:"user_id"`
	CharacterID string `json:"character_id"`

	StatusValues       map[string]int `json:"status_values"`
	AchievedMilestones []string       `json:"achieved_milestones"` // grows, never shrinks
	EventLog           []Event        `json:"event_log"`           // append-only
	PersistentFacts    []string       `json:"persistent_facts"`    // ordered, deduplicated
	CompressedHistory  string         `json:"compressed_history"`
	Version            int64          `json:"version"`
}

// NewState creates the first-turn state for a (user, character) pair with
// defaults from the config.
func NewState(userID, characterID string, cfg *Config) *State {
	values := make(map[string]int, len(cfg.StatusValues))
	for k, v := range cfg.StatusValues {
		values[k] = v
	}
	return &State{
		UserID:       userID,
		CharacterID:  characterID,
		StatusValues: values,
	}
}

// Clone returns a deep copy. Update works on a clone so a failed turn never
// leaves a half-applied state behind.
func (s *State) Clone() *State {
	c := &State{
		UserID:            s.UserID,
		CharacterID:       s.CharacterID,
		CompressedHistory: s.CompressedHistory,
		Version:           s.Version,
	}
	c.StatusValues = make(map[string]int, len(s.StatusValues))
	for k, v := range s.StatusValues {
		c.StatusValues[k] = v
	}
	c.AchievedMilestones = append([]string(nil), s.AchievedMilestones...)
	c.PersistentFacts = append([]string(nil), s.PersistentFacts...)
	c.EventLog = make([]Event, len(s.EventLog))
	for i, e := range s.EventLog {
		ce := Event{
			Timestamp: e.Timestamp,
			UserText:  e.UserText,
		}
		if e.StatusChanges != nil {
			ce.StatusChanges = make(map[string]int, len(e.StatusChanges))
			for k, v := range e.StatusChanges {
				ce.StatusChanges[k] = v
			}
		}
		ce.NewMilestones = append([]string(nil), e.NewMilestones...)
		c.EventLog[i] = ce
	}
	return c
}

// HasMilestone reports whether the milestone was already achieved.
func (s *State) HasMilestone(name string) bool {
	for _, m := range s.AchievedMilestones {
		if m == name {
			return true
		}
	}
	return false
}

// ConversationCount is the derived counter used by milestone conditions:
// event log length plus the turn currently being applied.
func (s *State) ConversationCount() int {
	return len(s.EventLog) + 1
}

// Sanitize validates a loaded state against the config and repairs what
// fails: out-of-range or missing status values reset to config defaults,
// negative versions reset to zero, duplicate facts and milestones collapse.
// It returns the repair reasons; an empty slice means the state was clean.
// Corrupt loaded state is repaired here, never propagated into an update.
func (s *State) Sanitize(cfg *Config) []string {
	var reasons []string

	if s.StatusValues == nil {
		s.StatusValues = make(map[string]int, len(cfg.StatusValues))
		reasons = append(reasons, "status values missing")
	}
	for name, def := range cfg.StatusValues {
		v, ok := s.StatusValues[name]
		if !ok {
			s.StatusValues[name] = def
			reasons = append(reasons, fmt.Sprintf("status %q missing, reset to default", name))
			continue
		}
		if v < StatusMin || v > StatusMax {
			s.StatusValues[name] = def
			reasons = append(reasons, fmt.Sprintf("status %q value %d out of range, reset to default", name, v))
		}
	}
	// Drop status keys the config does not know.
	for name := range s.StatusValues {
		if _, ok := cfg.StatusValues[name]; !ok {
			delete(s.StatusValues, name)
			reasons = append(reasons, fmt.Sprintf("unknown status %q dropped", name))
		}
	}

	if s.Version < 0 {
		s.Version = 0
		reasons = append(reasons, "negative version reset")
	}

	if dropped := dedupeInPlace(&s.AchievedMilestones); dropped > 0 {
		reasons = append(reasons, fmt.Sprintf("%d duplicate milestones collapsed", dropped))
	}
	if dropped := dedupeInPlace(&s.PersistentFacts); dropped > 0 {
		reasons = append(reasons, fmt.Sprintf("%d duplicate facts collapsed", dropped))
	}

	return reasons
}

// dedupeInPlace removes duplicates preserving first occurrence, returning
// how many entries were dropped.
func dedupeInPlace(list *[]string) int {
	seen := make(map[string]struct{}, len(*list))
	out := (*list)[:0]
	for _, v := range *list {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	dropped := len(*list) - len(out)
	*list = out
	return dropped
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// clampStatus forces a value into [StatusMin, StatusMax].
func clampStatus(v int) int {
	if v < StatusMin {
		return StatusMin
	}
	if v > StatusMax {
		return StatusMax
	}
	return v
}
