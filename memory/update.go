package memory

import (
	"strings"
	"time"
)

// Delta is what one update changed: the per-status net deltas that applied,
// milestones that fired this turn, and facts first seen this turn.
type Delta struct {
	StatusChanges map[string]int `json:"status_changes,omitempty"`
	NewMilestones []string       `json:"new_milestones,omitempty"`
	NewFacts      []string       `json:"new_facts,omitempty"`
}

// Empty reports whether the update changed nothing observable.
func (d Delta) Empty() bool {
	return len(d.StatusChanges) == 0 && len(d.NewMilestones) == 0 && len(d.NewFacts) == 0
}

// UpdateOption tweaks a single Update call.
type UpdateOption func(*updateOpts)

type updateOpts struct {
	now func() time.Time
}

// WithNow overrides the event timestamp source, for tests.
func WithNow(now func() time.Time) UpdateOption {
	return func(o *updateOpts) {
		o.now = now
	}
}

// Update applies one conversational turn to the state and returns the new
// state plus what changed. It is pure with respect to its inputs: the given
// state is never mutated, and persistence is the caller's concern.
//
// Update is not idempotent. Applying the same turn twice double-applies
// triggers; exactly-once invocation per turn is the caller's contract.
func Update(state *State, userMessage, assistantMessage string, cfg *Config, opts ...UpdateOption) (*State, Delta) {
	o := updateOpts{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	next := state.Clone()
	delta := Delta{}

	// 1-2. Keyword triggers: net delta per status, applied with clamping.
	message := strings.ToLower(userMessage)
	for _, status := range cfg.TriggerNames() {
		trig := cfg.StatusTriggers[status]
		d := triggerDelta(message, trig, cfg.TriggerPolicy)
		if d == 0 {
			continue
		}
		if delta.StatusChanges == nil {
			delta.StatusChanges = make(map[string]int)
		}
		delta.StatusChanges[status] = d
		next.StatusValues[status] = clampStatus(next.StatusValues[status] + d)
	}

	// 3-4. Milestones over post-update values and derived counters,
	// at most once ever per milestone.
	vars := milestoneVars(next)
	for _, name := range cfg.MilestoneNames() {
		if next.HasMilestone(name) {
			continue
		}
		if cfg.Milestones[name].condition.Eval(vars) {
			next.AchievedMilestones = append(next.AchievedMilestones, name)
			delta.NewMilestones = append(delta.NewMilestones, name)
			vars["milestone_count"] = len(next.AchievedMilestones)
		}
	}

	// 5. Facts, deduplicated against what is already persisted.
	extractor := cfg.Extractor
	if extractor == nil {
		extractor = DefaultExtractor
	}
	for _, fact := range extractor.Extract(userMessage) {
		fact = strings.TrimSpace(fact)
		if fact == "" || containsString(next.PersistentFacts, fact) {
			continue
		}
		next.PersistentFacts = append(next.PersistentFacts, fact)
		delta.NewFacts = append(delta.NewFacts, fact)
	}

	// 6. One event per turn that changed anything.
	if !delta.Empty() {
		next.EventLog = append(next.EventLog, Event{
			Timestamp:     o.now(),
			UserText:      truncateRunes(userMessage, maxEventText),
			StatusChanges: delta.StatusChanges,
			NewMilestones: delta.NewMilestones,
		})
	}

	next.CompressedHistory = appendHistory(next.CompressedHistory, userMessage, assistantMessage)

	// 7. Version bump on every update.
	next.Version++

	return next, delta
}

// triggerDelta scans the lowercased message for the trigger's keywords and
// nets the result according to policy.
func triggerDelta(message string, trig *Trigger, policy TriggerPolicy) int {
	inc := matchesAny(message, trig.IncreaseKeywords)
	dec := matchesAny(message, trig.DecreaseKeywords)

	if policy == PolicyIncreasePriority && inc {
		return trig.Amount
	}

	d := 0
	if inc {
		d += trig.Amount
	}
	if dec {
		d -= trig.Amount
	}
	return d
}

// matchesAny reports whether any keyword occurs as a case-insensitive
// substring of the message.
func matchesAny(message string, keywords []string) bool {
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(message, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// milestoneVars builds the variable set milestone conditions see: the
// post-update status values plus derived counters.
func milestoneVars(s *State) map[string]int {
	vars := make(map[string]int, len(s.StatusValues)+len(derivedCounters))
	for k, v := range s.StatusValues {
		vars[k] = v
	}
	vars["conversation_count"] = s.ConversationCount()
	vars["milestone_count"] = len(s.AchievedMilestones)
	vars["fact_count"] = len(s.PersistentFacts)
	return vars
}

// appendHistory keeps a bounded rolling exchange summary, newest last.
func appendHistory(history, userMessage, assistantMessage string) string {
	entry := "U: " + truncateRunes(strings.TrimSpace(userMessage), maxEventText) +
		" / A: " + truncateRunes(strings.TrimSpace(assistantMessage), maxEventText)
	if history != "" {
		history += "\n"
	}
	history += entry

	runes := []rune(history)
	if len(runes) > maxCompressedHistory {
		history = string(runes[len(runes)-maxCompressedHistory:])
	}
	return history
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
