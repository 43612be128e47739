package memory

import (
	"context"
	"sync"

	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/logging"
)

// Repository persists relationship state. Implementations are expected to
// use State.Version for optimistic-concurrency detection and reject stale
// writes with an ErrCodeConflict error.
type Repository interface {
	// Load returns the state for a pair, or an ErrCodeNotFound error when
	// the pair has never been seen.
	Load(ctx context.Context, userID, characterID string) (*State, error)

	// Save persists the state. Stale versions must be rejected with an
	// ErrCodeConflict error, not silently overwritten.
	Save(ctx context.Context, userID, characterID string, state *State) error
}

// Tracker serializes relationship updates per (user, character) key on top
// of a Repository. Triggers and milestone checks are not commutative, so
// same-key updates take a per-key mutex; different keys proceed in
// parallel.
type Tracker struct {
	repo   Repository
	cfg    *Config
	logger *logging.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTracker creates a tracker over a repository with one config.
func NewTracker(repo Repository, cfg *Config, logger *logging.Logger) *Tracker {
	if logger == nil {
		logger = logging.New()
	}
	return &Tracker{
		repo:   repo,
		cfg:    cfg,
		logger: logger.WithComponent("memory"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// keyLock returns the mutex guarding one (user, character) pair.
func (t *Tracker) keyLock(userID, characterID string) *sync.Mutex {
	key := userID + "\x00" + characterID
	t.mu.Lock()
	defer t.mu.Unlock()
	lock, ok := t.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		t.locks[key] = lock
	}
	return lock
}

// ApplyTurn loads (or creates) the pair's state, sanitizes it, applies one
// turn, and saves the result. Same-key calls are serialized so two
// concurrent turns both land (no lost update). If the context is canceled
// before the save, the state is left exactly as loaded.
func (t *Tracker) ApplyTurn(ctx context.Context, userID, characterID, userMessage, assistantMessage string, opts ...UpdateOption) (*State, Delta, error) {
	lock := t.keyLock(userID, characterID)
	lock.Lock()
	defer lock.Unlock()

	state, err := t.load(ctx, userID, characterID)
	if err != nil {
		return nil, Delta{}, err
	}

	if err := ctx.Err(); err != nil {
		return nil, Delta{}, errors.Wrap(err, "turn canceled before memory update")
	}

	next, delta := Update(state, userMessage, assistantMessage, t.cfg, opts...)

	if err := t.repo.Save(ctx, userID, characterID, next); err != nil {
		return nil, Delta{}, errors.Wrap(err, "saving memory state")
	}

	for _, ms := range delta.NewMilestones {
		t.logger.MilestoneFired(userID, characterID, ms)
	}
	return next, delta, nil
}

// Peek returns the current sanitized state without applying a turn.
func (t *Tracker) Peek(ctx context.Context, userID, characterID string) (*State, error) {
	lock := t.keyLock(userID, characterID)
	lock.Lock()
	defer lock.Unlock()
	return t.load(ctx, userID, characterID)
}

// load fetches and sanitizes the pair's state, creating a fresh one with
// config defaults on first contact.
func (t *Tracker) load(ctx context.Context, userID, characterID string) (*State, error) {
	state, err := t.repo.Load(ctx, userID, characterID)
	if err != nil {
		if errors.IsCode(err, errors.ErrCodeNotFound) {
			return NewState(userID, characterID, t.cfg), nil
		}
		return nil, errors.Wrap(err, "loading memory state")
	}

	if reasons := state.Sanitize(t.cfg); len(reasons) > 0 {
		for _, reason := range reasons {
			t.logger.StateSanitized(userID, characterID, reason)
		}
	}
	return state, nil
}
