// Package knowledge provides a character's background-knowledge index with
// weighted relevance scoring over keyword, content, usage, and recency signals.
package knowledge

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/voxchat/dialoguekit/errors"
	"github.com/voxchat/dialoguekit/logging"
)

// Item is one unit of background knowledge owned by a character.
type Item struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Keywords   []string  `json:"keywords"`
	Category   string    `json:"category"`
	UsageCount int       `json:"usage_count"`
	LastUsed   time.Time `json:"last_used,omitzero"` // zero value means never used
	Difficulty string    `json:"difficulty"`
}

// Result is an item paired with its relevance score for one query.
type Result struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}

// MinScore is the relevance threshold below which items are not surfaced.
const MinScore = 0.3

// Index owns the knowledge items of a single character.
//
// Reads (Search, Get) run concurrently; usage accounting and item
// add/remove take the write lock. Items keep their insertion order, which
// is the tie-break order for equal scores.
type Index struct {
	mu        sync.RWMutex
	items     []*Item        // insertion order
	byID      map[string]int // id -> position in items
	prefilter *Prefilter     // nil unless enabled
	logger    *logging.Logger
	now       func() time.Time
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the logger used for skip/no-op warnings.
func WithLogger(l *logging.Logger) Option {
	return func(ix *Index) {
		ix.logger = l.WithComponent("knowledge")
	}
}

// WithPrefilter enables a bleve-backed candidate prefilter for corpora with
// at least threshold items. Final ranking always uses the exact scorer; the
// prefilter only narrows the set of items scored for very large bases.
func WithPrefilter(threshold int) Option {
	return func(ix *Index) {
		pf, err := NewPrefilter(threshold)
		if err != nil {
			ix.logger.Warn("prefilter_disabled", map[string]interface{}{"error": err.Error()})
			return
		}
		ix.prefilter = pf
	}
}

// withClock overrides the time source, for tests.
func withClock(now func() time.Time) Option {
	return func(ix *Index) {
		ix.now = now
	}
}

// NewIndex creates an empty knowledge index.
func NewIndex(opts ...Option) *Index {
	ix := &Index{
		byID:   make(map[string]int),
		logger: logging.New().WithComponent("knowledge"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(ix)
	}
	return ix
}

// Add inserts an item. An empty ID is assigned a fresh one. Duplicate IDs
// replace the existing item in place, keeping its insertion position.
func (ix *Index) Add(item Item) (string, error) {
	if strings.TrimSpace(item.Title) == "" && strings.TrimSpace(item.Content) == "" {
		return "", errors.InvalidInput("knowledge item needs a title or content")
	}
	if item.UsageCount < 0 {
		item.UsageCount = 0
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if pos, ok := ix.byID[item.ID]; ok {
		ix.items[pos] = &item
	} else {
		ix.byID[item.ID] = len(ix.items)
		ix.items = append(ix.items, &item)
	}

	if ix.prefilter != nil {
		if err := ix.prefilter.Index(item); err != nil {
			ix.logger.Warn("prefilter_index_failed", map[string]interface{}{
				"item":  item.ID,
				"error": err.Error(),
			})
		}
	}
	return item.ID, nil
}

// Remove deletes an item by ID. Removing an unknown ID is a no-op.
func (ix *Index) Remove(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos, ok := ix.byID[id]
	if !ok {
		return
	}
	ix.items = append(ix.items[:pos], ix.items[pos+1:]...)
	delete(ix.byID, id)
	for i := pos; i < len(ix.items); i++ {
		ix.byID[ix.items[i].ID] = i
	}
	if ix.prefilter != nil {
		ix.prefilter.Delete(id)
	}
}

// Get returns a copy of the item with the given ID.
func (ix *Index) Get(id string) (Item, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.byID[id]
	if !ok {
		return Item{}, false
	}
	return *ix.items[pos], true
}

// Len returns the number of items in the index.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.items)
}

// Search scores all items against the query and returns those scoring at
// least MinScore, best first, at most limit entries. Ties keep insertion
// order. An empty index yields an empty slice, never an error. Search does
// not mutate any state; credit surfaced items via IncrementUsage.
func (ix *Index) Search(query string, limit int) []Result {
	if limit <= 0 {
		return nil
	}
	tokens := Tokenize(query)

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	candidates := ix.items
	if ix.prefilter != nil && len(ix.items) >= ix.prefilter.threshold {
		if ids := ix.prefilter.Candidates(query, prefilterFanout*limit); ids != nil {
			candidates = make([]*Item, 0, len(ids))
			for _, pos := range ix.positionsOf(ids) {
				candidates = append(candidates, ix.items[pos])
			}
		}
	}

	maxUsage := 0
	for _, it := range ix.items {
		if it.UsageCount > maxUsage {
			maxUsage = it.UsageCount
		}
	}

	now := ix.now()
	results := make([]Result, 0, len(candidates))
	for _, it := range candidates {
		if err := validateItem(it); err != nil {
			ix.logger.ItemSkipped(it.ID, err)
			continue
		}
		s := scoreItem(it, tokens, maxUsage, now)
		if s >= MinScore {
			results = append(results, Result{Item: *it, Score: s})
		}
	}

	// Stable sort: equal scores keep insertion order.
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// positionsOf maps candidate IDs back to insertion positions, sorted, so
// prefiltered scoring walks items in insertion order like the full scan.
func (ix *Index) positionsOf(ids []string) []int {
	positions := make([]int, 0, len(ids))
	for _, id := range ids {
		if pos, ok := ix.byID[id]; ok {
			positions = append(positions, pos)
		}
	}
	sort.Ints(positions)
	return positions
}

// IncrementUsage credits an item that was actually included in generator
// context: bumps usage_count and stamps last_used. Unknown IDs are logged
// and ignored.
func (ix *Index) IncrementUsage(id string) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	pos, ok := ix.byID[id]
	if !ok {
		ix.logger.UnknownItem(id)
		return
	}
	ix.items[pos].UsageCount++
	ix.items[pos].LastUsed = ix.now()
}

// prefilterFanout is how many prefilter candidates are fetched per
// requested result. Generous so the coarse pass rarely hides an item the
// exact scorer would have surfaced.
const prefilterFanout = 10

// validateItem rejects items that cannot be scored meaningfully.
func validateItem(it *Item) error {
	if it.ID == "" {
		return errors.FromCode(errors.ErrCodeScoringError, errors.WithMetadata("reason", "missing id"))
	}
	if it.UsageCount < 0 {
		return errors.FromCode(errors.ErrCodeScoringError, errors.WithMetadata("reason", "negative usage count"))
	}
	return nil
}
