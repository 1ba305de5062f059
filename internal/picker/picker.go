// Package picker implements constrained random selection over a catalog
// snapshot.
package picker

import (
	"math/rand"
	"strings"
	"sync"

	"dailydsa/internal/catalog"
)

// Picker draws uniformly at random from the eligible candidate set. The rand
// source is guarded so concurrent deliveries can share one Picker.
type Picker struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Picker. A nil source is not accepted; callers pass
// rand.NewSource(time.Now().UnixNano()) in production and a fixed seed in
// tests.
func New(src rand.Source) *Picker {
	return &Picker{rng: rand.New(src)}
}

// Pick selects one item:
//
//  1. Items whose id is in excluded are removed. Empty remainder: no pick.
//  2. Without a difficulty filter, draw uniformly from the remainder.
//  3. With a filter, draw from the matching subset when it is non-empty.
//  4. When the filter matches nothing, fall back to the full remainder so a
//     user is not starved just because their preferred difficulty ran out.
func (p *Picker) Pick(items []catalog.Item, difficulty string, excluded map[string]struct{}) (catalog.Item, bool) {
	eligible := make([]catalog.Item, 0, len(items))
	for _, it := range items {
		if _, ok := excluded[it.ID]; ok {
			continue
		}
		eligible = append(eligible, it)
	}
	if len(eligible) == 0 {
		return catalog.Item{}, false
	}

	difficulty = strings.ToLower(strings.TrimSpace(difficulty))
	if difficulty != "" {
		matching := make([]catalog.Item, 0, len(eligible))
		for _, it := range eligible {
			if strings.EqualFold(it.Difficulty, difficulty) {
				matching = append(matching, it)
			}
		}
		if len(matching) > 0 {
			return p.choice(matching), true
		}
		// fall through: preferred difficulty exhausted
	}
	return p.choice(eligible), true
}

func (p *Picker) choice(items []catalog.Item) catalog.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return items[p.rng.Intn(len(items))]
}
