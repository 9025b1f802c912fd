package events

import (
	"sync"

	"github.com/maltedev/vprok-price-parser/internal/database"
)

type PriceChange struct {
	ProductID string
	Region    string
	From      string
	To        string
}

// PriceTracker remembers the last price seen per product and region.
type PriceTracker struct {
	mu   sync.Mutex
	last map[string]string
}

func NewPriceTracker() *PriceTracker {
	return &PriceTracker{last: make(map[string]string)}
}

// Observe records the price in p and reports a change against the previous
// observation. The first observation of a product in a region is not a
// change.
func (t *PriceTracker) Observe(p *database.PriceObservedPayload) (*PriceChange, bool) {
	key := p.ProductID + "\x00" + p.Region

	t.mu.Lock()
	defer t.mu.Unlock()

	prev, seen := t.last[key]
	t.last[key] = p.Price
	if !seen || prev == p.Price {
		return nil, false
	}

	return &PriceChange{
		ProductID: p.ProductID,
		Region:    p.Region,
		From:      prev,
		To:        p.Price,
	}, true
}
