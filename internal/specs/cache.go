// Package specs holds the coin<->MarketKey mapping and the per-market
// MarketSpec cache populated at preflight and refreshed whenever the
// exchange reports a parameter change (which trips the ParamChange gate
// for that market). Preflight discovery itself is out of scope (spec.md
// §1 Non-goals); this package is the consumer-facing lookup surface that
// discovery seeds.
package specs

import (
	"sync"

	"hyperdrift-taker/pkg/domain"
)

// Cache is a concurrent-safe coin<->MarketKey map plus a MarketKey->
// MarketSpec map. Populated once at preflight, then only ever replaced
// wholesale per-market on a detected spec change; reads never block a
// writer for long since updates are whole-struct swaps under a mutex.
type Cache struct {
	mu       sync.RWMutex
	byCoin   map[string]domain.MarketKey
	byKey    map[domain.MarketKey]string
	specs    map[domain.MarketKey]domain.MarketSpec
}

// NewCache builds an empty cache.
func NewCache() *Cache {
	return &Cache{
		byCoin: make(map[string]domain.MarketKey),
		byKey:  make(map[domain.MarketKey]string),
		specs:  make(map[domain.MarketKey]domain.MarketSpec),
	}
}

// Seed installs one market's identity and spec, as preflight discovery
// would on first run.
func (c *Cache) Seed(coin string, key domain.MarketKey, spec domain.MarketSpec) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byCoin[coin] = key
	c.byKey[key] = coin
	c.specs[key] = spec
}

// ResolveKey implements wsclient.CoinResolver.
func (c *Cache) ResolveKey(coin string) (domain.MarketKey, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	k, ok := c.byCoin[coin]
	return k, ok
}

// ResolveCoin implements wsclient.CoinResolver.
func (c *Cache) ResolveCoin(key domain.MarketKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	coin, ok := c.byKey[key]
	return coin, ok
}

// Spec returns the current MarketSpec for a market.
func (c *Cache) Spec(key domain.MarketKey) (domain.MarketSpec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.specs[key]
	return s, ok
}

// AllKeys returns every configured market's key.
func (c *Cache) AllKeys() []domain.MarketKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]domain.MarketKey, 0, len(c.specs))
	for k := range c.specs {
		keys = append(keys, k)
	}
	return keys
}

// UpdateSpec replaces a market's spec and reports whether the rounding
// parameters (tick/lot/fee) changed relative to the prior spec — the
// signal the ParamChange gate (§4.3 #7) checks.
func (c *Cache) UpdateSpec(key domain.MarketKey, newSpec domain.MarketSpec) (changed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	old, existed := c.specs[key]
	c.specs[key] = newSpec
	if !existed {
		return false
	}
	return !old.SameRoundingParams(newSpec)
}
