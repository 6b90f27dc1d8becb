package token

import (
	"fmt"
	"math/big"
	"sync"
)

// StaticPriceFeed is a PriceFeed backed by an in-memory, operator-supplied
// price table. The real off-chain aggregator this bridge talks to in
// production is outside this package's scope (see PriceFeed's doc
// comment); this implementation exists so the rest of the solver can be
// wired and exercised against a concrete feed, and so an operator can
// override a price by hand during an incident without a redeploy.
type StaticPriceFeed struct {
	mu     sync.RWMutex
	prices map[Symbol]*big.Int // 1e8-scaled USD price per whole unit
}

// NewStaticPriceFeed builds a feed seeded with the given prices.
// Stablecoins default to exactly $1.00 (1e8) if omitted.
func NewStaticPriceFeed(seed map[Symbol]*big.Int) *StaticPriceFeed {
	prices := make(map[Symbol]*big.Int, len(seed))
	for symbol, price := range seed {
		prices[symbol] = new(big.Int).Set(price)
	}
	for symbol := range stablecoins {
		if _, ok := prices[symbol]; !ok {
			prices[symbol] = big.NewInt(100_000_000)
		}
	}
	return &StaticPriceFeed{prices: prices}
}

// USDPrice implements PriceFeed.
func (f *StaticPriceFeed) USDPrice(symbol Symbol) (*big.Int, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	price, ok := f.prices[symbol]
	if !ok {
		return nil, fmt.Errorf("token: no price recorded for %s", symbol)
	}
	return new(big.Int).Set(price), nil
}

// Set overrides the price for symbol, for operator use when an incident
// requires bypassing the feed's normal update path.
func (f *StaticPriceFeed) Set(symbol Symbol, usdPrice1e8 *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[symbol] = new(big.Int).Set(usdPrice1e8)
}
