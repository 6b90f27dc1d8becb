// Package token defines the closed set of tokens the bridge moves and the
// decimal-normalized amount conversion between chains (spec §4.7).
package token

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Symbol is the closed set of tokens this bridge recognizes.
type Symbol string

const (
	ETH  Symbol = "ETH"
	USDC Symbol = "USDC"
	USDT Symbol = "USDT"
	WETH Symbol = "WETH"
	MNT  Symbol = "MNT"
)

// Decimals holds the canonical decimal count per symbol; identical across
// both chains regardless of address.
var Decimals = map[Symbol]int{
	ETH:  18,
	USDC: 6,
	USDT: 6,
	WETH: 18,
	MNT:  18,
}

// stablecoins are converted 1:1 regardless of the price feed.
var stablecoins = map[Symbol]bool{
	USDC: true,
	USDT: true,
}

// Table maps a (chain, symbol) pair to its on-chain address.
type Table struct {
	addresses map[chainSymbol]common.Address
}

type chainSymbol struct {
	chain  string
	symbol Symbol
}

// NewTable builds an empty address table; populate via Set.
func NewTable() *Table {
	return &Table{addresses: make(map[chainSymbol]common.Address)}
}

// Set records the on-chain address for a symbol on a given chain tag.
func (t *Table) Set(chain string, symbol Symbol, addr common.Address) {
	t.addresses[chainSymbol{chain, symbol}] = addr
}

// Address returns the on-chain address for a symbol on a given chain tag.
func (t *Table) Address(chain string, symbol Symbol) (common.Address, error) {
	addr, ok := t.addresses[chainSymbol{chain, symbol}]
	if !ok {
		return common.Address{}, fmt.Errorf("token: no address recorded for %s on chain %s", symbol, chain)
	}
	return addr, nil
}

// SymbolForAddress is the inverse lookup, used when decoding an on-chain
// token address back into a recognized symbol.
func (t *Table) SymbolForAddress(chain string, addr common.Address) (Symbol, error) {
	for cs, a := range t.addresses {
		if cs.chain == chain && a == addr {
			return cs.symbol, nil
		}
	}
	return "", fmt.Errorf("token: unrecognized address %s on chain %s", addr.Hex(), chain)
}

// ConvertAmount translates amount from a token with fromDecimals to the
// equivalent integer amount at toDecimals, using integer power-of-ten
// scaling so no floating point ever touches a settlement amount.
func ConvertAmount(amount *big.Int, fromDecimals, toDecimals int) *big.Int {
	if fromDecimals == toDecimals {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Set(amount)
	if toDecimals > fromDecimals {
		scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toDecimals-fromDecimals)), nil)
		return out.Mul(out, scale)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromDecimals-toDecimals)), nil)
	return out.Div(out, scale)
}

// SameValue reports whether converting an amount of `from` on the source
// chain to `to` on the destination chain can be done without the external
// price feed: true when both symbols are the same token, or when both are
// stablecoins (treated 1:1 regardless of USDC/USDT distinction).
func SameValue(from, to Symbol) bool {
	if from == to {
		return true
	}
	return stablecoins[from] && stablecoins[to]
}

// PriceFeed is the external USD price oracle this package consumes; its
// implementation (an off-chain aggregator) is outside this spec's scope.
type PriceFeed interface {
	// USDPrice returns the current USD price of one whole unit of symbol,
	// scaled by 1e8 (8 decimal fixed point), matching common oracle
	// conventions (e.g. Chainlink-style feeds).
	USDPrice(symbol Symbol) (*big.Int, error)
}

// ConvertViaUSD converts amount (in fromSymbol's smallest unit) into the
// equivalent amount of toSymbol's smallest unit, using feed for any pair
// that isn't already 1:1 via SameValue.
func ConvertViaUSD(feed PriceFeed, amount *big.Int, fromSymbol, toSymbol Symbol) (*big.Int, error) {
	fromDec, ok := Decimals[fromSymbol]
	if !ok {
		return nil, fmt.Errorf("token: unknown symbol %s", fromSymbol)
	}
	toDec, ok := Decimals[toSymbol]
	if !ok {
		return nil, fmt.Errorf("token: unknown symbol %s", toSymbol)
	}

	if SameValue(fromSymbol, toSymbol) {
		return ConvertAmount(amount, fromDec, toDec), nil
	}

	fromPrice, err := feed.USDPrice(fromSymbol)
	if err != nil {
		return nil, fmt.Errorf("price feed for %s: %w", fromSymbol, err)
	}
	toPrice, err := feed.USDPrice(toSymbol)
	if err != nil {
		return nil, fmt.Errorf("price feed for %s: %w", toSymbol, err)
	}
	if toPrice.Sign() == 0 {
		return nil, fmt.Errorf("token: zero price for %s", toSymbol)
	}

	// usd_value = amount / 10^fromDec * fromPrice / 1e8
	// out = usd_value * 10^toDec / (toPrice / 1e8)
	// Rearranged to keep everything in integer math:
	// out = amount * fromPrice * 10^toDec / (10^fromDec * toPrice)
	numerator := new(big.Int).Mul(amount, fromPrice)
	numerator.Mul(numerator, new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(toDec)), nil))

	denominator := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(fromDec)), nil)
	denominator.Mul(denominator, toPrice)

	return numerator.Div(numerator, denominator), nil
}
