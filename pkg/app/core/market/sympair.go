package market

import (
	"fmt"
	"strings"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

// Token identifies a transferable asset: the symbol plus the contract
// (bank) that issues it. Two tokens with the same code from different
// contracts are different assets.
type Token struct {
	Contract string         `json:"contract"`
	Symbol   decimal.Symbol `json:"symbol"`
}

func (t Token) Validate() error {
	if t.Contract == "" || strings.ContainsAny(t.Contract, ": ") {
		return fault.Validationf("invalid token contract %q", t.Contract)
	}
	return t.Symbol.Validate()
}

// Key is the stable identity used in storage keys.
// Format: "{contract}:{code}"
func (t Token) Key() string {
	return t.Contract + ":" + t.Symbol.Code
}

func (t Token) String() string {
	return fmt.Sprintf("%s@%s", t.Symbol, t.Contract)
}

// SymbolPair is one tradable market: Asset is the base, Coin the quote.
type SymbolPair struct {
	ID                uint64        `json:"id"`
	Asset             Token         `json:"asset"`
	Coin              Token         `json:"coin"`
	MinAssetQuant     decimal.Asset `json:"min_asset_quant"`
	MinCoinQuant      decimal.Asset `json:"min_coin_quant"`
	OnlyAcceptCoinFee bool          `json:"only_accept_coin_fee"`
	Enabled           bool          `json:"enabled"`
}

// Name returns "ASSET/COIN", e.g. "BTC/USD".
func (p *SymbolPair) Name() string {
	return p.Asset.Symbol.Code + "/" + p.Coin.Symbol.Code
}

// Validate checks the static shape of a pair. Cross-pair rules (no reversed
// duplicates) are enforced by the caller that can see the table.
func (p *SymbolPair) Validate() error {
	if err := p.Asset.Validate(); err != nil {
		return fmt.Errorf("asset: %w", err)
	}
	if err := p.Coin.Validate(); err != nil {
		return fmt.Errorf("coin: %w", err)
	}
	if p.Asset.Symbol.Code == p.Coin.Symbol.Code {
		return fault.Validationf("asset and coin symbol codes must differ, got %s", p.Asset.Symbol.Code)
	}
	if p.MinAssetQuant.Symbol != p.Asset.Symbol {
		return fault.Validationf("min asset quant symbol %s mismatch with %s", p.MinAssetQuant.Symbol, p.Asset.Symbol)
	}
	if p.MinCoinQuant.Symbol != p.Coin.Symbol {
		return fault.Validationf("min coin quant symbol %s mismatch with %s", p.MinCoinQuant.Symbol, p.Coin.Symbol)
	}
	if p.MinAssetQuant.Amount < 0 || p.MinCoinQuant.Amount < 0 {
		return fault.Validationf("min quantities must not be negative")
	}
	return nil
}

// BuyFeeSymbol returns the symbol buy-side fees are charged in.
func (p *SymbolPair) BuyFeeSymbol() decimal.Symbol {
	if p.OnlyAcceptCoinFee {
		return p.Coin.Symbol
	}
	return p.Asset.Symbol
}
