package orderbook

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

// Ledger receives the settlement payouts of a trade. Escrow was debited when
// the orders were placed, so matching only ever credits.
type Ledger interface {
	Credit(owner common.Address, token market.Token, quant decimal.Asset) error
}

// Executor settles one (taker, maker) couple of a symbol pair.
type Executor struct {
	Pair         *market.SymbolPair
	Ledger       Ledger
	FeeCollector common.Address

	// DustMatch forces a one-unit trade when a market buy's remaining coins
	// are worth less than one asset unit at the maker price. When false the
	// remaining coins are traded for zero assets.
	DustMatch bool
}

// CalcMatchedAmounts resolves the asset and coin quantity of the next trade.
func (e *Executor) CalcMatchedAmounts(taker, maker *Cursor) (assets, coins decimal.Asset, err error) {
	mo := maker.Order()
	if mo.Type != Limit || mo.Price.Amount <= 0 {
		return assets, coins, fault.Invariantf("maker order %d must be a limit order with positive price", mo.ID)
	}
	makerFree := maker.FreeLimitQuant()
	if makerFree.Amount <= 0 {
		return assets, coins, fault.Invariantf("maker order %d has no free quantity", mo.ID)
	}

	if taker.Order().LimitInCoins() {
		freeCoins := taker.FreeLimitQuant()
		freeAssets, err := decimal.CalcAssetAmount(freeCoins, mo.Price, e.Pair.Asset.Symbol)
		if err != nil {
			return assets, coins, err
		}
		if freeAssets.Cmp(makerFree) <= 0 {
			if freeAssets.IsZero() && e.DustMatch {
				freeAssets.Amount = 1
			}
			return freeAssets, freeCoins, nil
		}
		assets = makerFree
	} else {
		assets = decimal.Min(taker.FreeLimitQuant(), makerFree)
	}

	coins, err = decimal.CalcCoinAmount(assets, mo.Price)
	return assets, coins, err
}

func feeRatio(o *Order, isTaker bool) int64 {
	if isTaker {
		return o.TakerFeeRatio
	}
	return o.MakerFeeRatio
}

// Execute trades taker against maker and returns the deal record. Both
// cursors are updated; completed cursors still need CompleteAndNext.
func (e *Executor) Execute(dealID uint64, taker, maker *Cursor, matcher common.Address, memo string, now time.Time) (*Deal, error) {
	if taker.Side() == maker.Side() {
		return nil, fault.Invariantf("taker and maker are both %s", taker.Side())
	}

	assets, coins, err := e.CalcMatchedAmounts(taker, maker)
	if err != nil {
		return nil, err
	}

	buy, sell := taker, maker
	if taker.Side() == Sell {
		buy, sell = maker, taker
	}
	buyOrder, sellOrder := buy.Order(), sell.Order()

	buyFeeBase := assets
	if e.Pair.OnlyAcceptCoinFee {
		buyFeeBase = coins
	}
	buyFee, err := decimal.CalcMatchFee(feeRatio(buyOrder, buy == taker), buyFeeBase)
	if err != nil {
		return nil, fmt.Errorf("buy fee of order %d: %w", buyOrder.ID, err)
	}
	sellFee, err := decimal.CalcMatchFee(feeRatio(sellOrder, sell == taker), coins)
	if err != nil {
		return nil, fmt.Errorf("sell fee of order %d: %w", sellOrder.ID, err)
	}

	if err := buy.Match(dealID, assets, coins, buyFee); err != nil {
		return nil, err
	}
	if err := sell.Match(dealID, assets, coins, sellFee); err != nil {
		return nil, err
	}
	if !buy.Completed() && !sell.Completed() {
		return nil, fault.Invariantf("deal %d completed neither order %d nor %d", dealID, buyOrder.ID, sellOrder.ID)
	}

	buyerAssets := assets
	if !e.Pair.OnlyAcceptCoinFee {
		buyerAssets = assets.Sub(buyFee)
	}
	if err := e.credit(buyOrder.Owner, buyerAssets); err != nil {
		return nil, err
	}
	if err := e.credit(sellOrder.Owner, coins.Sub(sellFee)); err != nil {
		return nil, err
	}
	if err := e.credit(e.FeeCollector, buyFee); err != nil {
		return nil, err
	}
	if err := e.credit(e.FeeCollector, sellFee); err != nil {
		return nil, err
	}

	refund := decimal.Zero(e.Pair.Coin.Symbol)
	if buy.Completed() && buy.Refund().IsPositive() {
		refund = buy.Refund()
		if err := e.credit(buyOrder.Owner, refund); err != nil {
			return nil, err
		}
	}

	return &Deal{
		ID:             dealID,
		SymPairID:      e.Pair.ID,
		BuyOrderID:     buyOrder.ID,
		SellOrderID:    sellOrder.ID,
		DealAssets:     assets,
		DealCoins:      coins,
		DealPrice:      maker.Order().Price,
		TakerSide:      taker.Side(),
		BuyFee:         buyFee,
		SellFee:        sellFee,
		BuyRefundCoins: refund,
		Matcher:        matcher,
		Memo:           memo,
		DealTime:       now,
	}, nil
}

// credit pays quant in whichever pair token carries its symbol.
func (e *Executor) credit(owner common.Address, quant decimal.Asset) error {
	if quant.Amount == 0 {
		return nil
	}
	var token market.Token
	switch quant.Symbol {
	case e.Pair.Asset.Symbol:
		token = e.Pair.Asset
	case e.Pair.Coin.Symbol:
		token = e.Pair.Coin
	default:
		return fault.Invariantf("symbol %s does not belong to pair %s", quant.Symbol, e.Pair.Name())
	}
	if err := e.Ledger.Credit(owner, token, quant); err != nil {
		return fmt.Errorf("credit %s to %s: %w", quant, owner.Hex(), err)
	}
	return nil
}
