package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/storage"
)

// Read-only queries see committed state only.

func (s *Service) GetOrder(id uint64) (*orderbook.Order, bool, error) {
	return s.store.View().GetOrder(id)
}

func (s *Service) OrdersByOwner(owner common.Address, limit int) ([]*orderbook.Order, error) {
	return s.store.View().OrdersByOwner(owner, limit)
}

func (s *Service) GetDeal(id uint64) (*orderbook.Deal, bool, error) {
	return s.store.View().GetDeal(id)
}

func (s *Service) DealsByPair(pairID uint64, limit int) ([]*orderbook.Deal, error) {
	return s.store.View().DealsByPair(pairID, limit)
}

func (s *Service) SymPair(id uint64) (*market.SymbolPair, bool, error) {
	return s.store.View().GetSymPair(id)
}

func (s *Service) FindSymPair(asset, coin market.Token) (*market.SymbolPair, bool, error) {
	v := s.store.View()
	id, ok, err := v.FindSymPair(asset, coin)
	if err != nil || !ok {
		return nil, ok, err
	}
	return v.GetSymPair(id)
}

func (s *Service) SymPairs() ([]*market.SymbolPair, error) {
	return s.store.View().ListSymPairs()
}

func (s *Service) Balance(owner common.Address, token market.Token) (decimal.Asset, error) {
	return s.store.View().GetBalance(owner, token)
}

func (s *Service) Balances(owner common.Address) ([]storage.Balance, error) {
	return s.store.View().Balances(owner)
}

// DepthLevel aggregates the resting limit orders at one price.
type DepthLevel struct {
	Price  decimal.Asset `json:"price"`
	Quant  decimal.Asset `json:"quant"`
	Orders int           `json:"orders"`
}

type Depth struct {
	SymPairID uint64       `json:"sympair_id"`
	Bids      []DepthLevel `json:"bids"` // best (highest) first
	Asks      []DepthLevel `json:"asks"` // best (lowest) first
}

// Depth returns up to levels price levels per side of a pair's book.
func (s *Service) Depth(pairID uint64, levels int) (*Depth, error) {
	v := s.store.View()
	if _, ok, err := v.GetSymPair(pairID); err != nil {
		return nil, err
	} else if !ok {
		return nil, fault.Validationf("symbol pair %d does not exist", pairID)
	}

	d := &Depth{SymPairID: pairID}
	var err error
	if d.Bids, err = depthSide(v, pairID, orderbook.Buy, levels); err != nil {
		return nil, err
	}
	if d.Asks, err = depthSide(v, pairID, orderbook.Sell, levels); err != nil {
		return nil, err
	}
	return d, nil
}

func depthSide(v *storage.View, pairID uint64, side orderbook.Side, levels int) ([]DepthLevel, error) {
	out := []DepthLevel{}
	err := v.ScanClass(pairID, side, orderbook.Limit, func(o *orderbook.Order) bool {
		remaining := o.LimitQuant.Sub(o.MatchedAssets)
		if n := len(out); n > 0 && out[n-1].Price == o.Price {
			out[n-1].Quant = out[n-1].Quant.Add(remaining)
			out[n-1].Orders++
			return true
		}
		if levels > 0 && len(out) == levels {
			return false
		}
		out = append(out, DepthLevel{Price: o.Price, Quant: remaining, Orders: 1})
		return true
	})
	return out, err
}
