package dex

import (
	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

type SymPairParams struct {
	Asset             market.Token
	Coin              market.Token
	MinAssetQuant     decimal.Asset
	MinCoinQuant      decimal.Asset
	OnlyAcceptCoinFee bool
	Enabled           bool
}

// SetSymPair creates the pair of the two tokens, or updates it when it
// already exists. The reversed pair may not exist.
func (s *Service) SetSymPair(auth Auth, p SymPairParams) (*market.SymbolPair, error) {
	var pair *market.SymbolPair
	_, err := s.update("set_sympair", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(st.cfg.Admin, "admin"); err != nil {
			return err
		}

		pair = &market.SymbolPair{
			Asset:             p.Asset,
			Coin:              p.Coin,
			MinAssetQuant:     p.MinAssetQuant,
			MinCoinQuant:      p.MinCoinQuant,
			OnlyAcceptCoinFee: p.OnlyAcceptCoinFee,
			Enabled:           p.Enabled,
		}
		if err := pair.Validate(); err != nil {
			return err
		}

		_, reversed, err := st.txn.FindSymPair(p.Coin, p.Asset)
		if err != nil {
			return err
		}
		if reversed {
			return fault.Validationf("reversed symbol pair %s/%s exists", p.Coin.Symbol.Code, p.Asset.Symbol.Code)
		}

		id, exists, err := st.txn.FindSymPair(p.Asset, p.Coin)
		if err != nil {
			return err
		}
		if !exists {
			id = st.ids.NewSymPairID()
			if _, taken, err := st.txn.GetSymPair(id); err != nil {
				return err
			} else if taken {
				return fault.Invariantf("symbol pair id %d is already used", id)
			}
		}
		pair.ID = id
		st.record = pair
		return st.txn.SaveSymPair(pair)
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("sympair_set",
		"sympair_id", pair.ID,
		"name", pair.Name(),
		"only_accept_coin_fee", pair.OnlyAcceptCoinFee,
		"enabled", pair.Enabled,
	)
	return pair, nil
}

// OnOffSymPair enables or disables matching and placement on a pair.
func (s *Service) OnOffSymPair(auth Auth, id uint64, on bool) error {
	_, err := s.update("onoff_sympair", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(st.cfg.Admin, "admin"); err != nil {
			return err
		}
		pair, err := st.pair(id)
		if err != nil {
			return err
		}
		pair.Enabled = on
		st.record = pair
		return st.txn.SaveSymPair(pair)
	})
	if err != nil {
		return err
	}
	s.log.Infow("sympair_switched", "sympair_id", id, "enabled", on)
	return nil
}
