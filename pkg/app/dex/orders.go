package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/params"
	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

// FeeOverride replaces the configured ratios for one order. It needs the
// admin's co-signature.
type FeeOverride struct {
	Taker int64 `json:"taker"`
	Maker int64 `json:"maker"`
}

// OrderRequest describes a new order.
//
// LimitQuant is in coin for market buys and in asset otherwise. Price is in
// coin per whole asset unit and must be zero for market orders.
type OrderRequest struct {
	Owner       common.Address      `json:"owner"`
	SymPairID   uint64              `json:"sympair_id"`
	Type        orderbook.OrderType `json:"type"`
	Side        orderbook.Side      `json:"side"`
	LimitQuant  decimal.Asset       `json:"limit_quant"`
	Price       decimal.Asset       `json:"price"`
	ExternalID  uint64              `json:"external_id"`
	FeeOverride *FeeOverride        `json:"fee_override,omitempty"`
}

func (s *Service) BuyLimit(auth Auth, req OrderRequest) (*orderbook.Order, error) {
	req.Type, req.Side = orderbook.Limit, orderbook.Buy
	return s.NewOrder(auth, req)
}

func (s *Service) SellLimit(auth Auth, req OrderRequest) (*orderbook.Order, error) {
	req.Type, req.Side = orderbook.Limit, orderbook.Sell
	return s.NewOrder(auth, req)
}

func (s *Service) BuyMarket(auth Auth, req OrderRequest) (*orderbook.Order, error) {
	req.Type, req.Side = orderbook.Market, orderbook.Buy
	return s.NewOrder(auth, req)
}

func (s *Service) SellMarket(auth Auth, req OrderRequest) (*orderbook.Order, error) {
	req.Type, req.Side = orderbook.Market, orderbook.Sell
	return s.NewOrder(auth, req)
}

// NewOrder escrows the order's funds, stores it, and when MaxMatchCount is
// set runs one bounded matching round on its pair. It returns the order as
// it stands after that round.
func (s *Service) NewOrder(auth Auth, req OrderRequest) (*orderbook.Order, error) {
	var placed *orderbook.Order
	st, err := s.update("new_order", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(req.Owner, "owner"); err != nil {
			return err
		}
		if st.cfg.AdminSignRequired || req.FeeOverride != nil {
			if err := auth.require(st.cfg.Admin, "admin"); err != nil {
				return err
			}
		}
		if !req.Type.Valid() {
			return fault.Validationf("invalid order type %d", req.Type)
		}
		if !req.Side.Valid() {
			return fault.Validationf("invalid order side %d", req.Side)
		}
		pair, err := st.enabledPair(req.SymPairID)
		if err != nil {
			return err
		}

		taker, maker := st.cfg.TakerFeeRatio, st.cfg.MakerFeeRatio
		if req.FeeOverride != nil {
			taker, maker = req.FeeOverride.Taker, req.FeeOverride.Maker
			if err := checkRatio("taker", taker); err != nil {
				return err
			}
			if err := checkRatio("maker", maker); err != nil {
				return err
			}
		}

		o := &orderbook.Order{
			ExternalID:    req.ExternalID,
			Owner:         req.Owner,
			SymPairID:     pair.ID,
			Type:          req.Type,
			Side:          req.Side,
			Price:         req.Price,
			LimitQuant:    req.LimitQuant,
			TakerFeeRatio: taker,
			MakerFeeRatio: maker,
			MatchedAssets: decimal.Zero(pair.Asset.Symbol),
			MatchedCoins:  decimal.Zero(pair.Coin.Symbol),
			MatchedFee:    decimal.Zero(pair.Coin.Symbol),
			Status:        orderbook.Matchable,
			CreatedAt:     st.now,
			UpdatedAt:     st.now,
		}
		if o.Side == orderbook.Buy {
			o.MatchedFee = decimal.Zero(pair.BuyFeeSymbol())
		}
		if o.FrozenQuant, err = escrow(pair, o); err != nil {
			return err
		}

		frozenToken := pair.Asset
		if o.Side == orderbook.Buy {
			frozenToken = pair.Coin
		}
		if err := st.ledger.Debit(o.Owner, frozenToken, o.FrozenQuant); err != nil {
			return err
		}

		o.ID = st.ids.NewOrderID()
		if _, exists, err := st.txn.GetOrder(o.ID); err != nil {
			return err
		} else if exists {
			return fault.Invariantf("order id %d is already used", o.ID)
		}
		if err := st.txn.SaveOrder(o); err != nil {
			return err
		}

		if st.cfg.MaxMatchCount > 0 {
			round := st.round(st.cfg.MatchAuthority(), "new_order")
			if _, err := round.MatchPair(pair, st.cfg.MaxMatchCount); err != nil {
				return err
			}
			st.deals = round.Executed()
		}

		placed, _, err = st.txn.GetOrder(o.ID)
		st.record = placed
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("order_placed",
		"order_id", placed.ID,
		"owner", placed.Owner.Hex(),
		"sympair_id", placed.SymPairID,
		"type", placed.Type.String(),
		"side", placed.Side.String(),
		"price", placed.Price.String(),
		"limit", placed.LimitQuant.String(),
		"frozen", placed.FrozenQuant.String(),
		"deals", len(st.deals),
	)
	return placed, nil
}

func checkRatio(name string, r int64) error {
	if r < 0 || r > params.FeeRatioMax {
		return fault.Validationf("%s fee ratio %d out of range [0, %d]", name, r, params.FeeRatioMax)
	}
	return nil
}

// escrow validates o's quantities against pair and returns the amount to
// freeze: coins for buys, assets for sells.
func escrow(pair *market.SymbolPair, o *orderbook.Order) (decimal.Asset, error) {
	asset, coin := pair.Asset.Symbol, pair.Coin.Symbol

	if o.Type == orderbook.Market {
		if !o.Price.IsZero() {
			return decimal.Asset{}, fault.Validationf("market order price must be zero, got %s", o.Price)
		}
		o.Price = decimal.Zero(coin)

		if o.Side == orderbook.Sell {
			if err := checkLimit(o.LimitQuant, pair.MinAssetQuant); err != nil {
				return decimal.Asset{}, err
			}
			return o.LimitQuant, nil
		}
		if err := checkLimit(o.LimitQuant, pair.MinCoinQuant); err != nil {
			return decimal.Asset{}, err
		}
		return withCoinFee(pair, o.LimitQuant, o.TakerFeeRatio)
	}

	if o.Price.Symbol != coin {
		return decimal.Asset{}, fault.Validationf("price symbol %s mismatch with coin %s", o.Price.Symbol, coin)
	}
	if !o.Price.IsPositive() {
		return decimal.Asset{}, fault.Validationf("limit order price must be positive, got %s", o.Price)
	}
	if o.LimitQuant.Symbol != asset {
		return decimal.Asset{}, fault.Validationf("limit quantity symbol %s mismatch with asset %s", o.LimitQuant.Symbol, asset)
	}
	if err := checkLimit(o.LimitQuant, pair.MinAssetQuant); err != nil {
		return decimal.Asset{}, err
	}
	principal, err := decimal.CalcCoinAmount(o.LimitQuant, o.Price)
	if err != nil {
		return decimal.Asset{}, err
	}
	if !principal.IsPositive() {
		return decimal.Asset{}, fault.Validationf("order value %s of %s at %s is zero", principal, o.LimitQuant, o.Price)
	}
	if principal.Cmp(pair.MinCoinQuant) < 0 {
		return decimal.Asset{}, fault.Validationf("order value %s is below the minimum %s", principal, pair.MinCoinQuant)
	}

	if o.Side == orderbook.Sell {
		return o.LimitQuant, nil
	}
	return withCoinFee(pair, principal, max(o.TakerFeeRatio, o.MakerFeeRatio))
}

func checkLimit(limit, minQuant decimal.Asset) error {
	if limit.Symbol != minQuant.Symbol {
		return fault.Validationf("limit quantity symbol %s mismatch with %s", limit.Symbol, minQuant.Symbol)
	}
	if !limit.IsPositive() {
		return fault.Validationf("limit quantity must be positive, got %s", limit)
	}
	if limit.Cmp(minQuant) < 0 {
		return fault.Validationf("limit quantity %s is below the minimum %s", limit, minQuant)
	}
	return nil
}

// withCoinFee adds the worst-case buy fee to a coin escrow on pairs that
// charge buyers in coin.
func withCoinFee(pair *market.SymbolPair, coins decimal.Asset, ratio int64) (decimal.Asset, error) {
	if !pair.OnlyAcceptCoinFee {
		return coins, nil
	}
	fee, err := decimal.CalcMatchFee(ratio, coins)
	if err != nil {
		return decimal.Asset{}, err
	}
	return coins.Add(fee), nil
}

// Cancel closes a matchable order and returns its unmatched escrow to the
// owner.
func (s *Service) Cancel(auth Auth, orderID uint64) (*orderbook.Order, error) {
	var canceled *orderbook.Order
	var refund decimal.Asset
	_, err := s.update("cancel_order", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		o, ok, err := st.txn.GetOrder(orderID)
		if err != nil {
			return err
		}
		if !ok {
			return fault.Validationf("order %d does not exist", orderID)
		}
		if err := auth.require(o.Owner, "owner"); err != nil {
			return err
		}
		if o.Status != orderbook.Matchable {
			return fault.Validationf("order %d is %s, only matchable orders can be canceled", orderID, o.Status)
		}
		pair, err := st.pair(o.SymPairID)
		if err != nil {
			return err
		}

		refund = o.Residual()
		if refund.Amount < 0 {
			return fault.Invariantf("order %d escrow is overdrawn: %s", orderID, refund)
		}
		token := pair.Asset
		if o.Side == orderbook.Buy {
			token = pair.Coin
		}
		if err := st.ledger.Credit(o.Owner, token, refund); err != nil {
			return err
		}

		o.Status = orderbook.Canceled
		o.UpdatedAt = st.now
		if err := st.txn.SaveOrder(o); err != nil {
			return err
		}
		canceled = o
		st.record = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("order_canceled",
		"order_id", orderID,
		"owner", canceled.Owner.Hex(),
		"refund", refund.String(),
	)
	return canceled, nil
}
