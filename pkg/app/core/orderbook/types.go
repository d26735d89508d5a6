package orderbook

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

type Side uint8

const (
	Buy  Side = 1
	Sell Side = 2
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return fmt.Sprintf("Side(%d)", uint8(s))
	}
}

func (s Side) Valid() bool { return s == Buy || s == Sell }

// MarshalText refuses values that UnmarshalText could not read back.
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fault.Invariantf("cannot encode %s", s)
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(b []byte) error {
	v, err := ParseSide(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(s) {
	case "buy":
		return Buy, nil
	case "sell":
		return Sell, nil
	}
	return 0, fault.Validationf("invalid order side %q", s)
}

type OrderType uint8

const (
	Limit  OrderType = 1
	Market OrderType = 2
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "limit"
	case Market:
		return "market"
	default:
		return fmt.Sprintf("OrderType(%d)", uint8(t))
	}
}

func (t OrderType) Valid() bool { return t == Limit || t == Market }

func (t OrderType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fault.Invariantf("cannot encode %s", t)
	}
	return []byte(t.String()), nil
}

func (t *OrderType) UnmarshalText(b []byte) error {
	v, err := ParseOrderType(string(b))
	if err != nil {
		return err
	}
	*t = v
	return nil
}

func ParseOrderType(s string) (OrderType, error) {
	switch strings.ToLower(s) {
	case "limit":
		return Limit, nil
	case "market":
		return Market, nil
	}
	return 0, fault.Validationf("invalid order type %q", s)
}

type Status uint8

const (
	Matchable Status = 1
	Completed Status = 2
	Canceled  Status = 3
)

func (s Status) String() string {
	switch s {
	case Matchable:
		return "matchable"
	case Completed:
		return "completed"
	case Canceled:
		return "canceled"
	default:
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
}

func (s Status) Valid() bool { return s >= Matchable && s <= Canceled }

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fault.Invariantf("cannot encode %s", s)
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "matchable":
		*s = Matchable
	case "completed":
		*s = Completed
	case "canceled":
		*s = Canceled
	default:
		return fmt.Errorf("invalid order status %q", b)
	}
	return nil
}

// Order is a resting or closed order. Quantities use these symbols:
//   - Price: coin (zero for market orders)
//   - LimitQuant: coin for market buy, asset otherwise
//   - FrozenQuant: coin for buy, asset for sell
//   - MatchedFee: coin for sell; coin or asset for buy depending on the pair
type Order struct {
	ID            uint64         `json:"id"`
	ExternalID    uint64         `json:"external_id"`
	Owner         common.Address `json:"owner"`
	SymPairID     uint64         `json:"sympair_id"`
	Type          OrderType      `json:"type"`
	Side          Side           `json:"side"`
	Price         decimal.Asset  `json:"price"`
	LimitQuant    decimal.Asset  `json:"limit_quant"`
	FrozenQuant   decimal.Asset  `json:"frozen_quant"`
	TakerFeeRatio int64          `json:"taker_fee_ratio"`
	MakerFeeRatio int64          `json:"maker_fee_ratio"`
	MatchedAssets decimal.Asset  `json:"matched_assets"`
	MatchedCoins  decimal.Asset  `json:"matched_coins"`
	MatchedFee    decimal.Asset  `json:"matched_fee"`
	Status        Status         `json:"status"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	LastDealID    uint64         `json:"last_deal_id"`
}

// Key returns the order's position in the match index.
func (o *Order) Key() MatchKey {
	return NewMatchKey(o.SymPairID, o.Status, o.Side, o.Type, o.Price.Amount, o.ID)
}

// LimitInCoins reports whether the order's limit is a coin budget.
func (o *Order) LimitInCoins() bool {
	return o.Type == Market && o.Side == Buy
}

// SpentCoins is the coin amount drawn from a buy order's escrow so far.
func (o *Order) SpentCoins() decimal.Asset {
	spent := o.MatchedCoins
	if o.MatchedFee.Symbol == o.MatchedCoins.Symbol {
		spent = spent.Add(o.MatchedFee)
	}
	return spent
}

// Residual returns the escrow still held for the order.
func (o *Order) Residual() decimal.Asset {
	if o.Side == Buy {
		return o.FrozenQuant.Sub(o.SpentCoins())
	}
	return o.FrozenQuant.Sub(o.MatchedAssets)
}

// Clone returns a copy safe to mutate.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}

// Deal is the immutable record of one executed match.
type Deal struct {
	ID             uint64         `json:"id"`
	SymPairID      uint64         `json:"sympair_id"`
	BuyOrderID     uint64         `json:"buy_order_id"`
	SellOrderID    uint64         `json:"sell_order_id"`
	DealAssets     decimal.Asset  `json:"deal_assets"`
	DealCoins      decimal.Asset  `json:"deal_coins"`
	DealPrice      decimal.Asset  `json:"deal_price"`
	TakerSide      Side           `json:"taker_side"`
	BuyFee         decimal.Asset  `json:"buy_fee"`
	SellFee        decimal.Asset  `json:"sell_fee"`
	BuyRefundCoins decimal.Asset  `json:"buy_refund_coins"`
	Matcher        common.Address `json:"matcher"`
	Memo           string         `json:"memo"`
	DealTime       time.Time      `json:"deal_time"`
}
