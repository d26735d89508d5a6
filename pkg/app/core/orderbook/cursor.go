package orderbook

import (
	"fmt"
	"time"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

// OrderIndex is the ordered order table the matching core reads and writes.
type OrderIndex interface {
	// UpperBound returns the order with the smallest match key strictly
	// greater than key, or false when none exists.
	UpperBound(key MatchKey) (*Order, bool, error)

	// SaveOrder persists o and moves its index entry if the key changed.
	SaveOrder(o *Order) error
}

type CursorState uint8

const (
	CursorClosed CursorState = iota
	CursorOpened
	CursorMatching
	CursorCompleted
)

func (s CursorState) String() string {
	switch s {
	case CursorClosed:
		return "closed"
	case CursorOpened:
		return "opened"
	case CursorMatching:
		return "matching"
	case CursorCompleted:
		return "completed"
	default:
		return fmt.Sprintf("CursorState(%d)", uint8(s))
	}
}

// Cursor walks the matchable orders of one (pair, side, type) class in
// priority order and carries the in-flight totals of the current order.
type Cursor struct {
	index  OrderIndex
	pairID uint64
	side   Side
	typ    OrderType
	now    time.Time

	state  CursorState
	key    MatchKey
	order  *Order
	refund decimal.Asset
}

// NewCursor positions a cursor on the best matchable order of a class.
func NewCursor(index OrderIndex, pairID uint64, side Side, typ OrderType, now time.Time) (*Cursor, error) {
	c := &Cursor{index: index, pairID: pairID, side: side, typ: typ, now: now}
	if err := c.seek(classStartKey(pairID, side, typ)); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Cursor) seek(after MatchKey) error {
	c.order = nil
	c.refund = decimal.Asset{}
	c.state = CursorClosed

	o, ok, err := c.index.UpperBound(after)
	if err != nil {
		return fmt.Errorf("seek %s %s orders of pair %d: %w", c.typ, c.side, c.pairID, err)
	}
	if !ok {
		return nil
	}
	key := o.Key()
	if !key.SameClass(classStartKey(c.pairID, c.side, c.typ)) {
		return nil
	}
	if o.SymPairID != c.pairID || o.Status != Matchable || o.Side != c.side || o.Type != c.typ {
		return fault.Invariantf("cursor %d/%s/%s landed on order %d out of scope", c.pairID, c.side, c.typ, o.ID)
	}
	c.key = key
	c.order = o.Clone()
	c.state = CursorOpened
	return nil
}

func (c *Cursor) State() CursorState { return c.state }
func (c *Cursor) Side() Side         { return c.side }
func (c *Cursor) Type() OrderType    { return c.typ }

// Valid reports whether the cursor holds an order that can still match.
func (c *Cursor) Valid() bool {
	return c.state == CursorOpened || c.state == CursorMatching
}

// Order returns the current order including in-flight totals.
func (c *Cursor) Order() *Order { return c.order }

// Completed reports whether the current order filled its limit this round.
func (c *Cursor) Completed() bool { return c.state == CursorCompleted }

// Refund is the coin surplus of a completed buy order.
func (c *Cursor) Refund() decimal.Asset { return c.refund }

func (c *Cursor) matched() decimal.Asset {
	if c.order.LimitInCoins() {
		return c.order.MatchedCoins
	}
	return c.order.MatchedAssets
}

// FreeLimitQuant is what remains of the order's limit: coins for a market
// buy, assets for every other class.
func (c *Cursor) FreeLimitQuant() decimal.Asset {
	free := c.order.LimitQuant.Sub(c.matched())
	if free.Amount < 0 {
		panic(fault.Invariantf("order %d free limit quant is negative: %s", c.order.ID, free))
	}
	return free
}

// Match books one fill against the current order.
func (c *Cursor) Match(dealID uint64, assets, coins, fee decimal.Asset) error {
	if !c.Valid() {
		return fault.Invariantf("match on %s cursor %d/%s/%s", c.state, c.pairID, c.side, c.typ)
	}
	if assets.Amount < 0 || coins.Amount < 0 || fee.Amount < 0 {
		return fault.Invariantf("order %d: negative fill %s / %s / %s", c.order.ID, assets, coins, fee)
	}

	o := c.order
	o.MatchedAssets = o.MatchedAssets.Add(assets)
	o.MatchedCoins = o.MatchedCoins.Add(coins)
	o.MatchedFee = o.MatchedFee.Add(fee)
	o.LastDealID = dealID

	matched := c.matched()
	switch matched.Cmp(o.LimitQuant) {
	case 1:
		return fault.Invariantf("order %d: matched %s exceeds limit %s", o.ID, matched, o.LimitQuant)
	case 0:
		c.state = CursorCompleted
	default:
		c.state = CursorMatching
	}

	if o.Side == Buy {
		spent := o.SpentCoins()
		if spent.Cmp(o.FrozenQuant) > 0 {
			return fault.Invariantf("order %d: spent coins %s exceed frozen %s", o.ID, spent, o.FrozenQuant)
		}
		if c.state == CursorCompleted {
			c.refund = o.FrozenQuant.Sub(spent)
		}
	}
	return nil
}

// CompleteAndNext persists a completed order and advances to the next one.
func (c *Cursor) CompleteAndNext() error {
	if c.state != CursorCompleted {
		return fault.Invariantf("complete_and_next on %s cursor", c.state)
	}
	c.order.Status = Completed
	c.order.UpdatedAt = c.now
	if err := c.index.SaveOrder(c.order); err != nil {
		return fmt.Errorf("save completed order %d: %w", c.order.ID, err)
	}
	return c.seek(c.key)
}

// SaveMatchingOrder persists the partial totals of an order that matched
// this round without completing.
func (c *Cursor) SaveMatchingOrder() error {
	if c.state != CursorMatching {
		return nil
	}
	c.order.UpdatedAt = c.now
	if err := c.index.SaveOrder(c.order); err != nil {
		return fmt.Errorf("save matching order %d: %w", c.order.ID, err)
	}
	return nil
}
