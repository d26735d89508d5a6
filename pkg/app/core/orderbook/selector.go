package orderbook

import (
	"time"
)

// PairSelector owns the four class cursors of one symbol pair and picks the
// next (taker, maker) couple.
type PairSelector struct {
	LimitBuy   *Cursor
	LimitSell  *Cursor
	MarketBuy  *Cursor
	MarketSell *Cursor

	taker    *Cursor
	maker    *Cursor
	canMatch bool
}

func NewPairSelector(index OrderIndex, pairID uint64, now time.Time) (*PairSelector, error) {
	var (
		s   PairSelector
		err error
	)
	if s.LimitBuy, err = NewCursor(index, pairID, Buy, Limit, now); err != nil {
		return nil, err
	}
	if s.LimitSell, err = NewCursor(index, pairID, Sell, Limit, now); err != nil {
		return nil, err
	}
	if s.MarketBuy, err = NewCursor(index, pairID, Buy, Market, now); err != nil {
		return nil, err
	}
	if s.MarketSell, err = NewCursor(index, pairID, Sell, Market, now); err != nil {
		return nil, err
	}
	s.process()
	return &s, nil
}

func (s *PairSelector) CanMatch() bool { return s.canMatch }
func (s *PairSelector) Taker() *Cursor { return s.taker }
func (s *PairSelector) Maker() *Cursor { return s.maker }

func (s *PairSelector) cursors() [4]*Cursor {
	return [4]*Cursor{s.LimitBuy, s.LimitSell, s.MarketBuy, s.MarketSell}
}

// opposingLimit returns the limit cursor a market order on side trades with.
func (s *PairSelector) opposingLimit(side Side) *Cursor {
	if side == Buy {
		return s.LimitSell
	}
	return s.LimitBuy
}

func (s *PairSelector) process() {
	s.taker, s.maker, s.canMatch = nil, nil, false

	// Market orders never rest as makers. When both market sides are live
	// the older one goes first against the opposing limit book.
	if s.MarketBuy.Valid() && s.MarketSell.Valid() {
		taker := s.MarketBuy
		if s.MarketSell.Order().ID < s.MarketBuy.Order().ID {
			taker = s.MarketSell
		}
		if maker := s.opposingLimit(taker.Side()); maker.Valid() {
			s.taker, s.maker, s.canMatch = taker, maker, true
			return
		}
	}

	if s.MarketBuy.Valid() && s.LimitSell.Valid() {
		s.taker, s.maker, s.canMatch = s.MarketBuy, s.LimitSell, true
		return
	}
	if s.MarketSell.Valid() && s.LimitBuy.Valid() {
		s.taker, s.maker, s.canMatch = s.MarketSell, s.LimitBuy, true
		return
	}

	if s.LimitBuy.Valid() && s.LimitSell.Valid() {
		buy, sell := s.LimitBuy.Order(), s.LimitSell.Order()
		if buy.Price.Cmp(sell.Price) >= 0 {
			if buy.ID > sell.ID {
				s.taker, s.maker = s.LimitBuy, s.LimitSell
			} else {
				s.taker, s.maker = s.LimitSell, s.LimitBuy
			}
			s.canMatch = true
		}
	}
}

// CompleteAndNext advances every cursor whose order completed, then picks
// the next couple.
func (s *PairSelector) CompleteAndNext() error {
	for _, c := range s.cursors() {
		if c.Completed() {
			if err := c.CompleteAndNext(); err != nil {
				return err
			}
		}
	}
	s.process()
	return nil
}

// SaveMatchingOrders persists partial fills left on any cursor.
func (s *PairSelector) SaveMatchingOrders() error {
	for _, c := range s.cursors() {
		if err := c.SaveMatchingOrder(); err != nil {
			return err
		}
	}
	return nil
}
