package dex

import (
	"math"

	"github.com/uhyunpark/hyperdex/pkg/storage"
)

// counters hands out ids for one call. The row is written back at most once,
// when the call commits.
type counters struct {
	storage.Counters
	dirty bool
}

func nextID(id uint64) uint64 {
	if id == 0 || id == math.MaxUint64 {
		return 1
	}
	return id + 1
}

func (c *counters) NewOrderID() uint64 {
	c.OrderID = nextID(c.OrderID)
	c.dirty = true
	return c.OrderID
}

func (c *counters) NewSymPairID() uint64 {
	c.SymPairID = nextID(c.SymPairID)
	c.dirty = true
	return c.SymPairID
}

func (c *counters) NewDealID() uint64 {
	c.DealID = nextID(c.DealID)
	c.dirty = true
	return c.DealID
}
