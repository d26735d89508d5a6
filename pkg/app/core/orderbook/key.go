package orderbook

import (
	"bytes"
	"math"

	"github.com/holiman/uint256"
)

// MatchKey orders resting orders for matching. It is a 256-bit integer made
// of four 64-bit words, most significant first:
//
//	sympair_id | option | price_rank | order_id
//
// option packs status<<56 | side<<48 | type<<40. price_rank is the price for
// sell orders and MaxUint64-price for buy orders, so an ascending scan of one
// (pair, option) class always visits the best price first and, at equal
// price, the oldest order first.
//
// The big-endian byte form sorts the same way as the integer, which lets the
// key be used directly as an ordered store key.
type MatchKey [32]byte

func makeOption(status Status, side Side, typ OrderType) uint64 {
	return uint64(status)<<56 | uint64(side)<<48 | uint64(typ)<<40
}

func priceRank(side Side, price int64) uint64 {
	if side == Buy {
		return math.MaxUint64 - uint64(price)
	}
	return uint64(price)
}

func NewMatchKey(pairID uint64, status Status, side Side, typ OrderType, price int64, orderID uint64) MatchKey {
	z := uint256.Int{orderID, priceRank(side, price), makeOption(status, side, typ), pairID}
	return MatchKey(z.Bytes32())
}

// classStartKey sorts before every matchable order of one class.
func classStartKey(pairID uint64, side Side, typ OrderType) MatchKey {
	z := uint256.Int{0, 0, makeOption(Matchable, side, typ), pairID}
	return MatchKey(z.Bytes32())
}

func (k MatchKey) Bytes() []byte { return k[:] }

// SameClass reports whether both keys share pair id and option.
func (k MatchKey) SameClass(other MatchKey) bool {
	return bytes.Equal(k[:16], other[:16])
}

func (k MatchKey) Less(other MatchKey) bool {
	return bytes.Compare(k[:], other[:]) < 0
}

func (k MatchKey) Int() *uint256.Int {
	return new(uint256.Int).SetBytes32(k[:])
}
