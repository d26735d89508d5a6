package storage

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

// Pebble key schema. Numeric fields are 8-byte big-endian so range scans
// follow numeric order.
//
//	cfg                                  → dex config
//	gbl                                  → id counters
//	sp:<pair_id>                         → SymbolPair
//	sps:<asset_token>/<coin_token>       → pair_id
//	ord:<order_id>                       → Order
//	idx:<match_key 32B>                  → order_id
//	own:<address>:<order_id>             → (empty) owner index
//	upd:<status 1B><updated_ns><order_id> → (empty) cleanup index
//	deal:<deal_id>                       → Deal
//	dpr:<pair_id><deal_id>               → (empty) deals by pair
//	bal:<address>:<contract>:<code>      → Balance
//	nonce:<address>                      → last used nonce
const (
	keyConfig      = "cfg"
	keyCounters    = "gbl"
	prefixPair     = "sp:"
	prefixPairSym  = "sps:"
	prefixOrder    = "ord:"
	prefixMatchIdx = "idx:"
	prefixOwner    = "own:"
	prefixUpdated  = "upd:"
	prefixDeal     = "deal:"
	prefixPairDeal = "dpr:"
	prefixBalance  = "bal:"
	prefixNonce    = "nonce:"
)

func cat(parts ...[]byte) []byte {
	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]byte, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

func pairKey(id uint64) []byte { return cat([]byte(prefixPair), be64(id)) }

func pairSymKey(asset, coin market.Token) []byte {
	return []byte(prefixPairSym + asset.Key() + "/" + coin.Key())
}

func orderKey(id uint64) []byte { return cat([]byte(prefixOrder), be64(id)) }

func matchIdxKey(k orderbook.MatchKey) []byte { return cat([]byte(prefixMatchIdx), k.Bytes()) }

func ownerPrefix(owner common.Address) []byte {
	return []byte(prefixOwner + owner.Hex() + ":")
}

func ownerKey(owner common.Address, id uint64) []byte {
	return cat(ownerPrefix(owner), be64(id))
}

func updatedPrefix(status orderbook.Status) []byte {
	return cat([]byte(prefixUpdated), []byte{byte(status)})
}

func updatedKey(status orderbook.Status, at time.Time, id uint64) []byte {
	return cat(updatedPrefix(status), be64(uint64(at.UnixNano())), be64(id))
}

func dealKey(id uint64) []byte { return cat([]byte(prefixDeal), be64(id)) }

func pairDealPrefix(pairID uint64) []byte { return cat([]byte(prefixPairDeal), be64(pairID)) }

func pairDealKey(pairID, dealID uint64) []byte { return cat(pairDealPrefix(pairID), be64(dealID)) }

func balancePrefix(owner common.Address) []byte {
	return []byte(prefixBalance + owner.Hex() + ":")
}

func balanceKey(owner common.Address, token market.Token) []byte {
	return []byte(prefixBalance + owner.Hex() + ":" + token.Key())
}

func nonceKey(owner common.Address) []byte { return []byte(prefixNonce + owner.Hex()) }

// keyUpperBound returns the exclusive upper bound for a prefix scan.
func keyUpperBound(prefix []byte) []byte {
	bound := make([]byte, len(prefix))
	copy(bound, prefix)
	for i := len(bound) - 1; i >= 0; i-- {
		if bound[i] < 0xff {
			bound[i]++
			return bound[:i+1]
		}
	}
	return nil
}
