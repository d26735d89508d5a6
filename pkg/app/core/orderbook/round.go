package orderbook

import (
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

// DealStore appends trade records.
type DealStore interface {
	SaveDeal(d *Deal) error
}

// DealIDs hands out deal ids that are never reused.
type DealIDs interface {
	NewDealID() uint64
}

// Round is one matching call. It is not safe for concurrent use and must
// run inside a single atomic store transaction.
type Round struct {
	Index        OrderIndex
	Deals        DealStore
	Ledger       Ledger
	IDs          DealIDs
	FeeCollector common.Address
	Matcher      common.Address
	Memo         string
	Now          time.Time
	DustMatch    bool

	executed []*Deal
}

// Executed returns the deals produced so far, oldest first.
func (r *Round) Executed() []*Deal { return r.executed }

// MatchPair trades pair until no couple can match or budget deals were
// executed. It returns the number of deals. Partial fills are persisted
// before returning.
func (r *Round) MatchPair(pair *market.SymbolPair, budget int) (int, error) {
	if budget <= 0 {
		return 0, nil
	}
	sel, err := NewPairSelector(r.Index, pair.ID, r.Now)
	if err != nil {
		return 0, err
	}
	exec := &Executor{
		Pair:         pair,
		Ledger:       r.Ledger,
		FeeCollector: r.FeeCollector,
		DustMatch:    r.DustMatch,
	}

	count := 0
	for count < budget && sel.CanMatch() {
		deal, err := exec.Execute(r.IDs.NewDealID(), sel.Taker(), sel.Maker(), r.Matcher, r.Memo, r.Now)
		if err != nil {
			return count, err
		}
		if err := r.Deals.SaveDeal(deal); err != nil {
			return count, fmt.Errorf("save deal %d: %w", deal.ID, err)
		}
		r.executed = append(r.executed, deal)
		count++

		if err := sel.CompleteAndNext(); err != nil {
			return count, err
		}
	}

	if err := sel.SaveMatchingOrders(); err != nil {
		return count, err
	}
	return count, nil
}

// Run matches the given pairs in order, sharing maxCount deals between them.
// Disabled pairs are skipped. A run that executes nothing fails with
// fault.ErrNothingMatched.
func (r *Round) Run(pairs []*market.SymbolPair, maxCount int) (int, error) {
	total := 0
	for _, pair := range pairs {
		if total >= maxCount {
			break
		}
		if !pair.Enabled {
			continue
		}
		n, err := r.MatchPair(pair, maxCount-total)
		total += n
		if err != nil {
			return total, fmt.Errorf("match pair %d: %w", pair.ID, err)
		}
	}
	if total == 0 {
		return 0, fault.ErrNothingMatched
	}
	return total, nil
}
