package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

type MatchRequest struct {
	Matcher    common.Address `json:"matcher"`
	MaxCount   int            `json:"max_count"`
	SymPairIDs []uint64       `json:"sympair_ids,omitempty"` // empty = every enabled pair
	Memo       string         `json:"memo"`
}

// Match runs one matching round. Only the settler may call it. A round that
// executes nothing fails with fault.ErrNothingMatched and changes nothing.
func (s *Service) Match(auth Auth, req MatchRequest) ([]*orderbook.Deal, error) {
	st, err := s.update("match", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(st.cfg.MatchAuthority(), "settler"); err != nil {
			return err
		}
		if req.MaxCount <= 0 {
			return fault.Validationf("max count must be positive, got %d", req.MaxCount)
		}

		var pairs []*market.SymbolPair
		if len(req.SymPairIDs) > 0 {
			for _, id := range req.SymPairIDs {
				p, err := st.enabledPair(id)
				if err != nil {
					return err
				}
				pairs = append(pairs, p)
			}
		} else {
			all, err := st.txn.ListSymPairs()
			if err != nil {
				return err
			}
			for _, p := range all {
				if p.Enabled {
					pairs = append(pairs, p)
				}
			}
		}

		round := st.round(req.Matcher, req.Memo)
		_, err := round.Run(pairs, req.MaxCount)
		st.deals = round.Executed()
		st.record = req
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Infow("match_round",
		"matcher", req.Matcher.Hex(),
		"memo", req.Memo,
		"max_count", req.MaxCount,
		"deals", len(st.deals),
	)
	return st.deals, nil
}
