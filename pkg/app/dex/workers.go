package dex

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

// RunMatcher runs a matching round over every enabled pair once per
// interval until ctx ends. The node holds the settler's authority; matcher
// is only recorded on deals and defaults to the settler.
func (s *Service) RunMatcher(ctx context.Context, matcher common.Address, every time.Duration, maxCount int) {
	s.log.Infow("auto_matcher_started", "interval", every, "max_count", maxCount)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(every):
		}

		cfg, ok, err := s.Config()
		if err != nil {
			s.log.Warnw("auto_match_failed", "error", err)
			continue
		}
		if !ok {
			continue
		}
		recorded := matcher
		if recorded == (common.Address{}) {
			recorded = cfg.MatchAuthority()
		}
		_, err = s.Match(NewAuth(cfg.MatchAuthority()), MatchRequest{
			Matcher:  recorded,
			MaxCount: maxCount,
			Memo:     "auto",
		})
		if err != nil && !fault.IsNothingMatched(err) {
			s.log.Warnw("auto_match_failed", "error", err)
		}
	}
}

// RunCleaner calls CleanData once per interval until ctx ends.
func (s *Service) RunCleaner(ctx context.Context, every time.Duration, maxCount int) {
	s.log.Infow("cleaner_started", "interval", every, "max_count", maxCount)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(every):
		}

		if _, ok, err := s.Config(); err != nil || !ok {
			continue
		}
		if _, err := s.CleanData(maxCount); err != nil {
			s.log.Warnw("clean_failed", "error", err)
		}
	}
}
