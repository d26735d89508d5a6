// Package dex is the exchange service. Every mutating call runs as one
// atomic storage transaction: it either commits every order, deal and
// balance change it made, or none of them.
package dex

import (
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hyperdex/params"
	"github.com/uhyunpark/hyperdex/pkg/app/core/account"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/storage"
	"github.com/uhyunpark/hyperdex/pkg/util"
)

// Version is overridden at build time with -ldflags.
var Version = "dev"

type Service struct {
	mu      sync.Mutex
	store   *storage.Store
	clock   util.Clock
	log     *zap.SugaredLogger
	journal storage.Journal
	events  *dispatcher
}

type Option func(*Service)

func WithClock(c util.Clock) Option { return func(s *Service) { s.clock = c } }

func WithLogger(l *zap.SugaredLogger) Option { return func(s *Service) { s.log = l } }

func WithJournal(j storage.Journal) Option { return func(s *Service) { s.journal = j } }

func WithDealSink(sink DealSink) Option {
	return func(s *Service) { s.events.add(sink) }
}

func New(store *storage.Store, opts ...Option) *Service {
	s := &Service{
		store:   store,
		clock:   util.RealClock{},
		log:     zap.NewNop().Sugar(),
		journal: storage.NopJournal{},
		events:  newDispatcher(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.events.log = s.log
	go s.events.run()
	return s
}

// AddDealSink registers a sink after construction, e.g. the API hub.
func (s *Service) AddDealSink(sink DealSink) { s.events.add(sink) }

// Flush waits until the sinks have seen every deal committed so far.
func (s *Service) Flush() { s.events.flush() }

// Close delivers the deals still queued for the sinks. Deals committed
// afterwards are not published.
func (s *Service) Close() { s.events.close() }

// state is what one call sees while its transaction is open.
type state struct {
	txn         *storage.Txn
	cfg         params.Dex
	initialized bool
	ids         *counters
	ledger      *account.Manager
	now         time.Time

	deals  []*orderbook.Deal
	record any
}

func (st *state) requireInit() error {
	if !st.initialized {
		return fault.Validationf("dex is not initialized")
	}
	return nil
}

func (st *state) pair(id uint64) (*market.SymbolPair, error) {
	p, ok, err := st.txn.GetSymPair(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fault.Validationf("symbol pair %d does not exist", id)
	}
	return p, nil
}

func (st *state) enabledPair(id uint64) (*market.SymbolPair, error) {
	p, err := st.pair(id)
	if err != nil {
		return nil, err
	}
	if !p.Enabled {
		return nil, fault.Validationf("symbol pair %d is disabled", id)
	}
	return p, nil
}

func (st *state) round(matcher common.Address, memo string) *orderbook.Round {
	return &orderbook.Round{
		Index:        st.txn,
		Deals:        st.txn,
		Ledger:       st.ledger,
		IDs:          st.ids,
		FeeCollector: st.cfg.FeeCollector,
		Matcher:      matcher,
		Memo:         memo,
		Now:          st.now,
		DustMatch:    st.cfg.DustMatch,
	}
}

// update runs fn in a fresh transaction and commits it when fn succeeds.
// Journal and sinks only ever see committed work. Deals are queued for the
// sinks in commit order and delivered off the lock.
func (s *Service) update(op string, fn func(st *state) error) (*state, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.apply(fn)
	if err != nil {
		s.log.Debugw("op_rejected", "op", op, "error", err)
		return nil, err
	}

	if err := s.journal.Append(storage.Entry{Time: st.now, Op: op, Data: st.record}); err != nil {
		s.log.Warnw("journal_append_failed", "op", op, "error", err)
	}
	if len(st.deals) > 0 {
		s.events.publish(st.deals)
	}
	return st, nil
}

func (s *Service) apply(fn func(st *state) error) (st *state, err error) {
	txn := s.store.Begin()
	defer txn.Discard()
	defer fault.Recover(&err)

	cfg, ok, err := txn.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c, err := txn.LoadCounters()
	if err != nil {
		return nil, fmt.Errorf("load counters: %w", err)
	}
	st = &state{
		txn:         txn,
		cfg:         cfg,
		initialized: ok,
		ids:         &counters{Counters: c},
		ledger:      account.NewManager(txn),
		now:         s.clock.Now(),
	}

	if err := fn(st); err != nil {
		return nil, err
	}
	if st.ids.dirty {
		if err := txn.SaveCounters(st.ids.Counters); err != nil {
			return nil, fmt.Errorf("save counters: %w", err)
		}
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return st, nil
}

// Init stores the first dex config. It can run once.
func (s *Service) Init(auth Auth, cfg params.Dex) error {
	_, err := s.update("init", func(st *state) error {
		if st.initialized {
			return fault.Validationf("dex is already initialized")
		}
		if err := auth.require(cfg.Admin, "admin"); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fault.Validationf("invalid config: %v", err)
		}
		st.record = cfg
		if err := st.txn.SaveCounters(st.ids.Counters); err != nil {
			return err
		}
		return st.txn.SaveConfig(cfg)
	})
	if err != nil {
		return err
	}
	s.log.Infow("dex_initialized", "admin", cfg.Admin.Hex(), "fee_collector", cfg.FeeCollector.Hex())
	return nil
}

// SetConfig replaces the config. The current admin must sign.
func (s *Service) SetConfig(auth Auth, cfg params.Dex) error {
	_, err := s.update("set_config", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(st.cfg.Admin, "admin"); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return fault.Validationf("invalid config: %v", err)
		}
		st.record = cfg
		return st.txn.SaveConfig(cfg)
	})
	if err != nil {
		return err
	}
	s.log.Infow("config_updated",
		"admin", cfg.Admin.Hex(),
		"maker_fee_ratio", cfg.MakerFeeRatio,
		"taker_fee_ratio", cfg.TakerFeeRatio,
		"max_match_count", cfg.MaxMatchCount,
	)
	return nil
}

// Config returns the persisted config and whether Init has run.
func (s *Service) Config() (params.Dex, bool, error) {
	return s.store.View().LoadConfig()
}

func (s *Service) Version() string { return Version }

// ConsumeNonce burns nonce for owner. It must be exactly one above the last
// consumed nonce. The burn commits on its own, so a request that later fails
// cannot be replayed.
func (s *Service) ConsumeNonce(owner common.Address, nonce uint64) error {
	_, err := s.update("consume_nonce", func(st *state) error {
		last, err := st.txn.Nonce(owner)
		if err != nil {
			return err
		}
		if nonce != last+1 {
			return fault.Validationf("invalid nonce %d for %s, want %d", nonce, owner.Hex(), last+1)
		}
		return st.txn.SetNonce(owner, nonce)
	})
	return err
}

func (s *Service) Nonce(owner common.Address) (uint64, error) {
	return s.store.View().Nonce(owner)
}
