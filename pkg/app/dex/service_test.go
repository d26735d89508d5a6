package dex

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/params"
	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/storage"
	"github.com/uhyunpark/hyperdex/pkg/util"
)

var (
	btc  = decimal.MustSymbol("BTC", 8)
	usd  = decimal.MustSymbol("USD", 4)
	btcT = market.Token{Contract: "btc.bank", Symbol: btc}
	usdT = market.Token{Contract: "usd.bank", Symbol: usd}

	admin        = common.HexToAddress("0xAD00000000000000000000000000000000000001")
	settler      = common.HexToAddress("0x5E00000000000000000000000000000000000001")
	feeCollector = common.HexToAddress("0xFEE0000000000000000000000000000000000000")
	alice        = common.HexToAddress("0xAA00000000000000000000000000000000000001")
	bob          = common.HexToAddress("0xBB00000000000000000000000000000000000002")

	t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

func btcOf(v int64) decimal.Asset { return decimal.Asset{Amount: v, Symbol: btc} }
func usdOf(v int64) decimal.Asset { return decimal.Asset{Amount: v, Symbol: usd} }

type memJournal struct{ ops []string }

func (j *memJournal) Append(e storage.Entry) error {
	j.ops = append(j.ops, e.Op)
	return nil
}

type memSink struct{ deals []*orderbook.Deal }

func (m *memSink) PublishDeals(_ context.Context, deals []*orderbook.Deal) error {
	m.deals = append(m.deals, deals...)
	return nil
}

type fixture struct {
	t       *testing.T
	svc     *Service
	clock   *util.ManualClock
	journal *memJournal
	sink    *memSink
	pair    *market.SymbolPair
}

// newFixture initializes a dex with a BTC/USD pair. Placement matching is
// off unless mutate turns it on.
func newFixture(t *testing.T, mutate func(cfg *params.Dex)) *fixture {
	t.Helper()
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	f := &fixture{
		t:       t,
		clock:   util.NewManualClock(t0),
		journal: &memJournal{},
		sink:    &memSink{},
	}
	f.svc = New(store, WithClock(f.clock), WithJournal(f.journal), WithDealSink(f.sink))
	t.Cleanup(f.svc.Close)

	cfg := params.Default().Dex
	cfg.Admin = admin
	cfg.Settler = settler
	cfg.FeeCollector = feeCollector
	cfg.MaxMatchCount = 0
	if mutate != nil {
		mutate(&cfg)
	}
	if err := f.svc.Init(NewAuth(admin), cfg); err != nil {
		t.Fatalf("init: %v", err)
	}

	f.pair, err = f.svc.SetSymPair(NewAuth(admin), SymPairParams{
		Asset:         btcT,
		Coin:          usdT,
		MinAssetQuant: btcOf(1_000), // 0.00001000 BTC
		MinCoinQuant:  usdOf(1_000), // 0.1000 USD
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("set sympair: %v", err)
	}
	return f
}

func (f *fixture) deposit(owner common.Address, quant decimal.Asset) {
	f.t.Helper()
	token := usdT
	if quant.Symbol == btc {
		token = btcT
	}
	if err := f.svc.Deposit(NewAuth(admin), owner, token, quant); err != nil {
		f.t.Fatalf("deposit: %v", err)
	}
}

func (f *fixture) balance(owner common.Address, token market.Token) int64 {
	f.t.Helper()
	b, err := f.svc.Balance(owner, token)
	if err != nil {
		f.t.Fatalf("balance: %v", err)
	}
	return b.Amount
}

func (f *fixture) limit(side orderbook.Side, owner common.Address, price, qty int64) *orderbook.Order {
	f.t.Helper()
	o, err := f.svc.NewOrder(NewAuth(owner), OrderRequest{
		Owner:      owner,
		SymPairID:  f.pair.ID,
		Type:       orderbook.Limit,
		Side:       side,
		LimitQuant: btcOf(qty),
		Price:      usdOf(price),
	})
	if err != nil {
		f.t.Fatalf("place %s: %v", side, err)
	}
	return o
}

func (f *fixture) match(maxCount int) []*orderbook.Deal {
	f.t.Helper()
	deals, err := f.svc.Match(NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: maxCount, Memo: "test"})
	if err != nil {
		f.t.Fatalf("match: %v", err)
	}
	return deals
}

func (f *fixture) order(id uint64) *orderbook.Order {
	f.t.Helper()
	o, ok, err := f.svc.GetOrder(id)
	if err != nil || !ok {
		f.t.Fatalf("order %d: %v, %v", id, ok, err)
	}
	return o
}

func TestScenarioFullFill(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(1_000_000))
	f.deposit(bob, btcOf(1_000_000))

	buy := f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)
	sell := f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)
	if buy.FrozenQuant != usdOf(1_000_000) || sell.FrozenQuant != btcOf(1_000_000) {
		t.Fatalf("escrow %s / %s", buy.FrozenQuant, sell.FrozenQuant)
	}
	if got := f.balance(alice, usdT); got != 0 {
		t.Fatalf("alice usd after escrow %d, want 0", got)
	}

	deals := f.match(10)
	if len(deals) != 1 {
		t.Fatalf("deals = %d, want 1", len(deals))
	}
	d := deals[0]
	if d.BuyOrderID != buy.ID || d.SellOrderID != sell.ID || d.DealPrice != usdOf(100_000_000) {
		t.Errorf("deal %+v", d)
	}
	if d.Matcher != settler || d.Memo != "test" || !d.DealTime.Equal(t0) {
		t.Errorf("deal attribution %s %q %s", d.Matcher.Hex(), d.Memo, d.DealTime)
	}

	for _, id := range []uint64{buy.ID, sell.ID} {
		o := f.order(id)
		if o.Status != orderbook.Completed {
			t.Errorf("order %d status %s, want completed", id, o.Status)
		}
		if o.MatchedAssets != btcOf(1_000_000) || o.MatchedCoins != usdOf(1_000_000) {
			t.Errorf("order %d matched %s / %s", id, o.MatchedAssets, o.MatchedCoins)
		}
	}

	tests := []struct {
		owner common.Address
		token market.Token
		want  int64
	}{
		{alice, btcT, 999_600},
		{alice, usdT, 0},
		{bob, usdT, 999_200},
		{bob, btcT, 0},
		{feeCollector, btcT, 400},
		{feeCollector, usdT, 800},
	}
	for _, tt := range tests {
		if got := f.balance(tt.owner, tt.token); got != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.owner.Hex()[:6], tt.token.Symbol.Code, got, tt.want)
		}
	}

	f.svc.Flush()
	if len(f.sink.deals) != 1 || f.sink.deals[0].ID != d.ID {
		t.Errorf("sink got %d deals, want the committed one", len(f.sink.deals))
	}
}

func TestPlacementMatch(t *testing.T) {
	f := newFixture(t, func(cfg *params.Dex) { cfg.MaxMatchCount = 10 })
	f.deposit(alice, usdOf(1_000_000))
	f.deposit(bob, btcOf(1_000_000))

	f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)
	sell := f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)

	if sell.Status != orderbook.Completed {
		t.Fatalf("sell status %s, want completed at placement", sell.Status)
	}
	f.svc.Flush()
	if len(f.sink.deals) != 1 {
		t.Fatalf("published %d deals, want 1", len(f.sink.deals))
	}
	if d := f.sink.deals[0]; d.Matcher != settler || d.Memo != "new_order" {
		t.Errorf("placement deal attributed to %s %q", d.Matcher.Hex(), d.Memo)
	}

	// nothing left to match
	_, err := f.svc.Match(NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: 10})
	if !fault.IsNothingMatched(err) {
		t.Errorf("match after placement: got %v, want nothing matched", err)
	}
}

func TestScenarioCancel(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(1_000_000))
	buy := f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)

	if _, err := f.svc.Cancel(NewAuth(bob), buy.ID); !fault.IsValidation(err) {
		t.Fatalf("cancel by bob: got %v, want validation fault", err)
	}

	canceled, err := f.svc.Cancel(NewAuth(alice), buy.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if canceled.Status != orderbook.Canceled {
		t.Errorf("status %s, want canceled", canceled.Status)
	}
	if got := f.balance(alice, usdT); got != 1_000_000 {
		t.Errorf("alice usd %d, want full refund 1000000", got)
	}

	if _, err := f.svc.Cancel(NewAuth(alice), buy.ID); !fault.IsValidation(err) {
		t.Errorf("second cancel: got %v, want validation fault", err)
	}
	if got := f.balance(alice, usdT); got != 1_000_000 {
		t.Errorf("second cancel changed balance to %d", got)
	}

	// a canceled order never matches
	f.deposit(bob, btcOf(1_000_000))
	f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)
	if _, err := f.svc.Match(NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: 10}); !fault.IsNothingMatched(err) {
		t.Errorf("match against canceled order: got %v, want nothing matched", err)
	}
}

func TestScenarioDustMarketBuy(t *testing.T) {
	f := newFixture(t, nil)
	// lower the minimums so a 0.0001 USD market buy is accepted
	_, err := f.svc.SetSymPair(NewAuth(admin), SymPairParams{
		Asset:         btcT,
		Coin:          usdT,
		MinAssetQuant: btcOf(1),
		MinCoinQuant:  usdOf(1),
		Enabled:       true,
	})
	if err != nil {
		t.Fatalf("update pair: %v", err)
	}
	f.deposit(bob, btcOf(1_000_000))
	f.deposit(alice, usdOf(1))

	f.limit(orderbook.Sell, bob, 200_000_000, 1_000_000) // 20000.0000 USD
	mb, err := f.svc.BuyMarket(NewAuth(alice), OrderRequest{Owner: alice, SymPairID: f.pair.ID, LimitQuant: usdOf(1)})
	if err != nil {
		t.Fatalf("market buy: %v", err)
	}

	deals := f.match(10)
	if len(deals) != 1 {
		t.Fatalf("deals = %d, want 1", len(deals))
	}
	if deals[0].DealAssets != btcOf(1) || deals[0].DealCoins != usdOf(1) {
		t.Errorf("deal %s for %s, want 1 sat for 0.0001 USD", deals[0].DealAssets, deals[0].DealCoins)
	}
	if got := f.order(mb.ID).Status; got != orderbook.Completed {
		t.Errorf("market buy status %s, want completed", got)
	}
	if got := f.balance(alice, btcT); got != 1 {
		t.Errorf("alice btc %d, want 1", got)
	}
}

func TestScenarioPartialFill(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(2_000_000))
	f.deposit(bob, btcOf(1_000_000))

	buy := f.limit(orderbook.Buy, alice, 100_000_000, 2_000_000)
	sell := f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)
	f.match(10)

	if o := f.order(buy.ID); o.Status != orderbook.Matchable || o.MatchedAssets != btcOf(1_000_000) {
		t.Errorf("buy %s matched %s, want matchable with 0.01 BTC", o.Status, o.MatchedAssets)
	}
	if got := f.order(sell.ID).Status; got != orderbook.Completed {
		t.Errorf("sell status %s, want completed", got)
	}

	// canceling the rest returns the unspent half of the escrow
	if _, err := f.svc.Cancel(NewAuth(alice), buy.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if got := f.balance(alice, usdT); got != 1_000_000 {
		t.Errorf("alice usd %d, want 1000000", got)
	}
}

func TestMatchNothingLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(1_000_000))
	f.deposit(bob, btcOf(1_000_000))
	f.limit(orderbook.Buy, alice, 90_000_000, 1_000_000)
	f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)

	ops := len(f.journal.ops)
	_, err := f.svc.Match(NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: 10})
	if !fault.IsNothingMatched(err) {
		t.Fatalf("got %v, want nothing matched", err)
	}
	if len(f.journal.ops) != ops {
		t.Errorf("failed round was journaled")
	}
	f.svc.Flush()
	if len(f.sink.deals) != 0 {
		t.Errorf("failed round published deals")
	}
}

func TestMatchRequest(t *testing.T) {
	f := newFixture(t, nil)

	tests := []struct {
		name string
		auth Auth
		req  MatchRequest
	}{
		{"not settler", NewAuth(admin), MatchRequest{Matcher: admin, MaxCount: 1}},
		{"zero budget", NewAuth(settler), MatchRequest{Matcher: settler}},
		{"unknown pair", NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: 1, SymPairIDs: []uint64{99}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := f.svc.Match(tt.auth, tt.req); !fault.IsValidation(err) {
				t.Errorf("got %v, want validation fault", err)
			}
		})
	}

	if err := f.svc.OnOffSymPair(NewAuth(admin), f.pair.ID, false); err != nil {
		t.Fatalf("disable pair: %v", err)
	}
	_, err := f.svc.Match(NewAuth(settler), MatchRequest{Matcher: settler, MaxCount: 1, SymPairIDs: []uint64{f.pair.ID}})
	if !fault.IsValidation(err) {
		t.Errorf("disabled pair: got %v, want validation fault", err)
	}
}

func TestOrderValidation(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(1_000_000))
	f.deposit(alice, btcOf(1_000_000))

	base := OrderRequest{Owner: alice, SymPairID: f.pair.ID, Type: orderbook.Limit, Side: orderbook.Buy, LimitQuant: btcOf(10_000), Price: usdOf(100_000_000)}
	tests := []struct {
		name   string
		mutate func(r *OrderRequest)
	}{
		{"unknown pair", func(r *OrderRequest) { r.SymPairID = 42 }},
		{"bad type", func(r *OrderRequest) { r.Type = 7 }},
		{"bad side", func(r *OrderRequest) { r.Side = 0 }},
		{"price in asset", func(r *OrderRequest) { r.Price = btcOf(100) }},
		{"zero price", func(r *OrderRequest) { r.Price = usdOf(0) }},
		{"limit in coin", func(r *OrderRequest) { r.LimitQuant = usdOf(10_000) }},
		{"below min asset", func(r *OrderRequest) { r.LimitQuant = btcOf(999) }},
		{"below min coin", func(r *OrderRequest) { r.Price = usdOf(1_000) }},
		{"market with price", func(r *OrderRequest) { r.Type = orderbook.Market }},
		{"market buy in asset", func(r *OrderRequest) { r.Type, r.Price = orderbook.Market, decimal.Asset{} }},
		{"market sell in coin", func(r *OrderRequest) {
			r.Type, r.Side, r.Price, r.LimitQuant = orderbook.Market, orderbook.Sell, decimal.Asset{}, usdOf(10_000)
		}},
		{"insufficient balance", func(r *OrderRequest) { r.LimitQuant = btcOf(2_000_000) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			if _, err := f.svc.NewOrder(NewAuth(alice), req); !fault.IsValidation(err) {
				t.Errorf("got %v, want validation fault", err)
			}
		})
	}

	if got := f.balance(alice, usdT); got != 1_000_000 {
		t.Errorf("rejected orders moved funds: usd %d", got)
	}
	if orders, _ := f.svc.OrdersByOwner(alice, 0); len(orders) != 0 {
		t.Errorf("rejected orders were stored: %d", len(orders))
	}
}

func TestOrderAuthorization(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(1_000_000))
	req := OrderRequest{Owner: alice, SymPairID: f.pair.ID, LimitQuant: btcOf(10_000), Price: usdOf(100_000_000)}

	if _, err := f.svc.BuyLimit(NewAuth(bob), req); !fault.IsValidation(err) {
		t.Errorf("order signed by bob: got %v, want validation fault", err)
	}

	req.FeeOverride = &FeeOverride{Taker: 1, Maker: 0}
	if _, err := f.svc.BuyLimit(NewAuth(alice), req); !fault.IsValidation(err) {
		t.Errorf("override without admin: got %v, want validation fault", err)
	}
	o, err := f.svc.BuyLimit(NewAuth(alice, admin), req)
	if err != nil {
		t.Fatalf("override with admin: %v", err)
	}
	if o.TakerFeeRatio != 1 || o.MakerFeeRatio != 0 {
		t.Errorf("ratios %d/%d, want 1/0", o.TakerFeeRatio, o.MakerFeeRatio)
	}

	req.FeeOverride = &FeeOverride{Taker: params.FeeRatioMax + 1}
	if _, err := f.svc.BuyLimit(NewAuth(alice, admin), req); !fault.IsValidation(err) {
		t.Errorf("override above max: got %v, want validation fault", err)
	}

	cfg, _, _ := f.svc.Config()
	cfg.AdminSignRequired = true
	if err := f.svc.SetConfig(NewAuth(admin), cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}
	req.FeeOverride = nil
	if _, err := f.svc.BuyLimit(NewAuth(alice), req); !fault.IsValidation(err) {
		t.Errorf("admin sign required: got %v, want validation fault", err)
	}
	if _, err := f.svc.BuyLimit(NewAuth(alice, admin), req); err != nil {
		t.Errorf("co-signed order: %v", err)
	}
}

func TestCoinFeeEscrow(t *testing.T) {
	f := newFixture(t, nil)
	_, err := f.svc.SetSymPair(NewAuth(admin), SymPairParams{
		Asset: btcT, Coin: usdT, MinAssetQuant: btcOf(1_000), MinCoinQuant: usdOf(1_000),
		OnlyAcceptCoinFee: true, Enabled: true,
	})
	if err != nil {
		t.Fatalf("update pair: %v", err)
	}
	f.deposit(alice, usdOf(2_000_000))

	buy := f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)
	if buy.FrozenQuant != usdOf(1_000_800) {
		t.Errorf("limit buy escrow %s, want 100.0800 USD", buy.FrozenQuant)
	}
	if buy.MatchedFee.Symbol != usd {
		t.Errorf("buy fee symbol %s, want USD", buy.MatchedFee.Symbol)
	}
	mb, err := f.svc.BuyMarket(NewAuth(alice), OrderRequest{Owner: alice, SymPairID: f.pair.ID, LimitQuant: usdOf(500_000)})
	if err != nil {
		t.Fatalf("market buy: %v", err)
	}
	if mb.FrozenQuant != usdOf(500_400) {
		t.Errorf("market buy escrow %s, want 50.0400 USD", mb.FrozenQuant)
	}
}

func TestBalances(t *testing.T) {
	f := newFixture(t, nil)

	if err := f.svc.Deposit(NewAuth(alice), alice, usdT, usdOf(10)); !fault.IsValidation(err) {
		t.Errorf("self deposit: got %v, want validation fault", err)
	}
	if err := f.svc.Deposit(NewAuth(admin), alice, usdT, btcOf(10)); !fault.IsValidation(err) {
		t.Errorf("symbol mismatch: got %v, want validation fault", err)
	}
	if err := f.svc.Deposit(NewAuth(admin), alice, usdT, usdOf(0)); !fault.IsValidation(err) {
		t.Errorf("zero deposit: got %v, want validation fault", err)
	}

	f.deposit(alice, usdOf(10))
	if err := f.svc.Withdraw(NewAuth(bob), alice, usdT, usdOf(5)); !fault.IsValidation(err) {
		t.Errorf("withdraw by bob: got %v, want validation fault", err)
	}
	if err := f.svc.Withdraw(NewAuth(alice), alice, usdT, usdOf(11)); !fault.IsValidation(err) {
		t.Errorf("overdraw: got %v, want validation fault", err)
	}
	if err := f.svc.Withdraw(NewAuth(alice), alice, usdT, usdOf(4)); err != nil {
		t.Fatalf("withdraw: %v", err)
	}
	bals, err := f.svc.Balances(alice)
	if err != nil {
		t.Fatal(err)
	}
	if len(bals) != 1 || bals[0].Quant != usdOf(6) {
		t.Errorf("balances = %+v, want 0.0006 USD", bals)
	}
}

func TestSymPairAdmin(t *testing.T) {
	f := newFixture(t, nil)

	reversed := SymPairParams{Asset: usdT, Coin: btcT, MinAssetQuant: usdOf(0), MinCoinQuant: btcOf(0), Enabled: true}
	if _, err := f.svc.SetSymPair(NewAuth(admin), reversed); !fault.IsValidation(err) {
		t.Errorf("reversed pair: got %v, want validation fault", err)
	}

	eth := market.Token{Contract: "eth.bank", Symbol: decimal.MustSymbol("ETH", 8)}
	p := SymPairParams{Asset: eth, Coin: usdT, MinAssetQuant: decimal.Zero(eth.Symbol), MinCoinQuant: usdOf(0)}
	if _, err := f.svc.SetSymPair(NewAuth(alice), p); !fault.IsValidation(err) {
		t.Errorf("non-admin: got %v, want validation fault", err)
	}
	second, err := f.svc.SetSymPair(NewAuth(admin), p)
	if err != nil {
		t.Fatalf("second pair: %v", err)
	}
	if second.ID != f.pair.ID+1 {
		t.Errorf("second pair id %d, want %d", second.ID, f.pair.ID+1)
	}

	// updating keeps the id
	p.Enabled = true
	again, err := f.svc.SetSymPair(NewAuth(admin), p)
	if err != nil || again.ID != second.ID || !again.Enabled {
		t.Errorf("update pair: %+v, %v", again, err)
	}
	found, ok, err := f.svc.FindSymPair(eth, usdT)
	if err != nil || !ok || found.ID != second.ID {
		t.Errorf("find pair: %v, %v", ok, err)
	}
	pairs, _ := f.svc.SymPairs()
	if len(pairs) != 2 {
		t.Errorf("got %d pairs, want 2", len(pairs))
	}
}

func TestInitAndConfig(t *testing.T) {
	f := newFixture(t, nil)

	cfg, ok, err := f.svc.Config()
	if err != nil || !ok {
		t.Fatalf("config: %v, %v", ok, err)
	}
	if err := f.svc.Init(NewAuth(admin), cfg); !fault.IsValidation(err) {
		t.Errorf("second init: got %v, want validation fault", err)
	}

	cfg.TakerFeeRatio = params.FeeRatioMax + 1
	if err := f.svc.SetConfig(NewAuth(admin), cfg); !fault.IsValidation(err) {
		t.Errorf("ratio above max: got %v, want validation fault", err)
	}
	cfg.TakerFeeRatio = 20
	if err := f.svc.SetConfig(NewAuth(alice), cfg); !fault.IsValidation(err) {
		t.Errorf("non-admin set config: got %v, want validation fault", err)
	}
	if err := f.svc.SetConfig(NewAuth(admin), cfg); err != nil {
		t.Fatalf("set config: %v", err)
	}

	// ratios are captured at placement
	f.deposit(alice, usdOf(1_000_000))
	o := f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)
	if o.TakerFeeRatio != 20 {
		t.Errorf("order taker ratio %d, want 20", o.TakerFeeRatio)
	}
}

func TestUninitialized(t *testing.T) {
	store, err := storage.OpenInMemory()
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	svc := New(store)
	defer svc.Close()

	if err := svc.Deposit(NewAuth(admin), alice, usdT, usdOf(1)); !fault.IsValidation(err) {
		t.Errorf("deposit before init: got %v, want validation fault", err)
	}
	if err := svc.Init(NewAuth(alice), params.Dex{Admin: admin}); !fault.IsValidation(err) {
		t.Errorf("init signed by non-admin: got %v, want validation fault", err)
	}
	if err := svc.Init(NewAuth(admin), params.Dex{Admin: admin}); !fault.IsValidation(err) {
		t.Errorf("init with invalid config: got %v, want validation fault", err)
	}
}

func TestConsumeNonce(t *testing.T) {
	f := newFixture(t, nil)

	steps := []struct {
		nonce uint64
		ok    bool
	}{
		{1, true},
		{1, false},
		{3, false},
		{2, true},
	}
	for _, s := range steps {
		err := f.svc.ConsumeNonce(alice, s.nonce)
		if (err == nil) != s.ok {
			t.Errorf("nonce %d: err = %v, want ok %v", s.nonce, err, s.ok)
		}
	}
	if n, _ := f.svc.Nonce(alice); n != 2 {
		t.Errorf("nonce = %d, want 2", n)
	}
}

func TestCleanData(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(2_000_000))
	f.deposit(bob, btcOf(1_000_000))

	buy := f.limit(orderbook.Buy, alice, 100_000_000, 1_000_000)
	sell := f.limit(orderbook.Sell, bob, 100_000_000, 1_000_000)
	open := f.limit(orderbook.Buy, alice, 90_000_000, 1_000_000)
	deal := f.match(10)[0]

	if n, err := f.svc.CleanData(100); err != nil || n != 0 {
		t.Fatalf("fresh data cleaned: %d, %v", n, err)
	}

	f.clock.Advance(31 * 24 * time.Hour)
	n, err := f.svc.CleanData(2)
	if err != nil {
		t.Fatalf("clean: %v", err)
	}
	if n != 2 {
		t.Errorf("first pass deleted %d, want 2", n)
	}
	if _, ok, _ := f.svc.GetDeal(deal.ID); ok {
		t.Error("deal survived cleanup")
	}

	n, err = f.svc.CleanData(100)
	if err != nil || n != 1 {
		t.Errorf("second pass deleted %d, %v, want 1", n, err)
	}
	for _, id := range []uint64{buy.ID, sell.ID} {
		if _, ok, _ := f.svc.GetOrder(id); ok {
			t.Errorf("closed order %d survived cleanup", id)
		}
	}
	if _, ok, _ := f.svc.GetOrder(open.ID); !ok {
		t.Error("matchable order was deleted")
	}
}

func TestDepth(t *testing.T) {
	f := newFixture(t, nil)
	f.deposit(alice, usdOf(10_000_000))
	f.deposit(bob, btcOf(10_000_000))

	f.limit(orderbook.Buy, alice, 90_000_000, 1_000_000)
	f.limit(orderbook.Buy, alice, 95_000_000, 1_000_000)
	f.limit(orderbook.Buy, alice, 95_000_000, 2_000_000)
	f.limit(orderbook.Sell, bob, 110_000_000, 1_000_000)

	d, err := f.svc.Depth(f.pair.ID, 0)
	if err != nil {
		t.Fatalf("depth: %v", err)
	}
	if len(d.Bids) != 2 || len(d.Asks) != 1 {
		t.Fatalf("levels %d/%d, want 2/1", len(d.Bids), len(d.Asks))
	}
	if top := d.Bids[0]; top.Price != usdOf(95_000_000) || top.Quant != btcOf(3_000_000) || top.Orders != 2 {
		t.Errorf("best bid %+v", top)
	}

	d, _ = f.svc.Depth(f.pair.ID, 1)
	if len(d.Bids) != 1 {
		t.Errorf("limited depth has %d bid levels, want 1", len(d.Bids))
	}
	if _, err := f.svc.Depth(99, 0); !fault.IsValidation(err) {
		t.Errorf("unknown pair: got %v, want validation fault", err)
	}
}
