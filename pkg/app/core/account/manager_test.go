package account

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

type balanceKey struct {
	owner common.Address
	token string
}

type memStore map[balanceKey]decimal.Asset

func (m memStore) GetBalance(owner common.Address, token market.Token) (decimal.Asset, error) {
	if b, ok := m[balanceKey{owner, token.Key()}]; ok {
		return b, nil
	}
	return decimal.Zero(token.Symbol), nil
}

func (m memStore) SetBalance(owner common.Address, token market.Token, quant decimal.Asset) error {
	m[balanceKey{owner, token.Key()}] = quant
	return nil
}

var (
	usd   = market.Token{Contract: "usd.token", Symbol: decimal.MustSymbol("USD", 4)}
	alice = common.HexToAddress("0x01")
	bob   = common.HexToAddress("0x02")
)

func usdAmount(n int64) decimal.Asset { return decimal.Asset{Amount: n, Symbol: usd.Symbol} }

func TestCreditDebit(t *testing.T) {
	m := NewManager(memStore{})

	if err := m.Credit(alice, usd, usdAmount(100)); err != nil {
		t.Fatalf("credit: %v", err)
	}
	if err := m.Debit(alice, usd, usdAmount(40)); err != nil {
		t.Fatalf("debit: %v", err)
	}
	bal, _ := m.Balance(alice, usd)
	if bal.Amount != 60 {
		t.Errorf("balance = %d, want 60", bal.Amount)
	}

	err := m.Debit(alice, usd, usdAmount(61))
	if !fault.IsValidation(err) {
		t.Fatalf("overdraw: got %v, want validation fault", err)
	}
	if bal, _ := m.Balance(alice, usd); bal.Amount != 60 {
		t.Errorf("failed debit changed balance to %d", bal.Amount)
	}
}

func TestTransfer(t *testing.T) {
	m := NewManager(memStore{})
	m.Credit(alice, usd, usdAmount(10))

	if err := m.Transfer(alice, bob, usd, usdAmount(10)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	a, _ := m.Balance(alice, usd)
	b, _ := m.Balance(bob, usd)
	if a.Amount != 0 || b.Amount != 10 {
		t.Errorf("after transfer alice=%d bob=%d", a.Amount, b.Amount)
	}
}

func TestRejectsMalformedQuantities(t *testing.T) {
	m := NewManager(memStore{})
	btc := decimal.MustSymbol("BTC", 8)

	tests := []struct {
		name  string
		quant decimal.Asset
	}{
		{"wrong symbol", decimal.Asset{Amount: 1, Symbol: btc}},
		{"negative", usdAmount(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := m.Credit(alice, usd, tt.quant); !fault.IsInvariant(err) {
				t.Errorf("credit: got %v, want invariant fault", err)
			}
			if err := m.Debit(alice, usd, tt.quant); !fault.IsInvariant(err) {
				t.Errorf("debit: got %v, want invariant fault", err)
			}
		})
	}
}
