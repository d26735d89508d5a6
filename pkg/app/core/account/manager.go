package account

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

// BalanceStore persists one quantity per (owner, token).
type BalanceStore interface {
	GetBalance(owner common.Address, token market.Token) (decimal.Asset, error)
	SetBalance(owner common.Address, token market.Token, quant decimal.Asset) error
}

// Manager moves token balances. It holds no state of its own; every change
// goes straight to the store it wraps, so it is only as atomic as that store.
type Manager struct {
	store BalanceStore
}

var _ orderbook.Ledger = (*Manager)(nil)

func NewManager(store BalanceStore) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Balance(owner common.Address, token market.Token) (decimal.Asset, error) {
	return m.store.GetBalance(owner, token)
}

// Credit adds quant to owner. Zero is a no-op.
func (m *Manager) Credit(owner common.Address, token market.Token, quant decimal.Asset) error {
	if err := checkQuant(token, quant); err != nil {
		return err
	}
	if quant.IsZero() {
		return nil
	}
	bal, err := m.store.GetBalance(owner, token)
	if err != nil {
		return err
	}
	return m.store.SetBalance(owner, token, bal.Add(quant))
}

// Debit removes quant from owner. It fails without side effects when the
// balance is short.
func (m *Manager) Debit(owner common.Address, token market.Token, quant decimal.Asset) error {
	if err := checkQuant(token, quant); err != nil {
		return err
	}
	if quant.IsZero() {
		return nil
	}
	bal, err := m.store.GetBalance(owner, token)
	if err != nil {
		return err
	}
	if bal.Cmp(quant) < 0 {
		return fault.Validationf("insufficient balance of %s: have %s, need %s", token, bal, quant)
	}
	return m.store.SetBalance(owner, token, bal.Sub(quant))
}

// Transfer moves quant between two accounts.
func (m *Manager) Transfer(from, to common.Address, token market.Token, quant decimal.Asset) error {
	if err := m.Debit(from, token, quant); err != nil {
		return err
	}
	return m.Credit(to, token, quant)
}

func checkQuant(token market.Token, quant decimal.Asset) error {
	if quant.Symbol != token.Symbol {
		return fault.Invariantf("quantity %s does not match token %s", quant, token)
	}
	if quant.Amount < 0 {
		return fault.Invariantf("negative quantity %s", quant)
	}
	return nil
}
