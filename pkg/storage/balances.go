package storage

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

// Balance is one token holding of an account.
type Balance struct {
	Token market.Token  `json:"token"`
	Quant decimal.Asset `json:"quant"`
}

// GetBalance returns the holding of token, zero when absent.
func (v *View) GetBalance(owner common.Address, token market.Token) (decimal.Asset, error) {
	var b Balance
	ok, err := v.getJSON(balanceKey(owner, token), &b)
	if err != nil || !ok {
		return decimal.Zero(token.Symbol), err
	}
	return b.Quant, nil
}

// Balances lists every non-zero holding of owner.
func (v *View) Balances(owner common.Address) ([]Balance, error) {
	var out []Balance
	err := v.scanPrefix(balancePrefix(owner), false, func(_, val []byte) (bool, error) {
		var b Balance
		if err := decodeJSON(val, &b); err != nil {
			return false, err
		}
		out = append(out, b)
		return true, nil
	})
	return out, err
}

// SetBalance stores quant; a zero quantity removes the row.
func (t *Txn) SetBalance(owner common.Address, token market.Token, quant decimal.Asset) error {
	key := balanceKey(owner, token)
	if quant.IsZero() {
		return t.del(key)
	}
	return t.set(key, Balance{Token: token, Quant: quant})
}
