package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/decimal"
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

type transfer struct {
	Owner common.Address `json:"owner"`
	Token market.Token   `json:"token"`
	Quant decimal.Asset  `json:"quant"`
}

func checkTransfer(token market.Token, quant decimal.Asset) error {
	if err := token.Validate(); err != nil {
		return err
	}
	if quant.Symbol != token.Symbol {
		return fault.Validationf("quantity %s does not match token %s", quant, token)
	}
	if !quant.IsPositive() {
		return fault.Validationf("quantity must be positive, got %s", quant)
	}
	return nil
}

// Deposit credits tokens that arrived through the bridge. Only the admin
// reports deposits.
func (s *Service) Deposit(auth Auth, owner common.Address, token market.Token, quant decimal.Asset) error {
	_, err := s.update("deposit", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(st.cfg.Admin, "admin"); err != nil {
			return err
		}
		if err := checkTransfer(token, quant); err != nil {
			return err
		}
		st.record = transfer{Owner: owner, Token: token, Quant: quant}
		return st.ledger.Credit(owner, token, quant)
	})
	if err != nil {
		return err
	}
	s.log.Infow("deposit", "owner", owner.Hex(), "quant", quant.String(), "contract", token.Contract)
	return nil
}

// Withdraw debits the owner's free balance.
func (s *Service) Withdraw(auth Auth, owner common.Address, token market.Token, quant decimal.Asset) error {
	_, err := s.update("withdraw", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if err := auth.require(owner, "owner"); err != nil {
			return err
		}
		if err := checkTransfer(token, quant); err != nil {
			return err
		}
		st.record = transfer{Owner: owner, Token: token, Quant: quant}
		return st.ledger.Debit(owner, token, quant)
	})
	if err != nil {
		return err
	}
	s.log.Infow("withdraw", "owner", owner.Hex(), "quant", quant.String(), "contract", token.Contract)
	return nil
}
