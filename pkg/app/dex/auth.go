package dex

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
)

// Auth is the set of accounts that signed the current call.
type Auth map[common.Address]struct{}

func NewAuth(signers ...common.Address) Auth {
	a := make(Auth, len(signers))
	for _, s := range signers {
		a[s] = struct{}{}
	}
	return a
}

func (a Auth) Has(addr common.Address) bool {
	_, ok := a[addr]
	return ok
}

func (a Auth) require(addr common.Address, role string) error {
	if !a.Has(addr) {
		return fault.Validationf("missing authority of %s %s", role, addr.Hex())
	}
	return nil
}
