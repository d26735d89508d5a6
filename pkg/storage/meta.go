package storage

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/params"
)

// Counters are the persisted auto-increment ids.
type Counters struct {
	OrderID   uint64 `json:"order_id"`
	SymPairID uint64 `json:"sympair_id"`
	DealID    uint64 `json:"deal_id"`
}

// LoadConfig reads the dex config. It reports false before Init.
func (v *View) LoadConfig() (params.Dex, bool, error) {
	var cfg params.Dex
	ok, err := v.getJSON([]byte(keyConfig), &cfg)
	return cfg, ok, err
}

func (t *Txn) SaveConfig(cfg params.Dex) error {
	return t.set([]byte(keyConfig), cfg)
}

func (v *View) LoadCounters() (Counters, error) {
	var c Counters
	_, err := v.getJSON([]byte(keyCounters), &c)
	return c, err
}

func (t *Txn) SaveCounters(c Counters) error {
	return t.set([]byte(keyCounters), c)
}

// Nonce returns the last nonce consumed by owner, 0 if none.
func (v *View) Nonce(owner common.Address) (uint64, error) {
	val, ok, err := v.get(nonceKey(owner))
	if err != nil || !ok {
		return 0, err
	}
	return readBE64(val)
}

func (t *Txn) SetNonce(owner common.Address, nonce uint64) error {
	return t.setRaw(nonceKey(owner), be64(nonce))
}
