package storage

import (
	"github.com/uhyunpark/hyperdex/pkg/app/core/market"
)

func (v *View) GetSymPair(id uint64) (*market.SymbolPair, bool, error) {
	var p market.SymbolPair
	ok, err := v.getJSON(pairKey(id), &p)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &p, true, nil
}

// FindSymPair looks a pair up by its tokens.
func (v *View) FindSymPair(asset, coin market.Token) (uint64, bool, error) {
	val, ok, err := v.get(pairSymKey(asset, coin))
	if err != nil || !ok {
		return 0, ok, err
	}
	id, err := readBE64(val)
	return id, err == nil, err
}

// ListSymPairs returns every pair ordered by id.
func (v *View) ListSymPairs() ([]*market.SymbolPair, error) {
	var out []*market.SymbolPair
	err := v.scanPrefix([]byte(prefixPair), false, func(_, val []byte) (bool, error) {
		var p market.SymbolPair
		if err := decodeJSON(val, &p); err != nil {
			return false, err
		}
		out = append(out, &p)
		return true, nil
	})
	return out, err
}

func (t *Txn) SaveSymPair(p *market.SymbolPair) error {
	if err := t.set(pairKey(p.ID), p); err != nil {
		return err
	}
	return t.setRaw(pairSymKey(p.Asset, p.Coin), be64(p.ID))
}
