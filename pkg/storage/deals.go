package storage

import (
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

var _ orderbook.DealStore = (*Txn)(nil)

func (v *View) GetDeal(id uint64) (*orderbook.Deal, bool, error) {
	var d orderbook.Deal
	ok, err := v.getJSON(dealKey(id), &d)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &d, true, nil
}

// DealsByPair returns up to limit deals of a pair, newest first.
func (v *View) DealsByPair(pairID uint64, limit int) ([]*orderbook.Deal, error) {
	var out []*orderbook.Deal
	prefix := pairDealPrefix(pairID)
	err := v.scanPrefix(prefix, true, func(key, _ []byte) (bool, error) {
		id, err := readBE64(key[len(prefix):])
		if err != nil {
			return false, err
		}
		d, ok, err := v.GetDeal(id)
		if err != nil {
			return false, err
		}
		if ok {
			out = append(out, d)
		}
		return limit <= 0 || len(out) < limit, nil
	})
	return out, err
}

// ScanDeals visits deals in id order until fn returns false.
func (v *View) ScanDeals(fn func(*orderbook.Deal) (bool, error)) error {
	return v.scanPrefix([]byte(prefixDeal), false, func(_, val []byte) (bool, error) {
		var d orderbook.Deal
		if err := decodeJSON(val, &d); err != nil {
			return false, err
		}
		return fn(&d)
	})
}

func (t *Txn) SaveDeal(d *orderbook.Deal) error {
	if err := t.set(dealKey(d.ID), d); err != nil {
		return err
	}
	return t.setRaw(pairDealKey(d.SymPairID, d.ID), nil)
}

func (t *Txn) DeleteDeal(id uint64) error {
	d, ok, err := t.GetDeal(id)
	if err != nil || !ok {
		return err
	}
	if err := t.del(pairDealKey(d.SymPairID, id)); err != nil {
		return err
	}
	return t.del(dealKey(id))
}
