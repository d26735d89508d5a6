package storage

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
)

var _ orderbook.OrderIndex = (*Txn)(nil)

func (v *View) GetOrder(id uint64) (*orderbook.Order, bool, error) {
	var o orderbook.Order
	ok, err := v.getJSON(orderKey(id), &o)
	if err != nil || !ok {
		return nil, ok, err
	}
	return &o, true, nil
}

// UpperBound returns the order whose match key follows key.
func (v *View) UpperBound(key orderbook.MatchKey) (*orderbook.Order, bool, error) {
	// appending a zero byte yields the smallest key strictly after key
	lower := append(matchIdxKey(key), 0)
	upper := keyUpperBound([]byte(prefixMatchIdx))

	var id uint64
	found := false
	err := v.scan(lower, upper, false, func(_, val []byte) (bool, error) {
		var err error
		id, err = readBE64(val)
		found = err == nil
		return false, err
	})
	if err != nil || !found {
		return nil, false, err
	}

	o, ok, err := v.GetOrder(id)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, fmt.Errorf("match index points to missing order %d", id)
	}
	return o, true, nil
}

// ScanClass visits the matchable orders of one (pair, side, type) class in
// matching priority until fn returns false.
func (v *View) ScanClass(pairID uint64, side orderbook.Side, typ orderbook.OrderType, fn func(*orderbook.Order) bool) error {
	classKey := orderbook.NewMatchKey(pairID, orderbook.Matchable, side, typ, 0, 0)
	prefix := append([]byte(prefixMatchIdx), classKey.Bytes()[:16]...)
	return v.scanPrefix(prefix, false, func(_, val []byte) (bool, error) {
		id, err := readBE64(val)
		if err != nil {
			return false, err
		}
		o, ok, err := v.GetOrder(id)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, fmt.Errorf("match index points to missing order %d", id)
		}
		return fn(o), nil
	})
}

// OrdersByOwner returns up to limit orders of owner, newest first.
func (v *View) OrdersByOwner(owner common.Address, limit int) ([]*orderbook.Order, error) {
	var out []*orderbook.Order
	prefix := ownerPrefix(owner)
	err := v.scanPrefix(prefix, true, func(key, _ []byte) (bool, error) {
		id, err := readBE64(key[len(prefix):])
		if err != nil {
			return false, err
		}
		o, ok, err := v.GetOrder(id)
		if err != nil {
			return false, err
		}
		if ok {
			out = append(out, o)
		}
		return limit <= 0 || len(out) < limit, nil
	})
	return out, err
}

// ClosedOrdersBefore visits ids of orders in status whose last update is
// older than cutoff, oldest first, until fn returns false.
func (v *View) ClosedOrdersBefore(status orderbook.Status, cutoff time.Time, fn func(id uint64) (bool, error)) error {
	prefix := updatedPrefix(status)
	upper := updatedKey(status, cutoff, 0)
	return v.scan(prefix, upper, false, func(key, _ []byte) (bool, error) {
		id, err := readBE64(key[len(prefix)+8:])
		if err != nil {
			return false, err
		}
		return fn(id)
	})
}

// SaveOrder writes o and keeps every secondary index in step with it.
func (t *Txn) SaveOrder(o *orderbook.Order) error {
	prev, ok, err := t.GetOrder(o.ID)
	if err != nil {
		return err
	}
	if ok {
		if prev.Owner != o.Owner || prev.SymPairID != o.SymPairID {
			return fmt.Errorf("order %d: owner and pair are immutable", o.ID)
		}
		if err := t.unindexOrder(prev, o); err != nil {
			return err
		}
	}

	if err := t.set(orderKey(o.ID), o); err != nil {
		return fmt.Errorf("save order %d: %w", o.ID, err)
	}
	if err := t.setRaw(matchIdxKey(o.Key()), be64(o.ID)); err != nil {
		return err
	}
	if err := t.setRaw(ownerKey(o.Owner, o.ID), nil); err != nil {
		return err
	}
	return t.setRaw(updatedKey(o.Status, o.UpdatedAt, o.ID), nil)
}

// unindexOrder drops the index entries of prev that next no longer shares.
func (t *Txn) unindexOrder(prev, next *orderbook.Order) error {
	if oldKey := matchIdxKey(prev.Key()); next == nil || !bytes.Equal(oldKey, matchIdxKey(next.Key())) {
		if err := t.del(oldKey); err != nil {
			return err
		}
	}
	if oldKey := updatedKey(prev.Status, prev.UpdatedAt, prev.ID); next == nil || !bytes.Equal(oldKey, updatedKey(next.Status, next.UpdatedAt, next.ID)) {
		if err := t.del(oldKey); err != nil {
			return err
		}
	}
	if next == nil {
		return t.del(ownerKey(prev.Owner, prev.ID))
	}
	return nil
}

// DeleteOrder removes an order and its index entries.
func (t *Txn) DeleteOrder(id uint64) error {
	prev, ok, err := t.GetOrder(id)
	if err != nil || !ok {
		return err
	}
	if err := t.unindexOrder(prev, nil); err != nil {
		return err
	}
	return t.del(orderKey(id))
}
