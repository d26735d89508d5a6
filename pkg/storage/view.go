package storage

import (
	"fmt"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"
)

type reader interface {
	Get(key []byte) ([]byte, io.Closer, error)
	NewIter(o *pebble.IterOptions) (*pebble.Iterator, error)
}

// View reads either committed state or, inside a Txn, the Txn's own writes.
type View struct {
	r reader
}

// get returns a copy of the value at key.
func (v *View) get(key []byte) ([]byte, bool, error) {
	val, closer, err := v.r.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %q: %w", key, err)
	}
	defer closer.Close()
	out := make([]byte, len(val))
	copy(out, val)
	return out, true, nil
}

func (v *View) getJSON(key []byte, out any) (bool, error) {
	val, ok, err := v.get(key)
	if err != nil || !ok {
		return ok, err
	}
	return true, decodeJSON(val, out)
}

// scan visits keys in [lower, upper) in ascending order, or descending when
// reverse is set, until fn returns false.
func (v *View) scan(lower, upper []byte, reverse bool, fn func(key, val []byte) (bool, error)) error {
	iter, err := v.r.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return fmt.Errorf("new iterator: %w", err)
	}
	defer iter.Close()

	valid := iter.First()
	if reverse {
		valid = iter.Last()
	}
	for ; valid; valid = step(iter, reverse) {
		more, err := fn(iter.Key(), iter.Value())
		if err != nil {
			return err
		}
		if !more {
			break
		}
	}
	return iter.Error()
}

func step(iter *pebble.Iterator, reverse bool) bool {
	if reverse {
		return iter.Prev()
	}
	return iter.Next()
}

func (v *View) scanPrefix(prefix []byte, reverse bool, fn func(key, val []byte) (bool, error)) error {
	return v.scan(prefix, keyUpperBound(prefix), reverse, fn)
}
