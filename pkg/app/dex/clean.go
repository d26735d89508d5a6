package dex

import (
	"github.com/uhyunpark/hyperdex/pkg/app/core/fault"
	"github.com/uhyunpark/hyperdex/pkg/app/core/orderbook"
	"github.com/uhyunpark/hyperdex/pkg/storage"
)

// CleanData deletes up to maxCount records that closed more than
// OldDataOutdate ago: first deals whose orders are both closed or gone,
// then closed orders whose last deal is gone. It returns how many records
// were deleted.
func (s *Service) CleanData(maxCount int) (int, error) {
	deleted := 0
	_, err := s.update("clean_data", func(st *state) error {
		if err := st.requireInit(); err != nil {
			return err
		}
		if maxCount <= 0 {
			return fault.Validationf("max count must be positive, got %d", maxCount)
		}
		cutoff := st.now.Add(-st.cfg.OldDataOutdate)

		var deals []uint64
		err := st.txn.ScanDeals(func(d *orderbook.Deal) (bool, error) {
			if !d.DealTime.Before(cutoff) {
				return false, nil
			}
			buyDone, err := closedOrGone(st.txn, d.BuyOrderID)
			if err != nil {
				return false, err
			}
			sellDone, err := closedOrGone(st.txn, d.SellOrderID)
			if err != nil {
				return false, err
			}
			if buyDone && sellDone {
				deals = append(deals, d.ID)
			}
			return len(deals) < maxCount, nil
		})
		if err != nil {
			return err
		}
		for _, id := range deals {
			if err := st.txn.DeleteDeal(id); err != nil {
				return err
			}
		}
		deleted = len(deals)

		for _, status := range []orderbook.Status{orderbook.Completed, orderbook.Canceled} {
			if deleted >= maxCount {
				break
			}
			var orders []uint64
			err := st.txn.ClosedOrdersBefore(status, cutoff, func(id uint64) (bool, error) {
				o, ok, err := st.txn.GetOrder(id)
				if err != nil {
					return false, err
				}
				if !ok {
					return true, nil
				}
				if o.LastDealID != 0 {
					if _, live, err := st.txn.GetDeal(o.LastDealID); err != nil || live {
						return err == nil, err
					}
				}
				orders = append(orders, id)
				return deleted+len(orders) < maxCount, nil
			})
			if err != nil {
				return err
			}
			for _, id := range orders {
				if err := st.txn.DeleteOrder(id); err != nil {
					return err
				}
			}
			deleted += len(orders)
		}
		st.record = deleted
		return nil
	})
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		s.log.Infow("data_cleaned", "deleted", deleted)
	}
	return deleted, nil
}

func closedOrGone(txn *storage.Txn, orderID uint64) (bool, error) {
	o, ok, err := txn.GetOrder(orderID)
	if err != nil || !ok {
		return !ok, err
	}
	return o.Status != orderbook.Matchable, nil
}
