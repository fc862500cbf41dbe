package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/inventory"
	"ms-booking/internal/ledger"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	orderdb "ms-booking/internal/order/db"
)

// CancelOrder withdraws one of the caller's orders. An unpaid order leaves
// its pending transaction, which shrinks accordingly. A paid order that has
// not begun releases its inventory and is refunded, together with any paid
// dish or takeaway orders riding on it.
func (s *Service) CancelOrder(ctx context.Context, call Call, orderID string) (*OrderInfo, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	now := s.now(call)

	var (
		target  *order.Order
		changed []*order.Order
		refunds int
	)
	err = s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		changed, refunds = nil, 0

		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		repo := s.Orders.Tx(tx)
		led := s.Ledger.Tx(tx)

		o, err := repo.GetByUUID(ctx, orderID)
		if err != nil {
			return err
		}
		if o.UserID != userID {
			return apperr.ErrNotFound
		}
		if o.PayTransactionID == nil {
			return fmt.Errorf("order %s has no transaction: %w", o.UUID, apperr.ErrConsistency)
		}
		txn, err := led.GetByIDForUpdate(ctx, *o.PayTransactionID)
		if err != nil {
			return err
		}
		// Re-read under lock now that the transaction row is held.
		if o, err = repo.GetByUUIDForUpdate(ctx, orderID); err != nil {
			return err
		}
		target = o

		switch o.Status {
		case order.StatusUnpaid:
			if err := s.cancelUnpaid(ctx, repo, led, txn, o); err != nil {
				return err
			}
			changed = []*order.Order{o}
			return nil
		case order.StatusPaid:
			if !now.Before(o.BeginAt) {
				return fmt.Errorf("order %s has begun: %w", o.UUID, apperr.ErrNotRefundable)
			}
			changed, refunds, err = s.cancelPaid(ctx, tx, repo, led, txn, o)
			return err
		default:
			return fmt.Errorf("order %s is %s: %w", o.UUID, o.Status, apperr.ErrNotRefundable)
		}
	})
	if err != nil {
		return nil, err
	}

	var events []models.OrderStatusEvent
	for _, o := range changed {
		s.Metrics.Transition(string(o.Status))
		s.Log.LogOrder("CANCELLED", o.UUID, fmt.Sprintf("%s order of user %d", o.Kind, userID))
		if ev, ok := s.statusEvent(o, "", now); ok {
			events = append(events, ev)
		}
	}
	for i := 0; i < refunds; i++ {
		s.Metrics.Refund()
	}
	s.publish(ctx, events)

	info := newOrderInfo(target)
	return &info, nil
}

func (s *Service) cancelUnpaid(ctx context.Context, repo *orderdb.DB, led *ledger.Ledger, txn *models.Transaction, o *order.Order) error {
	if err := o.SetStatus(order.StatusCancelled); err != nil {
		return err
	}
	if err := repo.SaveState(ctx, o); err != nil {
		return err
	}
	if txn.Status != models.TransactionUnpaid {
		return nil
	}

	siblings, err := repo.ListByTransaction(ctx, txn.ID)
	if err != nil {
		return err
	}
	var remaining []*order.Order
	for _, sib := range siblings {
		if sib.Status == order.StatusUnpaid {
			remaining = append(remaining, sib)
		}
	}
	if err := led.Reprice(ctx, txn, ledger.Sum(remaining)); err != nil {
		return err
	}
	if len(remaining) == 0 {
		return led.Fail(ctx, txn)
	}
	return nil
}

// cancelPaid releases and refunds o and its paid children, one refund per
// paying transaction. It returns the orders it cancelled and the number of
// refunds issued.
func (s *Service) cancelPaid(ctx context.Context, tx bun.IDB, repo *orderdb.DB, led *ledger.Ledger, txn *models.Transaction, o *order.Order) ([]*order.Order, int, error) {
	cancel := []*order.Order{o}
	if o.Kind == order.KindTrain {
		children, err := repo.ListChildren(ctx, o.UUID)
		if err != nil {
			return nil, 0, err
		}
		for _, c := range children {
			if c.Status == order.StatusPaid {
				cancel = append(cancel, c)
			}
		}
	}

	groups := make(map[int64][]*order.Order)
	var txnOrder []int64
	for _, c := range cancel {
		if c.PayTransactionID == nil {
			return nil, 0, fmt.Errorf("paid order %s has no transaction: %w", c.UUID, apperr.ErrConsistency)
		}
		id := *c.PayTransactionID
		if _, seen := groups[id]; !seen {
			txnOrder = append(txnOrder, id)
		}
		groups[id] = append(groups[id], c)

		if err := s.Allocator.ReleaseTx(ctx, tx, inventory.Handle{OrderID: c.ID, Kind: c.Kind}); err != nil {
			return nil, 0, err
		}
		if err := c.SetStatus(order.StatusCancelled); err != nil {
			return nil, 0, err
		}
	}

	for _, id := range txnOrder {
		paidBy := txn
		if id != txn.ID {
			var err error
			if paidBy, err = led.GetByIDForUpdate(ctx, id); err != nil {
				return nil, 0, err
			}
		}
		refund, err := led.Refund(ctx, paidBy, groups[id])
		if err != nil {
			return nil, 0, err
		}
		s.Log.LogTransaction("REFUND", refund.UUID, fmt.Sprintf("refund of %s: +%s", paidBy.UUID, refund.Amount.StringFixed(2)))
	}

	for _, c := range cancel {
		if err := repo.SaveState(ctx, c); err != nil {
			return nil, 0, err
		}
	}
	return cancel, len(txnOrder), nil
}

// AdvanceStatuses moves paid and active orders along their windows as of
// now. It returns how many orders changed status.
func (s *Service) AdvanceStatuses(ctx context.Context, now time.Time) (int, error) {
	candidates, err := s.Orders.ListByStatus(ctx, order.StatusPaid, order.StatusActive)
	if err != nil {
		return 0, err
	}

	changed := 0
	var events []models.OrderStatusEvent
	for _, c := range candidates {
		probe := *c
		if !probe.Advance(now) {
			continue
		}
		var advanced *order.Order
		err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			repo := s.Orders.Tx(tx)
			o, err := repo.GetByUUIDForUpdate(ctx, c.UUID)
			if err != nil {
				return err
			}
			if !o.Advance(now) {
				return nil
			}
			advanced = o
			return repo.SaveState(ctx, o)
		})
		if err != nil {
			s.publish(ctx, events)
			return changed, err
		}
		if advanced == nil {
			continue
		}
		changed++
		s.Metrics.Transition(string(advanced.Status))
		if ev, ok := s.statusEvent(advanced, "", now); ok {
			events = append(events, ev)
		}
	}
	s.publish(ctx, events)
	return changed, nil
}
