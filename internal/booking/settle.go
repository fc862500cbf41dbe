package booking

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/inventory"
	"ms-booking/internal/ledger"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
)

const (
	outcomePaid     = "paid"
	outcomePartial  = "partial"
	outcomeFailed   = "failed"
	outcomeRejected = "rejected"
)

// Settle pays an unpaid transaction of userID in a single store
// transaction. Locks are taken in a fixed order: the user row, the
// transaction row, then each contended resource row sorted by kind and id.
//
// When an atomic group cannot be fully reserved, every held handle is
// released, the transaction is failed and the allocator's error is returned
// together with the per-order result. A non-atomic group keeps what it could
// reserve and is charged only for that.
func (s *Service) Settle(ctx context.Context, userID int64, transactionID string, now time.Time) (*SettleResult, error) {
	start := time.Now()

	var (
		result  *SettleResult
		events  []models.OrderStatusEvent
		outcome string
		failure error
	)
	err := s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, events, outcome, failure = nil, nil, "", nil

		if err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		led := s.Ledger.Tx(tx)
		txn, err := led.GetForUpdate(ctx, transactionID)
		if err != nil {
			return err
		}
		if txn.UserID != userID {
			return apperr.ErrNotFound
		}
		if txn.Status != models.TransactionUnpaid || txn.Kind != models.TransactionPurchase {
			return fmt.Errorf("transaction %s is %s: %w", txn.UUID, txn.Status, apperr.ErrTransactionNotPayable)
		}

		repo := s.Orders.Tx(tx)
		all, err := repo.ListByTransaction(ctx, txn.ID)
		if err != nil {
			return err
		}
		live, err := liveOrders(txn, all)
		if err != nil {
			s.Log.Error("BOOKING", fmt.Sprintf("Transaction %s failed consistency check: %v", txn.UUID, err))
			if err := led.Fail(ctx, txn); err != nil {
				return err
			}
			failure = apperr.ErrConsistency
			outcome = outcomeFailed
			result = &SettleResult{TransactionID: txn.UUID, Status: txn.Status, Amount: txn.Amount}
			return nil
		}

		if err := led.EnsureFunds(ctx, userID, txn.Amount.Abs()); err != nil {
			return err
		}

		for _, o := range live {
			if err := o.SetStatus(order.StatusPaid); err != nil {
				return err
			}
		}
		sortForReservation(live)

		reasons := make(map[int64]error)
		var held []*order.Order
		for _, o := range live {
			if _, err := s.Allocator.ReserveTx(ctx, tx, o); err != nil {
				if apperr.KindOf(err) == apperr.KindInternal {
					return err
				}
				reasons[o.ID] = err
				if txn.Atomic {
					failure = fmt.Errorf("order %s: %w", o.UUID, err)
					break
				}
				if err := o.SetStatus(order.StatusFailed); err != nil {
					return err
				}
				continue
			}
			held = append(held, o)
		}

		switch {
		case txn.Atomic && failure != nil:
			for _, o := range held {
				if err := s.Allocator.ReleaseTx(ctx, tx, inventory.Handle{OrderID: o.ID, Kind: o.Kind}); err != nil {
					return err
				}
				if err := o.SetStatus(order.StatusFailed); err != nil {
					return err
				}
				if err := o.SetStatus(order.StatusRefunded); err != nil {
					return err
				}
			}
			for _, o := range live {
				if o.Status == order.StatusPaid {
					if err := o.SetStatus(order.StatusFailed); err != nil {
						return err
					}
				}
			}
			if err := led.Fail(ctx, txn); err != nil {
				return err
			}
			outcome = outcomeFailed

		case len(held) == 0:
			if err := led.Reprice(ctx, txn, ledger.Sum(held)); err != nil {
				return err
			}
			if err := led.Fail(ctx, txn); err != nil {
				return err
			}
			outcome = outcomeFailed

		default:
			outcome = outcomePaid
			if len(held) < len(live) {
				if err := led.Reprice(ctx, txn, ledger.Sum(held)); err != nil {
					return err
				}
				outcome = outcomePartial
			}
			if err := led.Pay(ctx, txn); err != nil {
				return err
			}
			for _, o := range held {
				o.Advance(now)
			}
		}

		result = &SettleResult{TransactionID: txn.UUID, Status: txn.Status, Amount: txn.Amount}
		for _, o := range live {
			if err := repo.SaveState(ctx, o); err != nil {
				return err
			}
			oc := Outcome{OrderID: o.UUID, Kind: o.Kind, Status: o.Status}
			if reason := reasons[o.ID]; reason != nil {
				oc.Error = apperr.PublicMessage(reason)
			}
			result.Outcomes = append(result.Outcomes, oc)
			if ev, ok := s.statusEvent(o, txn.UUID, now); ok {
				events = append(events, ev)
			}
		}
		return nil
	})
	if err != nil {
		s.Metrics.ObserveSettle(outcomeRejected, time.Since(start))
		return nil, err
	}

	s.Metrics.ObserveSettle(outcome, time.Since(start))
	for _, oc := range result.Outcomes {
		s.Metrics.Transition(string(oc.Status))
	}
	s.Log.LogTransaction("SETTLED", result.TransactionID,
		fmt.Sprintf("outcome=%s status=%s amount=%s", outcome, result.Status, result.Amount.StringFixed(2)))
	s.publish(ctx, events)

	return result, failure
}

// liveOrders returns the unpaid orders of a transaction and checks that
// together they account for its whole amount.
func liveOrders(txn *models.Transaction, all []*order.Order) ([]*order.Order, error) {
	var live []*order.Order
	for _, o := range all {
		switch o.Status {
		case order.StatusUnpaid:
			live = append(live, o)
		case order.StatusCancelled:
		default:
			return nil, fmt.Errorf("order %s is %s under an unpaid transaction: %w", o.UUID, o.Status, apperr.ErrConsistency)
		}
	}
	if len(live) == 0 {
		return nil, fmt.Errorf("transaction %s has no orders: %w", txn.UUID, apperr.ErrConsistency)
	}
	if sum := ledger.Sum(live); !sum.Equal(txn.Amount.Abs()) {
		return nil, fmt.Errorf("orders total %s, transaction %s: %w", sum, txn.Amount, apperr.ErrConsistency)
	}
	return live, nil
}

// sortForReservation orders a group so that train orders are reserved before
// the dish and takeaway orders riding on them, and so that concurrent groups
// lock shared resource rows in the same order.
func sortForReservation(orders []*order.Order) {
	sort.SliceStable(orders, func(i, j int) bool {
		a, b := orders[i], orders[j]
		if a.Kind.Rank() != b.Kind.Rank() {
			return a.Kind.Rank() < b.Kind.Rank()
		}
		if a.ResourceID() != b.ResourceID() {
			return a.ResourceID() < b.ResourceID()
		}
		return a.ID < b.ID
	})
}
