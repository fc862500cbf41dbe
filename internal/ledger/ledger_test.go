package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperr"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/ledger"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	"ms-booking/internal/utils"
)

var departure = time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

func dish(w *dbtest.World, parent string, amount int) *order.Order {
	return &order.Order{
		Header: order.Header{
			UUID:           utils.NewUUID(),
			Status:         order.StatusUnpaid,
			UserID:         w.Alice.ID,
			PersonalInfoID: w.AliceInfo.ID,
			UnitPrice:      w.Dish.Price,
			Amount:         amount,
			BeginAt:        departure,
			EndAt:          departure.Add(6 * time.Hour),
		},
		Kind: order.KindDish,
		Dish: &order.Dish{ParentUUID: parent, ScheduleID: w.Schedule.ID, DishID: w.Dish.ID},
	}
}

func TestOpenDebitsOrderTotal(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, utils.NewFixedClock(departure.Add(-48*time.Hour)))
	ctx := context.Background()

	orders := []*order.Order{dish(w, "p", 2), dish(w, "p", 1)}
	txn, err := l.Open(ctx, w.Alice.ID, orders, true)
	require.NoError(t, err)

	assert.Equal(t, models.TransactionUnpaid, txn.Status)
	assert.Equal(t, models.TransactionPurchase, txn.Kind)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(-45)), txn.Amount.String())
	assert.True(t, txn.Atomic)
	for _, o := range orders {
		require.NotNil(t, o.PayTransactionID)
		assert.Equal(t, txn.ID, *o.PayTransactionID)
	}

	_, err = l.Open(ctx, w.Alice.ID, nil, true)
	assert.ErrorIs(t, err, apperr.ErrEmptyOrderList)
}

func TestBalanceCountsOnlyPaid(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, nil)
	ctx := context.Background()

	balance, err := l.Balance(ctx, w.Alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero())

	dbtest.Credit(t, db, w.Alice.ID, 100)
	_, err = l.Open(ctx, w.Alice.ID, []*order.Order{dish(w, "p", 2)}, false)
	require.NoError(t, err)

	balance, err = l.Balance(ctx, w.Alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(100)), balance.String())

	other, err := l.Balance(ctx, w.Bob.ID)
	require.NoError(t, err)
	assert.True(t, other.IsZero())
}

func TestPay(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	clock := utils.NewFixedClock(departure.Add(-48 * time.Hour))
	l := ledger.New(db, clock)
	ctx := context.Background()

	txn, err := l.Open(ctx, w.Alice.ID, []*order.Order{dish(w, "p", 2)}, true)
	require.NoError(t, err)

	err = l.Pay(ctx, txn)
	assert.ErrorIs(t, err, apperr.ErrInsufficientFunds)

	dbtest.Credit(t, db, w.Alice.ID, 30)
	require.NoError(t, l.Pay(ctx, txn))
	assert.Equal(t, models.TransactionPaid, txn.Status)
	require.NotNil(t, txn.FinishedAt)
	assert.True(t, txn.FinishedAt.Equal(clock.Now()))

	balance, err := l.Balance(ctx, w.Alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.IsZero(), balance.String())

	stored, err := l.Get(ctx, txn.UUID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionPaid, stored.Status)

	assert.ErrorIs(t, l.Pay(ctx, txn), apperr.ErrTransactionNotPayable)
	assert.ErrorIs(t, l.Fail(ctx, txn), apperr.ErrTransactionNotPayable)
}

func TestFailAndReprice(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, nil)
	ctx := context.Background()

	txn, err := l.Open(ctx, w.Alice.ID, []*order.Order{dish(w, "p", 3)}, false)
	require.NoError(t, err)

	require.NoError(t, l.Reprice(ctx, txn, decimal.NewFromInt(15)))
	stored, err := l.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.True(t, stored.Amount.Equal(decimal.NewFromInt(-15)), stored.Amount.String())

	assert.ErrorIs(t, l.Reprice(ctx, txn, decimal.NewFromInt(-1)), apperr.ErrInvalidAmount)

	require.NoError(t, l.Fail(ctx, txn))
	stored, err = l.GetByID(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionFailed, stored.Status)
	assert.ErrorIs(t, l.Reprice(ctx, txn, decimal.Zero), apperr.ErrTransactionNotPayable)
}

func TestRefund(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, nil)
	ctx := context.Background()
	dbtest.Credit(t, db, w.Alice.ID, 100)

	kept, refunded := dish(w, "p", 1), dish(w, "p", 2)
	txn, err := l.Open(ctx, w.Alice.ID, []*order.Order{kept, refunded}, false)
	require.NoError(t, err)

	_, err = l.Refund(ctx, txn, []*order.Order{refunded})
	assert.ErrorIs(t, err, apperr.ErrNotRefundable, "unpaid transactions cannot be refunded")

	require.NoError(t, l.Pay(ctx, txn))

	refund, err := l.Refund(ctx, txn, []*order.Order{refunded})
	require.NoError(t, err)
	assert.Equal(t, models.TransactionRefund, refund.Kind)
	assert.Equal(t, models.TransactionPaid, refund.Status)
	assert.True(t, refund.Amount.Equal(decimal.NewFromInt(30)), refund.Amount.String())
	require.NotNil(t, refund.RefundOf)
	assert.Equal(t, txn.ID, *refund.RefundOf)
	require.NotNil(t, refunded.RefundTransactionID)
	assert.Equal(t, refund.ID, *refunded.RefundTransactionID)

	balance, err := l.Balance(ctx, w.Alice.ID)
	require.NoError(t, err)
	// 100 - 45 + 30
	assert.True(t, balance.Equal(decimal.NewFromInt(85)), balance.String())

	_, err = l.Refund(ctx, txn, []*order.Order{refunded})
	assert.ErrorIs(t, err, apperr.ErrNotRefundable, "an order is refunded at most once")

	stranger := dish(w, "p", 1)
	_, err = l.Refund(ctx, txn, []*order.Order{stranger})
	assert.ErrorIs(t, err, apperr.ErrNotRefundable)
}

func TestRechargeAndHistory(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, nil)
	ctx := context.Background()

	_, err := l.Recharge(ctx, w.Alice.ID, decimal.Zero)
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)
	_, err = l.Recharge(ctx, w.Alice.ID, decimal.NewFromInt(-5))
	assert.ErrorIs(t, err, apperr.ErrInvalidAmount)

	first, err := l.Recharge(ctx, w.Alice.ID, decimal.RequireFromString("12.50"))
	require.NoError(t, err)
	second, err := l.Recharge(ctx, w.Alice.ID, decimal.NewFromInt(10))
	require.NoError(t, err)

	history, err := l.History(ctx, w.Alice.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
	assert.Equal(t, first.ID, history[1].ID)

	balance, err := l.Balance(ctx, w.Alice.ID)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("22.50")), balance.String())

	_, err = l.Get(ctx, "missing")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestEnsureFunds(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, departure)
	l := ledger.New(db, nil)
	ctx := context.Background()
	dbtest.Credit(t, db, w.Bob.ID, 20)

	assert.NoError(t, l.EnsureFunds(ctx, w.Bob.ID, decimal.NewFromInt(20)))
	assert.ErrorIs(t, l.EnsureFunds(ctx, w.Bob.ID, decimal.RequireFromString("20.01")), apperr.ErrInsufficientFunds)
}
