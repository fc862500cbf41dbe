// Package ledger records every movement of a user's balance as a signed
// transaction. A user's balance is the sum of their paid transactions.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/database"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	"ms-booking/internal/utils"
)

type Ledger struct {
	DB    bun.IDB
	Clock utils.Clock
}

func New(db bun.IDB, clock utils.Clock) *Ledger {
	if clock == nil {
		clock = utils.SystemClock{}
	}
	return &Ledger{DB: db, Clock: clock}
}

// Tx returns a ledger bound to a store transaction.
func (l *Ledger) Tx(tx bun.IDB) *Ledger {
	return &Ledger{DB: tx, Clock: l.Clock}
}

// Open creates an unpaid purchase debiting the sum of the orders and points
// each order at it. The orders are not written here.
func (l *Ledger) Open(ctx context.Context, userID int64, orders []*order.Order, atomic bool) (*models.Transaction, error) {
	if len(orders) == 0 {
		return nil, apperr.ErrEmptyOrderList
	}
	total := Sum(orders)
	txn := &models.Transaction{
		UUID:      utils.NewUUID(),
		UserID:    userID,
		Kind:      models.TransactionPurchase,
		Status:    models.TransactionUnpaid,
		Amount:    total.Neg(),
		Atomic:    atomic,
		CreatedAt: l.Clock.Now(),
	}
	if _, err := l.DB.NewInsert().Model(txn).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	for _, o := range orders {
		o.PayTransactionID = &txn.ID
	}
	return txn, nil
}

func (l *Ledger) Get(ctx context.Context, uuid string) (*models.Transaction, error) {
	return l.get(ctx, l.DB.NewSelect().Where("t.uuid = ?", uuid))
}

func (l *Ledger) GetByID(ctx context.Context, id int64) (*models.Transaction, error) {
	return l.get(ctx, l.DB.NewSelect().Where("t.id = ?", id))
}

// GetForUpdate row-locks the transaction for the rest of the store transaction.
func (l *Ledger) GetForUpdate(ctx context.Context, uuid string) (*models.Transaction, error) {
	return l.get(ctx, database.ForUpdate(l.DB, l.DB.NewSelect().Where("t.uuid = ?", uuid)))
}

func (l *Ledger) GetByIDForUpdate(ctx context.Context, id int64) (*models.Transaction, error) {
	return l.get(ctx, database.ForUpdate(l.DB, l.DB.NewSelect().Where("t.id = ?", id)))
}

func (l *Ledger) get(ctx context.Context, q *bun.SelectQuery) (*models.Transaction, error) {
	txn := new(models.Transaction)
	err := q.Model(txn).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// Balance sums the user's paid transactions. It takes no locks.
func (l *Ledger) Balance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var paid []models.Transaction
	err := l.DB.NewSelect().
		Model(&paid).
		Column("t.id", "t.amount").
		Where("t.user_id = ?", userID).
		Where("t.status = ?", models.TransactionPaid).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, err
	}
	balance := decimal.Zero
	for _, t := range paid {
		balance = balance.Add(t.Amount)
	}
	return balance, nil
}

// EnsureFunds fails with ErrInsufficientFunds when the balance is below due.
func (l *Ledger) EnsureFunds(ctx context.Context, userID int64, due decimal.Decimal) error {
	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(due) {
		return fmt.Errorf("balance %s, due %s: %w", balance.StringFixed(2), due.StringFixed(2), apperr.ErrInsufficientFunds)
	}
	return nil
}

// Pay settles an unpaid debit. The balance must cover it.
func (l *Ledger) Pay(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.TransactionUnpaid {
		return fmt.Errorf("transaction %s is %s: %w", txn.UUID, txn.Status, apperr.ErrTransactionNotPayable)
	}
	if err := l.EnsureFunds(ctx, txn.UserID, txn.Amount.Neg()); err != nil {
		return err
	}
	return l.finish(ctx, txn, models.TransactionPaid)
}

// Fail closes an unpaid transaction without moving money.
func (l *Ledger) Fail(ctx context.Context, txn *models.Transaction) error {
	if txn.Status != models.TransactionUnpaid {
		return fmt.Errorf("transaction %s is %s: %w", txn.UUID, txn.Status, apperr.ErrTransactionNotPayable)
	}
	return l.finish(ctx, txn, models.TransactionFailed)
}

func (l *Ledger) finish(ctx context.Context, txn *models.Transaction, status string) error {
	now := l.Clock.Now()
	txn.Status = status
	txn.FinishedAt = &now
	_, err := l.DB.NewUpdate().
		Model(txn).
		Column("status", "finished_at").
		WherePK().
		Exec(ctx)
	return err
}

// Reprice rewrites the magnitude of an unpaid transaction, keeping its sign.
func (l *Ledger) Reprice(ctx context.Context, txn *models.Transaction, magnitude decimal.Decimal) error {
	if txn.Status != models.TransactionUnpaid {
		return fmt.Errorf("transaction %s is %s: %w", txn.UUID, txn.Status, apperr.ErrTransactionNotPayable)
	}
	if magnitude.IsNegative() {
		return apperr.ErrInvalidAmount
	}
	if txn.Amount.IsNegative() {
		txn.Amount = magnitude.Neg()
	} else {
		txn.Amount = magnitude
	}
	_, err := l.DB.NewUpdate().Model(txn).Column("amount").WherePK().Exec(ctx)
	return err
}

// Refund credits the total of the given orders back to the owner of a paid
// purchase and points each order at the refund. The caller persists the
// orders.
func (l *Ledger) Refund(ctx context.Context, original *models.Transaction, orders []*order.Order) (*models.Transaction, error) {
	if original.Status != models.TransactionPaid || original.Kind != models.TransactionPurchase {
		return nil, fmt.Errorf("transaction %s is %s %s: %w", original.UUID, original.Status, original.Kind, apperr.ErrNotRefundable)
	}
	if len(orders) == 0 {
		return nil, apperr.ErrEmptyOrderList
	}
	for _, o := range orders {
		if o.RefundTransactionID != nil {
			return nil, fmt.Errorf("order %s already refunded: %w", o.UUID, apperr.ErrNotRefundable)
		}
		if o.PayTransactionID == nil || *o.PayTransactionID != original.ID {
			return nil, fmt.Errorf("order %s was not paid by %s: %w", o.UUID, original.UUID, apperr.ErrNotRefundable)
		}
	}

	now := l.Clock.Now()
	refund := &models.Transaction{
		UUID:       utils.NewUUID(),
		UserID:     original.UserID,
		Kind:       models.TransactionRefund,
		Status:     models.TransactionPaid,
		Amount:     Sum(orders),
		RefundOf:   &original.ID,
		CreatedAt:  now,
		FinishedAt: &now,
	}
	if _, err := l.DB.NewInsert().Model(refund).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert refund: %w", err)
	}
	for _, o := range orders {
		o.RefundTransactionID = &refund.ID
	}
	return refund, nil
}

// Recharge credits a user's balance.
func (l *Ledger) Recharge(ctx context.Context, userID int64, amount decimal.Decimal) (*models.Transaction, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("recharge of %s: %w", amount, apperr.ErrInvalidAmount)
	}
	now := l.Clock.Now()
	txn := &models.Transaction{
		UUID:       utils.NewUUID(),
		UserID:     userID,
		Kind:       models.TransactionRecharge,
		Status:     models.TransactionPaid,
		Amount:     amount,
		CreatedAt:  now,
		FinishedAt: &now,
	}
	if _, err := l.DB.NewInsert().Model(txn).Exec(ctx); err != nil {
		return nil, fmt.Errorf("insert recharge: %w", err)
	}
	return txn, nil
}

// History lists a user's transactions, newest first.
func (l *Ledger) History(ctx context.Context, userID int64) ([]models.Transaction, error) {
	var txns []models.Transaction
	err := l.DB.NewSelect().
		Model(&txns).
		Where("t.user_id = ?", userID).
		Order("t.id DESC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return txns, nil
}

// Sum is the total price of the orders.
func Sum(orders []*order.Order) decimal.Decimal {
	total := decimal.Zero
	for _, o := range orders {
		total = total.Add(o.Total())
	}
	return total
}
