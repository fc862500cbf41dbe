package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/database"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
)

type DB struct {
	Bun bun.IDB
}

func New(db bun.IDB) *DB {
	return &DB{Bun: db}
}

// Tx returns a view of the repository bound to a store transaction.
func (d *DB) Tx(tx bun.IDB) *DB {
	return &DB{Bun: tx}
}

// ---------------- ORDERS ----------------

// Create inserts the order and fills in its id.
func (d *DB) Create(ctx context.Context, o *order.Order) error {
	row := order.ToRow(o)
	if _, err := d.Bun.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("insert order %s: %w", o.UUID, err)
	}
	o.ID = row.ID
	return nil
}

func (d *DB) GetByUUID(ctx context.Context, uuid string) (*order.Order, error) {
	return d.getOne(ctx, d.Bun.NewSelect().Where("o.uuid = ?", uuid))
}

// GetByUUIDForUpdate row-locks the order for the rest of the transaction.
func (d *DB) GetByUUIDForUpdate(ctx context.Context, uuid string) (*order.Order, error) {
	return d.getOne(ctx, database.ForUpdate(d.Bun, d.Bun.NewSelect().Where("o.uuid = ?", uuid)))
}

func (d *DB) getOne(ctx context.Context, q *bun.SelectQuery) (*order.Order, error) {
	row := new(models.Order)
	err := q.Model(row).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return order.FromRow(row)
}

// ListByTransaction returns the orders paid by a transaction, oldest first.
func (d *DB) ListByTransaction(ctx context.Context, transactionID int64) ([]*order.Order, error) {
	return d.list(ctx, d.Bun.NewSelect().Where("o.pay_transaction_id = ?", transactionID))
}

func (d *DB) ListByUser(ctx context.Context, userID int64) ([]*order.Order, error) {
	return d.list(ctx, d.Bun.NewSelect().Where("o.user_id = ?", userID))
}

// ListChildren returns the dish and takeaway orders riding on a train order.
func (d *DB) ListChildren(ctx context.Context, parentUUID string) ([]*order.Order, error) {
	return d.list(ctx, d.Bun.NewSelect().Where("o.parent_order_uuid = ?", parentUUID))
}

// ListByStatus returns every order currently in one of the statuses.
func (d *DB) ListByStatus(ctx context.Context, statuses ...order.Status) ([]*order.Order, error) {
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = string(s)
	}
	return d.list(ctx, d.Bun.NewSelect().Where("o.status IN (?)", bun.In(names)))
}

func (d *DB) list(ctx context.Context, q *bun.SelectQuery) ([]*order.Order, error) {
	var rows []models.Order
	if err := q.Model(&rows).Order("o.id ASC").Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	out := make([]*order.Order, 0, len(rows))
	for i := range rows {
		o, err := order.FromRow(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// SaveState persists the mutable part of an order: status and its
// payment and refund references.
func (d *DB) SaveState(ctx context.Context, o *order.Order) error {
	row := order.ToRow(o)
	res, err := d.Bun.NewUpdate().
		Model(row).
		Column("status", "pay_transaction_id", "refund_transaction_id").
		WherePK().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("update order %s: %w", o.UUID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("order %s vanished: %w", o.UUID, apperr.ErrConsistency)
	}
	return nil
}

// ParentID resolves the row id of a train order by UUID.
func (d *DB) ParentID(ctx context.Context, uuid string) (int64, error) {
	var id int64
	err := d.Bun.NewSelect().
		Model((*models.Order)(nil)).
		Column("o.id").
		Where("o.uuid = ?", uuid).
		Where("o.kind = ?", string(order.KindTrain)).
		Limit(1).
		Scan(ctx, &id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	return id, err
}
