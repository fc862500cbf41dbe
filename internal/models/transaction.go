package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const (
	TransactionUnpaid = "unpaid"
	TransactionPaid   = "paid"
	TransactionFailed = "failed"
)

const (
	TransactionPurchase = "purchase"
	TransactionRecharge = "recharge"
	TransactionRefund   = "refund"
)

// Transaction is one signed movement of a user's balance.
// Negative amounts are debits, positive amounts are credits.
type Transaction struct {
	bun.BaseModel `bun:"table:transactions,alias:t"`

	ID         int64           `bun:"id,pk,autoincrement"`
	UUID       string          `bun:"uuid,unique,notnull"`
	UserID     int64           `bun:"user_id,notnull"`
	Kind       string          `bun:"kind,notnull"`
	Status     string          `bun:"status,notnull"`
	Amount     decimal.Decimal `bun:"amount,type:numeric(14,2),notnull"`
	Atomic     bool            `bun:"atomic,notnull,default:false"`
	RefundOf   *int64          `bun:"refund_of"`
	CreatedAt  time.Time       `bun:"created_at,notnull"`
	FinishedAt *time.Time      `bun:"finished_at"`
}
