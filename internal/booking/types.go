package booking

import (
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/models"
	"ms-booking/internal/order"
)

type OrderInfo struct {
	OrderID   string          `json:"order_id"`
	Kind      order.Kind      `json:"type"`
	Status    order.Status    `json:"status"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Amount    int             `json:"amount"`
	Total     decimal.Decimal `json:"total"`
	BeginAt   time.Time       `json:"begin_at"`
	EndAt     time.Time       `json:"end_at"`
}

func newOrderInfo(o *order.Order) OrderInfo {
	return OrderInfo{
		OrderID:   o.UUID,
		Kind:      o.Kind,
		Status:    o.Status,
		UnitPrice: o.UnitPrice,
		Amount:    o.Amount,
		Total:     o.Total(),
		BeginAt:   o.BeginAt,
		EndAt:     o.EndAt,
	}
}

type TransactionInfo struct {
	TransactionID string          `json:"transaction_id"`
	Kind          string          `json:"kind"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Atomic        bool            `json:"atomic"`
	CreatedAt     time.Time       `json:"created_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
	Orders        []OrderInfo     `json:"orders,omitempty"`
}

func newTransactionInfo(txn *models.Transaction, orders []*order.Order) *TransactionInfo {
	info := &TransactionInfo{
		TransactionID: txn.UUID,
		Kind:          txn.Kind,
		Status:        txn.Status,
		Amount:        txn.Amount,
		Atomic:        txn.Atomic,
		CreatedAt:     txn.CreatedAt,
		FinishedAt:    txn.FinishedAt,
	}
	for _, o := range orders {
		info.Orders = append(info.Orders, newOrderInfo(o))
	}
	return info
}

// Outcome is the result of settling one order.
type Outcome struct {
	OrderID string       `json:"order_id"`
	Kind    order.Kind   `json:"type"`
	Status  order.Status `json:"status"`
	Error   string       `json:"error,omitempty"`
}

type SettleResult struct {
	TransactionID string          `json:"transaction_id"`
	Status        string          `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Outcomes      []Outcome       `json:"orders"`
}

// Succeeded counts the orders that ended up holding inventory.
func (r *SettleResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Error == "" && (o.Status == order.StatusPaid || o.Status.Fulfilled()) {
			n++
		}
	}
	return n
}

type RoomAvailability struct {
	RoomTypeID int64           `json:"room_type_id"`
	Name       string          `json:"name"`
	Price      decimal.Decimal `json:"price"`
	Capacity   int             `json:"capacity"`
	Free       int             `json:"free"`
}
