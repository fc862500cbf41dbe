package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderStatusEvent is published whenever an order changes status.
type OrderStatusEvent struct {
	OrderID       uuid.UUID `json:"order_id"`
	TransactionID uuid.UUID `json:"transaction_id,omitempty"`
	UserID        int64     `json:"user_id"`
	Kind          string    `json:"kind"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// NewOrderStatusEvent parses the external ids so consumers always receive
// well-formed UUIDs. transactionID may be empty.
func NewOrderStatusEvent(orderID, transactionID string, userID int64, kind, status string, at time.Time) (OrderStatusEvent, error) {
	orderUUID, err := uuid.Parse(orderID)
	if err != nil {
		return OrderStatusEvent{}, err
	}
	ev := OrderStatusEvent{
		OrderID:    orderUUID,
		UserID:     userID,
		Kind:       kind,
		Status:     status,
		OccurredAt: at.UTC(),
	}
	if transactionID != "" {
		if ev.TransactionID, err = uuid.Parse(transactionID); err != nil {
			return OrderStatusEvent{}, err
		}
	}
	return ev, nil
}
