package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

// Order is the row form of every order kind. Only the columns of the
// row's kind are set; the rest stay NULL.
type Order struct {
	bun.BaseModel `bun:"table:orders,alias:o"`

	ID                  int64           `bun:"id,pk,autoincrement"`
	UUID                string          `bun:"uuid,unique,notnull"`
	Kind                string          `bun:"kind,notnull"`
	Status              string          `bun:"status,notnull"`
	UserID              int64           `bun:"user_id,notnull"`
	PersonalInfoID      int64           `bun:"personal_info_id,notnull"`
	UnitPrice           decimal.Decimal `bun:"unit_price,type:numeric(12,2),notnull"`
	Amount              int             `bun:"amount,notnull"`
	BeginAt             time.Time       `bun:"begin_at,notnull"`
	EndAt               time.Time       `bun:"end_at,notnull"`
	CreatedAt           time.Time       `bun:"created_at,notnull"`
	PayTransactionID    *int64          `bun:"pay_transaction_id"`
	RefundTransactionID *int64          `bun:"refund_transaction_id"`

	// train, and the schedule a dish is served on
	ScheduleID    *int64 `bun:"schedule_id"`
	SeatClassID   *int64 `bun:"seat_class_id"`
	SeatID        *int64 `bun:"seat_id"`
	FromStationID *int64 `bun:"from_station_id"`
	ToStationID   *int64 `bun:"to_station_id"`
	FromIndex     *int   `bun:"from_index"`
	ToIndex       *int   `bun:"to_index"`

	// hotel
	HotelID    *int64     `bun:"hotel_id"`
	RoomTypeID *int64     `bun:"room_type_id"`
	BeginDate  *time.Time `bun:"begin_date"`
	EndDate    *time.Time `bun:"end_date"`

	// dish, takeaway
	ParentOrderUUID *string `bun:"parent_order_uuid"`
	DishID          *int64  `bun:"dish_id"`
	TakeawayDishID  *int64  `bun:"takeaway_dish_id"`
}
