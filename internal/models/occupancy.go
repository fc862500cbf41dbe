package models

import (
	"time"

	"github.com/uptrace/bun"
)

// OccupiedRoom holds one room unit for the nights [BeginDate, EndDate).
type OccupiedRoom struct {
	bun.BaseModel `bun:"table:occupied_rooms,alias:orm"`

	ID             int64     `bun:"id,pk,autoincrement"`
	OrderID        int64     `bun:"order_id,notnull"`
	HotelID        int64     `bun:"hotel_id,notnull"`
	RoomTypeID     int64     `bun:"room_type_id,notnull"`
	BeginDate      time.Time `bun:"begin_date,notnull"`
	EndDate        time.Time `bun:"end_date,notnull"`
	PersonalInfoID int64     `bun:"personal_info_id,notnull"`
}

// OccupiedSeat holds a class slot, or a concrete seat when SeatID is set,
// over the route segment [FromIndex, ToIndex).
type OccupiedSeat struct {
	bun.BaseModel `bun:"table:occupied_seats,alias:os"`

	ID             int64  `bun:"id,pk,autoincrement"`
	OrderID        int64  `bun:"order_id,notnull"`
	ScheduleID     int64  `bun:"schedule_id,notnull"`
	SeatClassID    int64  `bun:"seat_class_id,notnull"`
	SeatID         *int64 `bun:"seat_id"`
	FromIndex      int    `bun:"from_index,notnull"`
	ToIndex        int    `bun:"to_index,notnull"`
	PersonalInfoID int64  `bun:"personal_info_id,notnull"`
}

type OccupiedDish struct {
	bun.BaseModel `bun:"table:occupied_dishes,alias:od"`

	ID         int64 `bun:"id,pk,autoincrement"`
	OrderID    int64 `bun:"order_id,notnull"`
	ScheduleID int64 `bun:"schedule_id,notnull"`
	DishID     int64 `bun:"dish_id,notnull"`
	Quantity   int   `bun:"quantity,notnull"`
}
