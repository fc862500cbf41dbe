package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type Hotel struct {
	bun.BaseModel `bun:"table:hotels,alias:h"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
	City string `bun:"city" json:"city"`
}

type HotelRoomType struct {
	bun.BaseModel `bun:"table:hotel_room_types,alias:hrt"`

	ID       int64           `bun:"id,pk,autoincrement" json:"id"`
	HotelID  int64           `bun:"hotel_id,notnull" json:"hotel_id"`
	Name     string          `bun:"name,notnull" json:"name"`
	Capacity int             `bun:"capacity,notnull" json:"capacity"`
	Price    decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
}

type Station struct {
	bun.BaseModel `bun:"table:stations,alias:st"`

	ID   int64  `bun:"id,pk,autoincrement" json:"id"`
	Name string `bun:"name,unique,notnull" json:"name"`
}

type TrainSchedule struct {
	bun.BaseModel `bun:"table:train_schedules,alias:ts"`

	ID          int64     `bun:"id,pk,autoincrement" json:"id"`
	TrainNumber string    `bun:"train_number,notnull" json:"train_number"`
	Departure   time.Time `bun:"departure,notnull" json:"departure"`
}

// ScheduleStop is one station on a schedule's route, ordered by StopIndex.
type ScheduleStop struct {
	bun.BaseModel `bun:"table:schedule_stops,alias:ss"`

	ID         int64     `bun:"id,pk,autoincrement" json:"id"`
	ScheduleID int64     `bun:"schedule_id,notnull" json:"schedule_id"`
	StationID  int64     `bun:"station_id,notnull" json:"station_id"`
	StopIndex  int       `bun:"stop_index,notnull" json:"stop_index"`
	ArriveAt   time.Time `bun:"arrive_at,notnull" json:"arrive_at"`
	DepartAt   time.Time `bun:"depart_at,notnull" json:"depart_at"`
}

type SeatClass struct {
	bun.BaseModel `bun:"table:seat_classes,alias:sc"`

	ID         int64           `bun:"id,pk,autoincrement" json:"id"`
	ScheduleID int64           `bun:"schedule_id,notnull" json:"schedule_id"`
	Name       string          `bun:"name,notnull" json:"name"`
	Capacity   int             `bun:"capacity,notnull" json:"capacity"`
	Price      decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
}

type Seat struct {
	bun.BaseModel `bun:"table:seats,alias:s"`

	ID          int64  `bun:"id,pk,autoincrement" json:"id"`
	SeatClassID int64  `bun:"seat_class_id,notnull" json:"seat_class_id"`
	Carriage    int    `bun:"carriage,notnull" json:"carriage"`
	Row         int    `bun:"seat_row,notnull" json:"row"`
	Location    string `bun:"location,notnull" json:"location"`
}

type Dish struct {
	bun.BaseModel `bun:"table:dishes,alias:d"`

	ID         int64           `bun:"id,pk,autoincrement" json:"id"`
	ScheduleID int64           `bun:"schedule_id,notnull" json:"schedule_id"`
	Name       string          `bun:"name,notnull" json:"name"`
	Price      decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
	Capacity   int             `bun:"capacity,notnull" json:"capacity"`
}

type TakeawayShop struct {
	bun.BaseModel `bun:"table:takeaway_shops,alias:tks"`

	ID        int64  `bun:"id,pk,autoincrement" json:"id"`
	StationID int64  `bun:"station_id,notnull" json:"station_id"`
	Name      string `bun:"name,notnull" json:"name"`
}

type TakeawayDish struct {
	bun.BaseModel `bun:"table:takeaway_dishes,alias:tkd"`

	ID     int64           `bun:"id,pk,autoincrement" json:"id"`
	ShopID int64           `bun:"shop_id,notnull" json:"shop_id"`
	Name   string          `bun:"name,notnull" json:"name"`
	Price  decimal.Decimal `bun:"price,type:numeric(12,2),notnull" json:"price"`
}

// All lists every table model in dependency order.
func All() []interface{} {
	return []interface{}{
		(*User)(nil),
		(*PersonalInfo)(nil),
		(*Hotel)(nil),
		(*HotelRoomType)(nil),
		(*Station)(nil),
		(*TrainSchedule)(nil),
		(*ScheduleStop)(nil),
		(*SeatClass)(nil),
		(*Seat)(nil),
		(*Dish)(nil),
		(*TakeawayShop)(nil),
		(*TakeawayDish)(nil),
		(*Transaction)(nil),
		(*Order)(nil),
		(*OccupiedRoom)(nil),
		(*OccupiedSeat)(nil),
		(*OccupiedDish)(nil),
	}
}
