// Package inventory reserves finite capacity (hotel rooms, train seats,
// onboard dishes) for orders. Every check re-reads occupancy inside a store
// transaction after locking the contended resource row, so two concurrent
// reservations of the same resource are serialized by the database.
package inventory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/database"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	orderdb "ms-booking/internal/order/db"
)

// Handle identifies the occupancy held for one order. Releasing it removes
// every occupancy record of that order.
type Handle struct {
	OrderID int64
	Kind    order.Kind
}

type Allocator struct {
	DB      bun.IDB
	Metrics *metrics.BookingMetrics
}

func New(db bun.IDB, m *metrics.BookingMetrics) *Allocator {
	return &Allocator{DB: db, Metrics: m}
}

// Reserve holds capacity for a persisted order in its own store transaction.
func (a *Allocator) Reserve(ctx context.Context, o *order.Order) (Handle, error) {
	var h Handle
	err := a.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		var err error
		h, err = a.ReserveTx(ctx, tx, o)
		return err
	})
	return h, err
}

// ReserveTx holds capacity inside the caller's store transaction. Nothing is
// written when it fails.
func (a *Allocator) ReserveTx(ctx context.Context, tx bun.IDB, o *order.Order) (Handle, error) {
	if o.ID == 0 {
		return Handle{}, fmt.Errorf("order %s is not persisted", o.UUID)
	}

	var err error
	switch o.Kind {
	case order.KindHotel:
		err = a.reserveRooms(ctx, tx, o)
	case order.KindTrain:
		err = a.reserveSeats(ctx, tx, o)
	case order.KindDish:
		err = a.reserveDish(ctx, tx, o)
	case order.KindTakeaway:
		err = requireParentHeld(ctx, tx, o.Takeaway.ParentUUID)
	default:
		err = fmt.Errorf("order kind %q: %w", o.Kind, apperr.ErrUnknownResource)
	}

	if err != nil {
		if apperr.KindOf(err) == apperr.KindCapacity {
			a.Metrics.Reservation(string(o.Kind), "conflict")
		}
		return Handle{}, err
	}
	a.Metrics.Reservation(string(o.Kind), "held")
	return Handle{OrderID: o.ID, Kind: o.Kind}, nil
}

func (a *Allocator) reserveRooms(ctx context.Context, tx bun.IDB, o *order.Order) error {
	h := o.Hotel
	rt := &models.HotelRoomType{ID: h.RoomTypeID}
	if err := lockRow(ctx, tx, rt); err != nil {
		return fmt.Errorf("room type %d: %w", h.RoomTypeID, err)
	}

	occupied, err := overlappingRooms(ctx, tx, h.RoomTypeID, h.BeginDate, h.EndDate)
	if err != nil {
		return err
	}
	if free := freeRooms(rt.Capacity, occupied, h.BeginDate, h.EndDate); free < o.Amount {
		return fmt.Errorf("room type %d has %d free for %s..%s, %d requested: %w",
			rt.ID, free, h.BeginDate.Format("2006-01-02"), h.EndDate.Format("2006-01-02"), o.Amount, apperr.ErrCapacityExceeded)
	}

	rooms := make([]models.OccupiedRoom, o.Amount)
	for i := range rooms {
		rooms[i] = models.OccupiedRoom{
			OrderID:        o.ID,
			HotelID:        h.HotelID,
			RoomTypeID:     h.RoomTypeID,
			BeginDate:      h.BeginDate,
			EndDate:        h.EndDate,
			PersonalInfoID: o.PersonalInfoID,
		}
	}
	_, err = tx.NewInsert().Model(&rooms).Exec(ctx)
	return err
}

func (a *Allocator) reserveSeats(ctx context.Context, tx bun.IDB, o *order.Order) error {
	t := o.Train
	sc := &models.SeatClass{ID: t.SeatClassID}
	if err := lockRow(ctx, tx, sc); err != nil {
		return fmt.Errorf("seat class %d: %w", t.SeatClassID, err)
	}

	var occupied []models.OccupiedSeat
	err := tx.NewSelect().
		Model(&occupied).
		Where("os.seat_class_id = ?", t.SeatClassID).
		Where("os.from_index < ?", t.ToIndex).
		Where("os.to_index > ?", t.FromIndex).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	if t.SeatID != nil {
		for _, r := range occupied {
			if r.SeatID != nil && *r.SeatID == *t.SeatID {
				return fmt.Errorf("seat %d on segment %d..%d: %w", *t.SeatID, t.FromIndex, t.ToIndex, apperr.ErrSeatTaken)
			}
		}
	}

	for seg := t.FromIndex; seg < t.ToIndex; seg++ {
		held := 0
		for _, r := range occupied {
			if r.FromIndex <= seg && seg < r.ToIndex {
				held++
			}
		}
		if held+o.Amount > sc.Capacity {
			return fmt.Errorf("seat class %d segment %d: %d of %d held: %w", sc.ID, seg, held, sc.Capacity, apperr.ErrCapacityExceeded)
		}
	}

	seats := make([]models.OccupiedSeat, o.Amount)
	for i := range seats {
		seats[i] = models.OccupiedSeat{
			OrderID:        o.ID,
			ScheduleID:     t.ScheduleID,
			SeatClassID:    t.SeatClassID,
			SeatID:         t.SeatID,
			FromIndex:      t.FromIndex,
			ToIndex:        t.ToIndex,
			PersonalInfoID: o.PersonalInfoID,
		}
	}
	_, err = tx.NewInsert().Model(&seats).Exec(ctx)
	return err
}

func (a *Allocator) reserveDish(ctx context.Context, tx bun.IDB, o *order.Order) error {
	d := o.Dish
	if err := requireParentHeld(ctx, tx, d.ParentUUID); err != nil {
		return err
	}

	dish := &models.Dish{ID: d.DishID}
	if err := lockRow(ctx, tx, dish); err != nil {
		return fmt.Errorf("dish %d: %w", d.DishID, err)
	}

	var used int
	err := tx.NewSelect().
		Model((*models.OccupiedDish)(nil)).
		ColumnExpr("COALESCE(SUM(od.quantity), 0)").
		Where("od.schedule_id = ?", d.ScheduleID).
		Where("od.dish_id = ?", d.DishID).
		Scan(ctx, &used)
	if err != nil {
		return err
	}
	if used+o.Amount > dish.Capacity {
		return fmt.Errorf("dish %d: %d of %d served, %d requested: %w", dish.ID, used, dish.Capacity, o.Amount, apperr.ErrCapacityExceeded)
	}

	_, err = tx.NewInsert().Model(&models.OccupiedDish{
		OrderID:    o.ID,
		ScheduleID: d.ScheduleID,
		DishID:     d.DishID,
		Quantity:   o.Amount,
	}).Exec(ctx)
	return err
}

// requireParentHeld fails unless the train order currently holds a seat.
func requireParentHeld(ctx context.Context, tx bun.IDB, parentUUID string) error {
	parentID, err := orderdb.New(tx).ParentID(ctx, parentUUID)
	if errors.Is(err, apperr.ErrNotFound) {
		return fmt.Errorf("train order %s: %w", parentUUID, apperr.ErrParentNotHeld)
	}
	if err != nil {
		return err
	}

	held, err := tx.NewSelect().
		Model((*models.OccupiedSeat)(nil)).
		Where("os.order_id = ?", parentID).
		Exists(ctx)
	if err != nil {
		return err
	}
	if !held {
		return fmt.Errorf("train order %s: %w", parentUUID, apperr.ErrParentNotHeld)
	}
	return nil
}

// Release drops the occupancy of a handle. Releasing twice is a no-op.
func (a *Allocator) Release(ctx context.Context, h Handle) error {
	return a.ReleaseTx(ctx, a.DB, h)
}

func (a *Allocator) ReleaseTx(ctx context.Context, tx bun.IDB, h Handle) error {
	for _, model := range []interface{}{
		(*models.OccupiedRoom)(nil),
		(*models.OccupiedSeat)(nil),
		(*models.OccupiedDish)(nil),
	} {
		if _, err := tx.NewDelete().Model(model).Where("order_id = ?", h.OrderID).Exec(ctx); err != nil {
			return fmt.Errorf("release order %d: %w", h.OrderID, err)
		}
	}
	return nil
}

// Availability reports how many rooms of a type are free on every night of
// [begin, end). Read only.
func (a *Allocator) Availability(ctx context.Context, roomTypeID int64, begin, end time.Time) (int, error) {
	if !begin.Before(end) {
		return 0, apperr.ErrInvalidDateRange
	}
	rt := &models.HotelRoomType{ID: roomTypeID}
	if err := a.DB.NewSelect().Model(rt).WherePK().Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("room type %d: %w", roomTypeID, apperr.ErrResourceNotFound)
		}
		return 0, err
	}
	occupied, err := overlappingRooms(ctx, a.DB, roomTypeID, begin, end)
	if err != nil {
		return 0, err
	}
	return freeRooms(rt.Capacity, occupied, begin, end), nil
}

func lockRow(ctx context.Context, tx bun.IDB, model interface{}) error {
	err := database.ForUpdate(tx, tx.NewSelect().Model(model).WherePK()).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrResourceNotFound
	}
	return err
}

func overlappingRooms(ctx context.Context, db bun.IDB, roomTypeID int64, begin, end time.Time) ([]models.OccupiedRoom, error) {
	var rooms []models.OccupiedRoom
	err := db.NewSelect().
		Model(&rooms).
		Where("orm.room_type_id = ?", roomTypeID).
		Where("orm.begin_date < ?", end).
		Where("orm.end_date > ?", begin).
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rooms, nil
}

// freeRooms is the minimum over the nights of [begin, end) of capacity minus
// the rooms occupied that night.
func freeRooms(capacity int, occupied []models.OccupiedRoom, begin, end time.Time) int {
	free := capacity
	for night := begin; night.Before(end); night = night.AddDate(0, 0, 1) {
		held := 0
		for _, r := range occupied {
			if !night.Before(r.BeginDate) && night.Before(r.EndDate) {
				held++
			}
		}
		if capacity-held < free {
			free = capacity - held
		}
	}
	if free < 0 {
		return 0
	}
	return free
}
