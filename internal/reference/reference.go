// Package reference reads the catalogue the booking core validates against:
// hotels, room types, schedules and their stops, seat classes, seats,
// dishes and takeaway items. Lookups return (nil, nil) when a row is missing.
package reference

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"

	"ms-booking/internal/models"
)

type Lookup interface {
	Hotel(ctx context.Context, id int64) (*models.Hotel, error)
	RoomType(ctx context.Context, id int64) (*models.HotelRoomType, error)
	RoomTypes(ctx context.Context, hotelID int64) ([]models.HotelRoomType, error)
	Schedule(ctx context.Context, id int64) (*models.TrainSchedule, error)
	Stops(ctx context.Context, scheduleID int64) ([]models.ScheduleStop, error)
	SeatClass(ctx context.Context, id int64) (*models.SeatClass, error)
	Seat(ctx context.Context, id int64) (*models.Seat, error)
	Dish(ctx context.Context, id int64) (*models.Dish, error)
	TakeawayDish(ctx context.Context, id int64) (*models.TakeawayDish, error)
	TakeawayShop(ctx context.Context, id int64) (*models.TakeawayShop, error)
	PersonalInfo(ctx context.Context, uuid string) (*models.PersonalInfo, error)
}

type DB struct {
	Bun bun.IDB
}

func New(db bun.IDB) *DB {
	return &DB{Bun: db}
}

func (d *DB) byID(ctx context.Context, model interface{}) (bool, error) {
	err := d.Bun.NewSelect().Model(model).WherePK().Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) Hotel(ctx context.Context, id int64) (*models.Hotel, error) {
	h := &models.Hotel{ID: id}
	if ok, err := d.byID(ctx, h); !ok {
		return nil, err
	}
	return h, nil
}

func (d *DB) RoomType(ctx context.Context, id int64) (*models.HotelRoomType, error) {
	rt := &models.HotelRoomType{ID: id}
	if ok, err := d.byID(ctx, rt); !ok {
		return nil, err
	}
	return rt, nil
}

func (d *DB) RoomTypes(ctx context.Context, hotelID int64) ([]models.HotelRoomType, error) {
	var rts []models.HotelRoomType
	err := d.Bun.NewSelect().
		Model(&rts).
		Where("hrt.hotel_id = ?", hotelID).
		Order("hrt.id ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return rts, nil
}

func (d *DB) Schedule(ctx context.Context, id int64) (*models.TrainSchedule, error) {
	s := &models.TrainSchedule{ID: id}
	if ok, err := d.byID(ctx, s); !ok {
		return nil, err
	}
	return s, nil
}

// Stops returns the route of a schedule ordered by stop index.
func (d *DB) Stops(ctx context.Context, scheduleID int64) ([]models.ScheduleStop, error) {
	var stops []models.ScheduleStop
	err := d.Bun.NewSelect().
		Model(&stops).
		Where("ss.schedule_id = ?", scheduleID).
		Order("ss.stop_index ASC").
		Scan(ctx)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	return stops, nil
}

func (d *DB) SeatClass(ctx context.Context, id int64) (*models.SeatClass, error) {
	sc := &models.SeatClass{ID: id}
	if ok, err := d.byID(ctx, sc); !ok {
		return nil, err
	}
	return sc, nil
}

func (d *DB) Seat(ctx context.Context, id int64) (*models.Seat, error) {
	s := &models.Seat{ID: id}
	if ok, err := d.byID(ctx, s); !ok {
		return nil, err
	}
	return s, nil
}

func (d *DB) Dish(ctx context.Context, id int64) (*models.Dish, error) {
	dish := &models.Dish{ID: id}
	if ok, err := d.byID(ctx, dish); !ok {
		return nil, err
	}
	return dish, nil
}

func (d *DB) TakeawayDish(ctx context.Context, id int64) (*models.TakeawayDish, error) {
	td := &models.TakeawayDish{ID: id}
	if ok, err := d.byID(ctx, td); !ok {
		return nil, err
	}
	return td, nil
}

func (d *DB) TakeawayShop(ctx context.Context, id int64) (*models.TakeawayShop, error) {
	shop := &models.TakeawayShop{ID: id}
	if ok, err := d.byID(ctx, shop); !ok {
		return nil, err
	}
	return shop, nil
}

func (d *DB) PersonalInfo(ctx context.Context, uuid string) (*models.PersonalInfo, error) {
	pi := new(models.PersonalInfo)
	err := d.Bun.NewSelect().Model(pi).Where("pi.uuid = ?", uuid).Limit(1).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return pi, nil
}
