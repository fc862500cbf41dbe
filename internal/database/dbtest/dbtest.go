// Package dbtest opens throwaway SQLite databases with the full booking
// schema and seeds a small reference world for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"golang.org/x/crypto/bcrypt"

	"ms-booking/internal/database"
	"ms-booking/internal/models"
	"ms-booking/internal/utils"
)

// Open returns an in-memory database. A single connection keeps every
// goroutine on the same memory database and serializes writers.
func Open(t testing.TB) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to connect to in-memory database: %v", err)
	}
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	if err := database.CreateSchema(context.Background(), db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// Password is the login password of every seeded user.
const Password = "secret-pass"

// World holds the ids of the seeded reference data.
type World struct {
	Alice, Bob         *models.User
	AliceInfo, BobInfo *models.PersonalInfo

	Hotel          *models.Hotel
	SingleRoom     *models.HotelRoomType // capacity 1, 100.00 per night
	DoubleRoom     *models.HotelRoomType // capacity 5, 80.00 per night
	OtherHotel     *models.Hotel
	OtherHotelRoom *models.HotelRoomType

	Stations []*models.Station // A, B, C, D
	Schedule *models.TrainSchedule
	Stops    []*models.ScheduleStop
	Economy  *models.SeatClass // capacity 2, 50.00
	First    *models.SeatClass // capacity 1, 120.00
	Seats    []*models.Seat    // two economy seats
	Dish     *models.Dish      // capacity 3, 15.00

	Shop         *models.TakeawayShop // at station B
	TakeawayDish *models.TakeawayDish // 20.00

	// Departure of the schedule from station A.
	Departure time.Time
}

// Seed inserts the reference world. departure fixes the train timetable;
// stops are two hours apart.
func Seed(t testing.TB, db bun.IDB, departure time.Time) *World {
	t.Helper()
	ctx := context.Background()
	w := &World{Departure: departure.UTC()}

	insert := func(model interface{}) {
		if _, err := db.NewInsert().Model(model).Exec(ctx); err != nil {
			t.Fatalf("seed %T: %v", model, err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(Password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	w.Alice = &models.User{Username: "alice", PasswordHash: string(hash), CreatedAt: departure}
	w.Bob = &models.User{Username: "bob", PasswordHash: string(hash), CreatedAt: departure}
	insert(w.Alice)
	insert(w.Bob)

	w.AliceInfo = &models.PersonalInfo{UUID: utils.NewUUID(), UserID: w.Alice.ID, Name: "Alice", IdentityNumber: "A-1", IsDefault: true}
	w.BobInfo = &models.PersonalInfo{UUID: utils.NewUUID(), UserID: w.Bob.ID, Name: "Bob", IdentityNumber: "B-1", IsDefault: true}
	insert(w.AliceInfo)
	insert(w.BobInfo)

	w.Hotel = &models.Hotel{Name: "Harbour View", City: "Portside"}
	w.OtherHotel = &models.Hotel{Name: "Hill Lodge", City: "Upland"}
	insert(w.Hotel)
	insert(w.OtherHotel)
	w.SingleRoom = &models.HotelRoomType{HotelID: w.Hotel.ID, Name: "single", Capacity: 1, Price: decimal.NewFromInt(100)}
	w.DoubleRoom = &models.HotelRoomType{HotelID: w.Hotel.ID, Name: "double", Capacity: 5, Price: decimal.NewFromInt(80)}
	w.OtherHotelRoom = &models.HotelRoomType{HotelID: w.OtherHotel.ID, Name: "suite", Capacity: 2, Price: decimal.NewFromInt(300)}
	insert(w.SingleRoom)
	insert(w.DoubleRoom)
	insert(w.OtherHotelRoom)

	for _, name := range []string{"A", "B", "C", "D"} {
		st := &models.Station{Name: name}
		insert(st)
		w.Stations = append(w.Stations, st)
	}

	w.Schedule = &models.TrainSchedule{TrainNumber: "G101", Departure: w.Departure}
	insert(w.Schedule)
	for i, st := range w.Stations {
		at := w.Departure.Add(time.Duration(i) * 2 * time.Hour)
		stop := &models.ScheduleStop{ScheduleID: w.Schedule.ID, StationID: st.ID, StopIndex: i, ArriveAt: at, DepartAt: at.Add(5 * time.Minute)}
		if i == 0 {
			stop.ArriveAt = at
			stop.DepartAt = at
		}
		insert(stop)
		w.Stops = append(w.Stops, stop)
	}

	w.Economy = &models.SeatClass{ScheduleID: w.Schedule.ID, Name: "economy", Capacity: 2, Price: decimal.NewFromInt(50)}
	w.First = &models.SeatClass{ScheduleID: w.Schedule.ID, Name: "first", Capacity: 1, Price: decimal.NewFromInt(120)}
	insert(w.Economy)
	insert(w.First)
	for i, loc := range []string{"A", "B"} {
		seat := &models.Seat{SeatClassID: w.Economy.ID, Carriage: 1, Row: i + 1, Location: loc}
		insert(seat)
		w.Seats = append(w.Seats, seat)
	}

	w.Dish = &models.Dish{ScheduleID: w.Schedule.ID, Name: "noodles", Price: decimal.NewFromInt(15), Capacity: 3}
	insert(w.Dish)

	w.Shop = &models.TakeawayShop{StationID: w.Stations[1].ID, Name: "Station Deli"}
	insert(w.Shop)
	w.TakeawayDish = &models.TakeawayDish{ShopID: w.Shop.ID, Name: "sandwich", Price: decimal.NewFromInt(20)}
	insert(w.TakeawayDish)

	return w
}

// Credit gives a user a paid recharge so purchases can be settled.
func Credit(t testing.TB, db bun.IDB, userID int64, amount int64) {
	t.Helper()
	now := time.Now().UTC()
	txn := &models.Transaction{
		UUID:       utils.NewUUID(),
		UserID:     userID,
		Kind:       models.TransactionRecharge,
		Status:     models.TransactionPaid,
		Amount:     decimal.NewFromInt(amount),
		CreatedAt:  now,
		FinishedAt: &now,
	}
	if _, err := db.NewInsert().Model(txn).Exec(context.Background()); err != nil {
		t.Fatalf("credit user %d: %v", userID, err)
	}
}
