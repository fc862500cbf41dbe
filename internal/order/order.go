package order

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/apperr"
)

type Kind string

const (
	KindTrain    Kind = "train"
	KindHotel    Kind = "hotel"
	KindDish     Kind = "dish"
	KindTakeaway Kind = "takeaway"
)

// Rank orders kinds for reservation: trains first so that dish and
// takeaway orders can see their parent already held.
func (k Kind) Rank() int {
	switch k {
	case KindTrain:
		return 0
	case KindHotel:
		return 1
	case KindDish:
		return 2
	case KindTakeaway:
		return 3
	default:
		return 4
	}
}

func (k Kind) Valid() bool {
	return k.Rank() < 4
}

type Status string

const (
	StatusUnpaid    Status = "unpaid"
	StatusPaid      Status = "paid"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

var transitions = map[Status][]Status{
	StatusUnpaid: {StatusPaid, StatusCancelled},
	StatusPaid:   {StatusActive, StatusCompleted, StatusCancelled, StatusFailed},
	StatusActive: {StatusCompleted},
	StatusFailed: {StatusRefunded},
}

func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusRefunded || s == StatusCancelled
}

// Fulfilled orders have begun or finished being consumed.
func (s Status) Fulfilled() bool {
	return s == StatusActive || s == StatusCompleted
}

// Header carries the fields shared by every kind.
type Header struct {
	ID                  int64
	UUID                string
	Status              Status
	UserID              int64
	PersonalInfoID      int64
	UnitPrice           decimal.Decimal
	Amount              int
	BeginAt             time.Time
	EndAt               time.Time
	CreatedAt           time.Time
	PayTransactionID    *int64
	RefundTransactionID *int64
}

type Train struct {
	ScheduleID    int64
	SeatClassID   int64
	SeatID        *int64
	FromStationID int64
	ToStationID   int64
	FromIndex     int
	ToIndex       int
}

// Hotel covers the nights [BeginDate, EndDate).
type Hotel struct {
	HotelID    int64
	RoomTypeID int64
	BeginDate  time.Time
	EndDate    time.Time
}

type Dish struct {
	ParentUUID string
	ScheduleID int64
	DishID     int64
}

type Takeaway struct {
	ParentUUID     string
	ScheduleID     int64
	TakeawayDishID int64
}

// Order is a tagged union: exactly the payload matching Kind is non-nil.
type Order struct {
	Header
	Kind     Kind
	Train    *Train
	Hotel    *Hotel
	Dish     *Dish
	Takeaway *Takeaway
}

func (o *Order) Total() decimal.Decimal {
	return o.UnitPrice.Mul(decimal.NewFromInt(int64(o.Amount)))
}

// ParentUUID is the train order a dish or takeaway order rides on.
func (o *Order) ParentUUID() string {
	switch o.Kind {
	case KindDish:
		return o.Dish.ParentUUID
	case KindTakeaway:
		return o.Takeaway.ParentUUID
	}
	return ""
}

// ResourceID identifies the contended inventory row of the order.
func (o *Order) ResourceID() int64 {
	switch o.Kind {
	case KindTrain:
		return o.Train.SeatClassID
	case KindHotel:
		return o.Hotel.RoomTypeID
	case KindDish:
		return o.Dish.DishID
	case KindTakeaway:
		return o.Takeaway.TakeawayDishID
	}
	return 0
}

func (o *Order) SetStatus(to Status) error {
	if !CanTransition(o.Status, to) {
		return fmt.Errorf("order %s %s -> %s: %w", o.UUID, o.Status, to, apperr.ErrInvalidStatusTransition)
	}
	o.Status = to
	return nil
}

// Advance moves a paid or active order along its active window.
// It reports whether the status changed.
func (o *Order) Advance(now time.Time) bool {
	before := o.Status
	if o.Status == StatusPaid && !now.Before(o.BeginAt) {
		o.Status = StatusActive
	}
	if o.Status == StatusActive && !now.Before(o.EndAt) {
		o.Status = StatusCompleted
	}
	return o.Status != before
}

// Validate checks the structural invariants every stored order satisfies.
func (o *Order) Validate() error {
	if !o.Kind.Valid() {
		return fmt.Errorf("order kind %q: %w", o.Kind, apperr.ErrUnknownResource)
	}
	if o.Amount <= 0 {
		return fmt.Errorf("order amount %d: %w", o.Amount, apperr.ErrInvalidAmount)
	}
	if o.UnitPrice.IsNegative() {
		return fmt.Errorf("order price %s: %w", o.UnitPrice, apperr.ErrInvalidAmount)
	}
	if o.EndAt.Before(o.BeginAt) {
		return fmt.Errorf("order window ends before it begins: %w", apperr.ErrInvalidDateRange)
	}

	payloads := 0
	for _, set := range []bool{o.Train != nil, o.Hotel != nil, o.Dish != nil, o.Takeaway != nil} {
		if set {
			payloads++
		}
	}
	matches := (o.Kind == KindTrain && o.Train != nil) ||
		(o.Kind == KindHotel && o.Hotel != nil) ||
		(o.Kind == KindDish && o.Dish != nil) ||
		(o.Kind == KindTakeaway && o.Takeaway != nil)
	if payloads != 1 || !matches {
		return fmt.Errorf("order %s payload does not match kind %s: %w", o.UUID, o.Kind, apperr.ErrUnknownResource)
	}

	switch o.Kind {
	case KindTrain:
		if o.Train.FromIndex >= o.Train.ToIndex {
			return fmt.Errorf("train segment %d..%d: %w", o.Train.FromIndex, o.Train.ToIndex, apperr.ErrInvalidDateRange)
		}
		if o.Train.SeatID != nil && o.Amount != 1 {
			return fmt.Errorf("a concrete seat holds one passenger: %w", apperr.ErrInvalidAmount)
		}
	case KindHotel:
		if !o.Hotel.BeginDate.Before(o.Hotel.EndDate) {
			return fmt.Errorf("hotel stay must end after it begins: %w", apperr.ErrInvalidDateRange)
		}
	}
	return nil
}

// Nights is the number of nights a hotel order covers.
func (o *Order) Nights() int {
	if o.Hotel == nil {
		return 0
	}
	return int(o.Hotel.EndDate.Sub(o.Hotel.BeginDate).Hours() / 24)
}
