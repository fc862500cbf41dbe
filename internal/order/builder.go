package order

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
	"ms-booking/internal/reference"
	"ms-booking/internal/utils"
)

// Item is one requested order as it arrives from a client. Which fields
// apply depends on Kind. A dish or takeaway item names its train order
// either by position in the same request (ParentIndex) or by the UUID of
// an order placed earlier (ParentOrderID).
type Item struct {
	Kind           Kind   `json:"type"`
	PersonalInfoID string `json:"personal_info_id"`
	Amount         int    `json:"amount,omitempty"`

	ScheduleID    int64  `json:"schedule_id,omitempty"`
	SeatClassID   int64  `json:"seat_class_id,omitempty"`
	SeatID        *int64 `json:"seat_id,omitempty"`
	FromStationID int64  `json:"from_station_id,omitempty"`
	ToStationID   int64  `json:"to_station_id,omitempty"`

	HotelID    int64  `json:"hotel_id,omitempty"`
	RoomTypeID int64  `json:"room_type_id,omitempty"`
	BeginDate  string `json:"begin_date,omitempty"`
	EndDate    string `json:"end_date,omitempty"`

	ParentIndex    *int   `json:"parent_index,omitempty"`
	ParentOrderID  string `json:"parent_order_id,omitempty"`
	DishID         int64  `json:"dish_id,omitempty"`
	TakeawayDishID int64  `json:"takeaway_dish_id,omitempty"`
}

type ParentFinder interface {
	GetByUUID(ctx context.Context, uuid string) (*Order, error)
}

const DefaultMaxNights = 7

// Builder turns request items into validated, unpaid orders.
type Builder struct {
	Ref       reference.Lookup
	Parents   ParentFinder
	MaxNights int
}

func NewBuilder(ref reference.Lookup, parents ParentFinder, maxNights int) *Builder {
	if maxNights <= 0 {
		maxNights = DefaultMaxNights
	}
	return &Builder{Ref: ref, Parents: parents, MaxNights: maxNights}
}

// Build validates every item and fails on the first invalid one.
func (b *Builder) Build(ctx context.Context, userID int64, items []Item, now time.Time) ([]*Order, error) {
	if len(items) == 0 {
		return nil, apperr.ErrEmptyOrderList
	}

	built := make([]*Order, 0, len(items))
	for i, it := range items {
		o, err := b.build(ctx, userID, it, built, now)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := o.Validate(); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		built = append(built, o)
	}
	return built, nil
}

func (b *Builder) build(ctx context.Context, userID int64, it Item, built []*Order, now time.Time) (*Order, error) {
	pi, err := b.Ref.PersonalInfo(ctx, it.PersonalInfoID)
	if err != nil {
		return nil, err
	}
	if pi == nil || pi.UserID != userID {
		return nil, fmt.Errorf("personal info %q: %w", it.PersonalInfoID, apperr.ErrUnknownResource)
	}

	amount := it.Amount
	if amount == 0 {
		amount = 1
	}
	if amount < 0 {
		return nil, fmt.Errorf("amount %d: %w", amount, apperr.ErrInvalidAmount)
	}

	o := &Order{
		Header: Header{
			UUID:           utils.NewUUID(),
			Status:         StatusUnpaid,
			UserID:         userID,
			PersonalInfoID: pi.ID,
			Amount:         amount,
			CreatedAt:      now,
		},
		Kind: it.Kind,
	}

	switch it.Kind {
	case KindTrain:
		err = b.train(ctx, o, it, now)
	case KindHotel:
		err = b.hotel(ctx, o, it, now)
	case KindDish:
		err = b.dish(ctx, o, it, built)
	case KindTakeaway:
		err = b.takeaway(ctx, o, it, built)
	default:
		err = fmt.Errorf("order type %q: %w", it.Kind, apperr.ErrUnknownResource)
	}
	if err != nil {
		return nil, err
	}
	return o, nil
}

func (b *Builder) train(ctx context.Context, o *Order, it Item, now time.Time) error {
	sched, err := b.Ref.Schedule(ctx, it.ScheduleID)
	if err != nil {
		return err
	}
	if sched == nil {
		return fmt.Errorf("schedule %d: %w", it.ScheduleID, apperr.ErrUnknownResource)
	}

	sc, err := b.Ref.SeatClass(ctx, it.SeatClassID)
	if err != nil {
		return err
	}
	if sc == nil || sc.ScheduleID != sched.ID {
		return fmt.Errorf("seat class %d on schedule %d: %w", it.SeatClassID, sched.ID, apperr.ErrUnknownResource)
	}

	if it.SeatID != nil {
		seat, err := b.Ref.Seat(ctx, *it.SeatID)
		if err != nil {
			return err
		}
		if seat == nil || seat.SeatClassID != sc.ID {
			return fmt.Errorf("seat %d in class %d: %w", *it.SeatID, sc.ID, apperr.ErrUnknownResource)
		}
	}

	stops, err := b.Ref.Stops(ctx, sched.ID)
	if err != nil {
		return err
	}
	from, to := stopIndex(stops, it.FromStationID), stopIndex(stops, it.ToStationID)
	if from < 0 || to < 0 {
		return fmt.Errorf("stations %d -> %d not on schedule %d: %w", it.FromStationID, it.ToStationID, sched.ID, apperr.ErrUnknownResource)
	}
	if from >= to {
		return fmt.Errorf("station %d does not precede %d: %w", it.FromStationID, it.ToStationID, apperr.ErrInvalidDateRange)
	}
	if !now.Before(stops[from].DepartAt) {
		return fmt.Errorf("train %s has left station %d: %w", sched.TrainNumber, it.FromStationID, apperr.ErrInvalidDateRange)
	}

	o.UnitPrice = sc.Price
	o.BeginAt = stops[from].DepartAt.UTC()
	o.EndAt = stops[to].ArriveAt.UTC()
	o.Train = &Train{
		ScheduleID:    sched.ID,
		SeatClassID:   sc.ID,
		SeatID:        it.SeatID,
		FromStationID: it.FromStationID,
		ToStationID:   it.ToStationID,
		FromIndex:     stops[from].StopIndex,
		ToIndex:       stops[to].StopIndex,
	}
	return nil
}

func (b *Builder) hotel(ctx context.Context, o *Order, it Item, now time.Time) error {
	h, err := b.Ref.Hotel(ctx, it.HotelID)
	if err != nil {
		return err
	}
	if h == nil {
		return fmt.Errorf("hotel %d: %w", it.HotelID, apperr.ErrUnknownResource)
	}

	rt, err := b.Ref.RoomType(ctx, it.RoomTypeID)
	if err != nil {
		return err
	}
	if rt == nil || rt.HotelID != h.ID {
		return fmt.Errorf("room type %d in hotel %d: %w", it.RoomTypeID, h.ID, apperr.ErrUnknownResource)
	}

	begin, err := utils.ParseDate(it.BeginDate)
	if err != nil {
		return fmt.Errorf("begin date %q: %w", it.BeginDate, apperr.ErrInvalidDateRange)
	}
	end, err := utils.ParseDate(it.EndDate)
	if err != nil {
		return fmt.Errorf("end date %q: %w", it.EndDate, apperr.ErrInvalidDateRange)
	}
	if !begin.Before(end) {
		return fmt.Errorf("stay %s..%s: %w", it.BeginDate, it.EndDate, apperr.ErrInvalidDateRange)
	}
	if begin.Before(utils.Date(now)) {
		return fmt.Errorf("stay begins in the past: %w", apperr.ErrInvalidDateRange)
	}
	nights := int(end.Sub(begin).Hours() / 24)
	if nights > b.MaxNights {
		return fmt.Errorf("stay of %d nights exceeds %d: %w", nights, b.MaxNights, apperr.ErrInvalidDateRange)
	}

	o.UnitPrice = rt.Price.Mul(decimal.NewFromInt(int64(nights)))
	o.BeginAt = begin
	o.EndAt = end
	o.Hotel = &Hotel{HotelID: h.ID, RoomTypeID: rt.ID, BeginDate: begin, EndDate: end}
	return nil
}

func (b *Builder) dish(ctx context.Context, o *Order, it Item, built []*Order) error {
	parent, err := b.parent(ctx, o.UserID, it, built)
	if err != nil {
		return err
	}

	dish, err := b.Ref.Dish(ctx, it.DishID)
	if err != nil {
		return err
	}
	if dish == nil || dish.ScheduleID != parent.Train.ScheduleID {
		return fmt.Errorf("dish %d on schedule %d: %w", it.DishID, parent.Train.ScheduleID, apperr.ErrUnknownResource)
	}

	o.UnitPrice = dish.Price
	o.BeginAt = parent.BeginAt
	o.EndAt = parent.EndAt
	o.Dish = &Dish{ParentUUID: parent.UUID, ScheduleID: dish.ScheduleID, DishID: dish.ID}
	return nil
}

func (b *Builder) takeaway(ctx context.Context, o *Order, it Item, built []*Order) error {
	parent, err := b.parent(ctx, o.UserID, it, built)
	if err != nil {
		return err
	}

	td, err := b.Ref.TakeawayDish(ctx, it.TakeawayDishID)
	if err != nil {
		return err
	}
	if td == nil {
		return fmt.Errorf("takeaway dish %d: %w", it.TakeawayDishID, apperr.ErrUnknownResource)
	}
	shop, err := b.Ref.TakeawayShop(ctx, td.ShopID)
	if err != nil {
		return err
	}
	if shop == nil {
		return fmt.Errorf("takeaway shop %d: %w", td.ShopID, apperr.ErrUnknownResource)
	}

	stops, err := b.Ref.Stops(ctx, parent.Train.ScheduleID)
	if err != nil {
		return err
	}
	var at *models.ScheduleStop
	for i := range stops {
		s := &stops[i]
		if s.StationID == shop.StationID && s.StopIndex >= parent.Train.FromIndex && s.StopIndex <= parent.Train.ToIndex {
			at = s
			break
		}
	}
	if at == nil {
		return fmt.Errorf("shop %d is not on the journey of order %s: %w", shop.ID, parent.UUID, apperr.ErrUnknownResource)
	}

	o.UnitPrice = td.Price
	o.BeginAt = at.ArriveAt.UTC()
	o.EndAt = at.ArriveAt.UTC()
	o.Takeaway = &Takeaway{ParentUUID: parent.UUID, ScheduleID: parent.Train.ScheduleID, TakeawayDishID: td.ID}
	return nil
}

// parent resolves the train order a dish or takeaway item depends on.
func (b *Builder) parent(ctx context.Context, userID int64, it Item, built []*Order) (*Order, error) {
	var parent *Order
	switch {
	case it.ParentIndex != nil && it.ParentOrderID == "":
		i := *it.ParentIndex
		if i < 0 || i >= len(built) {
			return nil, fmt.Errorf("parent index %d: %w", i, apperr.ErrUnknownResource)
		}
		parent = built[i]
	case it.ParentIndex == nil && it.ParentOrderID != "":
		if b.Parents == nil {
			return nil, fmt.Errorf("parent order %s: %w", it.ParentOrderID, apperr.ErrUnknownResource)
		}
		p, err := b.Parents.GetByUUID(ctx, it.ParentOrderID)
		if err != nil && apperr.KindOf(err) != apperr.KindNotFound {
			return nil, err
		}
		if p == nil || p.UserID != userID || p.Status.Terminal() || p.Status == StatusFailed {
			return nil, fmt.Errorf("parent order %s: %w", it.ParentOrderID, apperr.ErrUnknownResource)
		}
		parent = p
	default:
		return nil, fmt.Errorf("exactly one of parent_index and parent_order_id is required: %w", apperr.ErrUnknownResource)
	}

	if parent.Kind != KindTrain || parent.Train == nil {
		return nil, fmt.Errorf("parent order %s is not a train order: %w", parent.UUID, apperr.ErrUnknownResource)
	}
	return parent, nil
}

func stopIndex(stops []models.ScheduleStop, stationID int64) int {
	for i, s := range stops {
		if s.StationID == stationID {
			return i
		}
	}
	return -1
}
