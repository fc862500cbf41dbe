package order

import (
	"fmt"

	"ms-booking/internal/apperr"
	"ms-booking/internal/models"
)

func ToRow(o *Order) *models.Order {
	row := &models.Order{
		ID:                  o.ID,
		UUID:                o.UUID,
		Kind:                string(o.Kind),
		Status:              string(o.Status),
		UserID:              o.UserID,
		PersonalInfoID:      o.PersonalInfoID,
		UnitPrice:           o.UnitPrice,
		Amount:              o.Amount,
		BeginAt:             o.BeginAt,
		EndAt:               o.EndAt,
		CreatedAt:           o.CreatedAt,
		PayTransactionID:    o.PayTransactionID,
		RefundTransactionID: o.RefundTransactionID,
	}

	switch o.Kind {
	case KindTrain:
		t := o.Train
		row.ScheduleID = &t.ScheduleID
		row.SeatClassID = &t.SeatClassID
		row.SeatID = t.SeatID
		row.FromStationID = &t.FromStationID
		row.ToStationID = &t.ToStationID
		row.FromIndex = &t.FromIndex
		row.ToIndex = &t.ToIndex
	case KindHotel:
		h := o.Hotel
		row.HotelID = &h.HotelID
		row.RoomTypeID = &h.RoomTypeID
		row.BeginDate = &h.BeginDate
		row.EndDate = &h.EndDate
	case KindDish:
		d := o.Dish
		row.ParentOrderUUID = &d.ParentUUID
		row.ScheduleID = &d.ScheduleID
		row.DishID = &d.DishID
	case KindTakeaway:
		t := o.Takeaway
		row.ParentOrderUUID = &t.ParentUUID
		row.ScheduleID = &t.ScheduleID
		row.TakeawayDishID = &t.TakeawayDishID
	}
	return row
}

// FromRow rebuilds the aggregate. A row missing its kind's columns is a
// consistency failure.
func FromRow(row *models.Order) (*Order, error) {
	o := &Order{
		Header: Header{
			ID:                  row.ID,
			UUID:                row.UUID,
			Status:              Status(row.Status),
			UserID:              row.UserID,
			PersonalInfoID:      row.PersonalInfoID,
			UnitPrice:           row.UnitPrice,
			Amount:              row.Amount,
			BeginAt:             row.BeginAt.UTC(),
			EndAt:               row.EndAt.UTC(),
			CreatedAt:           row.CreatedAt.UTC(),
			PayTransactionID:    row.PayTransactionID,
			RefundTransactionID: row.RefundTransactionID,
		},
		Kind: Kind(row.Kind),
	}

	broken := func(field string) error {
		return fmt.Errorf("order %d (%s) has no %s: %w", row.ID, row.Kind, field, apperr.ErrConsistency)
	}

	switch o.Kind {
	case KindTrain:
		if row.ScheduleID == nil || row.SeatClassID == nil || row.FromIndex == nil || row.ToIndex == nil ||
			row.FromStationID == nil || row.ToStationID == nil {
			return nil, broken("train columns")
		}
		o.Train = &Train{
			ScheduleID:    *row.ScheduleID,
			SeatClassID:   *row.SeatClassID,
			SeatID:        row.SeatID,
			FromStationID: *row.FromStationID,
			ToStationID:   *row.ToStationID,
			FromIndex:     *row.FromIndex,
			ToIndex:       *row.ToIndex,
		}
	case KindHotel:
		if row.HotelID == nil || row.RoomTypeID == nil || row.BeginDate == nil || row.EndDate == nil {
			return nil, broken("hotel columns")
		}
		o.Hotel = &Hotel{
			HotelID:    *row.HotelID,
			RoomTypeID: *row.RoomTypeID,
			BeginDate:  row.BeginDate.UTC(),
			EndDate:    row.EndDate.UTC(),
		}
	case KindDish:
		if row.ParentOrderUUID == nil || row.ScheduleID == nil || row.DishID == nil {
			return nil, broken("dish columns")
		}
		o.Dish = &Dish{ParentUUID: *row.ParentOrderUUID, ScheduleID: *row.ScheduleID, DishID: *row.DishID}
	case KindTakeaway:
		if row.ParentOrderUUID == nil || row.ScheduleID == nil || row.TakeawayDishID == nil {
			return nil, broken("takeaway columns")
		}
		o.Takeaway = &Takeaway{ParentUUID: *row.ParentOrderUUID, ScheduleID: *row.ScheduleID, TakeawayDishID: *row.TakeawayDishID}
	default:
		return nil, broken("known kind")
	}
	return o, nil
}
