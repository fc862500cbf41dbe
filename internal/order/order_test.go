package order

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperr"
)

func hotelOrder() *Order {
	begin := time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
	end := begin.AddDate(0, 0, 2)
	return &Order{
		Header: Header{
			UUID:      "o-1",
			Status:    StatusUnpaid,
			UnitPrice: decimal.NewFromInt(200),
			Amount:    2,
			BeginAt:   begin,
			EndAt:     end,
		},
		Kind:  KindHotel,
		Hotel: &Hotel{HotelID: 1, RoomTypeID: 2, BeginDate: begin, EndDate: end},
	}
}

func TestStatusTransitions(t *testing.T) {
	allowed := [][2]Status{
		{StatusUnpaid, StatusPaid},
		{StatusUnpaid, StatusCancelled},
		{StatusPaid, StatusActive},
		{StatusPaid, StatusCompleted},
		{StatusPaid, StatusCancelled},
		{StatusPaid, StatusFailed},
		{StatusActive, StatusCompleted},
		{StatusFailed, StatusRefunded},
	}
	for _, tr := range allowed {
		assert.True(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	rejected := [][2]Status{
		{StatusUnpaid, StatusActive},
		{StatusUnpaid, StatusRefunded},
		{StatusActive, StatusCancelled},
		{StatusCompleted, StatusRefunded},
		{StatusRefunded, StatusPaid},
		{StatusCancelled, StatusPaid},
		{StatusFailed, StatusPaid},
	}
	for _, tr := range rejected {
		assert.False(t, CanTransition(tr[0], tr[1]), "%s -> %s", tr[0], tr[1])
	}

	for _, s := range []Status{StatusCompleted, StatusRefunded, StatusCancelled} {
		assert.True(t, s.Terminal())
	}
	assert.False(t, StatusFailed.Terminal())
}

func TestSetStatusRejectsInvalidTransition(t *testing.T) {
	o := hotelOrder()
	require.NoError(t, o.SetStatus(StatusPaid))

	err := o.SetStatus(StatusRefunded)
	assert.True(t, errors.Is(err, apperr.ErrInvalidStatusTransition))
	assert.Equal(t, StatusPaid, o.Status)
}

func TestTotal(t *testing.T) {
	o := hotelOrder()
	assert.True(t, o.Total().Equal(decimal.NewFromInt(400)))
	assert.Equal(t, 2, o.Nights())
}

func TestAdvance(t *testing.T) {
	o := hotelOrder()
	o.Status = StatusPaid

	assert.False(t, o.Advance(o.BeginAt.Add(-time.Hour)))
	assert.Equal(t, StatusPaid, o.Status)

	assert.True(t, o.Advance(o.BeginAt))
	assert.Equal(t, StatusActive, o.Status)

	assert.True(t, o.Advance(o.EndAt))
	assert.Equal(t, StatusCompleted, o.Status)

	fresh := hotelOrder()
	fresh.Status = StatusPaid
	fresh.Advance(fresh.EndAt.Add(time.Hour))
	assert.Equal(t, StatusCompleted, fresh.Status, "a paid order past its window completes directly")

	unpaid := hotelOrder()
	assert.False(t, unpaid.Advance(unpaid.EndAt))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, hotelOrder().Validate())

	o := hotelOrder()
	o.Amount = 0
	assert.ErrorIs(t, o.Validate(), apperr.ErrInvalidAmount)

	o = hotelOrder()
	o.UnitPrice = decimal.NewFromInt(-1)
	assert.ErrorIs(t, o.Validate(), apperr.ErrInvalidAmount)

	o = hotelOrder()
	o.Hotel.EndDate = o.Hotel.BeginDate
	assert.ErrorIs(t, o.Validate(), apperr.ErrInvalidDateRange)

	o = hotelOrder()
	o.Train = &Train{FromIndex: 0, ToIndex: 1}
	assert.ErrorIs(t, o.Validate(), apperr.ErrUnknownResource, "two payloads")

	o = hotelOrder()
	o.Kind = KindDish
	assert.ErrorIs(t, o.Validate(), apperr.ErrUnknownResource, "payload does not match kind")

	seat := int64(3)
	train := &Order{
		Header: Header{Status: StatusUnpaid, UnitPrice: decimal.NewFromInt(50), Amount: 2},
		Kind:   KindTrain,
		Train:  &Train{SeatID: &seat, FromIndex: 0, ToIndex: 2},
	}
	assert.ErrorIs(t, train.Validate(), apperr.ErrInvalidAmount, "concrete seat holds one passenger")
}

func TestRowConversion(t *testing.T) {
	o := hotelOrder()
	o.ID = 7
	txn := int64(4)
	o.PayTransactionID = &txn

	back, err := FromRow(ToRow(o))
	require.NoError(t, err)
	assert.Equal(t, o.Header.ID, back.ID)
	assert.Equal(t, KindHotel, back.Kind)
	require.NotNil(t, back.Hotel)
	assert.Equal(t, o.Hotel.RoomTypeID, back.Hotel.RoomTypeID)
	assert.Nil(t, back.Train)
	assert.Equal(t, &txn, back.PayTransactionID)

	row := ToRow(o)
	row.RoomTypeID = nil
	_, err = FromRow(row)
	assert.ErrorIs(t, err, apperr.ErrConsistency)
}
