package db_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperr"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/order"
	"ms-booking/internal/order/db"
	"ms-booking/internal/utils"
)

func newTrainOrder(w *dbtest.World) *order.Order {
	return &order.Order{
		Header: order.Header{
			UUID:           utils.NewUUID(),
			Status:         order.StatusUnpaid,
			UserID:         w.Alice.ID,
			PersonalInfoID: w.AliceInfo.ID,
			UnitPrice:      decimal.NewFromInt(50),
			Amount:         1,
			BeginAt:        w.Departure,
			EndAt:          w.Departure.Add(4 * time.Hour),
			CreatedAt:      w.Departure.Add(-24 * time.Hour),
		},
		Kind: order.KindTrain,
		Train: &order.Train{
			ScheduleID:    w.Schedule.ID,
			SeatClassID:   w.Economy.ID,
			FromStationID: w.Stations[0].ID,
			ToStationID:   w.Stations[2].ID,
			FromIndex:     0,
			ToIndex:       2,
		},
	}
}

func TestCreateAndGetByUUID(t *testing.T) {
	bunDB := dbtest.Open(t)
	w := dbtest.Seed(t, bunDB, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	orders := db.New(bunDB)
	ctx := context.Background()

	o := newTrainOrder(w)
	require.NoError(t, orders.Create(ctx, o))
	assert.NotZero(t, o.ID)

	got, err := orders.GetByUUID(ctx, o.UUID)
	require.NoError(t, err)
	assert.Equal(t, o.ID, got.ID)
	assert.Equal(t, order.KindTrain, got.Kind)
	require.NotNil(t, got.Train)
	assert.Equal(t, 2, got.Train.ToIndex)
	assert.True(t, got.UnitPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.BeginAt.Equal(o.BeginAt))

	_, err = orders.GetByUUID(ctx, "non-existent")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestSaveStateAndListings(t *testing.T) {
	bunDB := dbtest.Open(t)
	w := dbtest.Seed(t, bunDB, time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC))
	orders := db.New(bunDB)
	ctx := context.Background()

	first, second := newTrainOrder(w), newTrainOrder(w)
	require.NoError(t, orders.Create(ctx, first))
	require.NoError(t, orders.Create(ctx, second))

	txnID := int64(42)
	first.PayTransactionID = &txnID
	require.NoError(t, first.SetStatus(order.StatusPaid))
	require.NoError(t, orders.SaveState(ctx, first))

	byTxn, err := orders.ListByTransaction(ctx, txnID)
	require.NoError(t, err)
	require.Len(t, byTxn, 1)
	assert.Equal(t, first.UUID, byTxn[0].UUID)
	assert.Equal(t, order.StatusPaid, byTxn[0].Status)

	paid, err := orders.ListByStatus(ctx, order.StatusPaid, order.StatusActive)
	require.NoError(t, err)
	assert.Len(t, paid, 1)

	mine, err := orders.ListByUser(ctx, w.Alice.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 2)

	id, err := orders.ParentID(ctx, second.UUID)
	require.NoError(t, err)
	assert.Equal(t, second.ID, id)

	ghost := newTrainOrder(w)
	ghost.ID = 9999
	assert.ErrorIs(t, orders.SaveState(ctx, ghost), apperr.ErrConsistency)
}
