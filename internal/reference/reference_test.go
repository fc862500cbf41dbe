package reference_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/reference"
)

func TestLookups(t *testing.T) {
	db := dbtest.Open(t)
	w := dbtest.Seed(t, db, time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC))
	ref := reference.New(db)
	ctx := context.Background()

	rt, err := ref.RoomType(ctx, w.SingleRoom.ID)
	require.NoError(t, err)
	require.NotNil(t, rt)
	assert.Equal(t, w.Hotel.ID, rt.HotelID)
	assert.Equal(t, 1, rt.Capacity)
	assert.True(t, rt.Price.Equal(w.SingleRoom.Price))

	rts, err := ref.RoomTypes(ctx, w.Hotel.ID)
	require.NoError(t, err)
	require.Len(t, rts, 2)
	assert.Equal(t, w.SingleRoom.ID, rts[0].ID)
	assert.Equal(t, w.DoubleRoom.ID, rts[1].ID)

	stops, err := ref.Stops(ctx, w.Schedule.ID)
	require.NoError(t, err)
	require.Len(t, stops, 4)
	for i, s := range stops {
		assert.Equal(t, i, s.StopIndex)
	}

	pi, err := ref.PersonalInfo(ctx, w.AliceInfo.UUID)
	require.NoError(t, err)
	require.NotNil(t, pi)
	assert.Equal(t, w.Alice.ID, pi.UserID)
}

func TestLookupsMissingRowsAreNil(t *testing.T) {
	db := dbtest.Open(t)
	ref := reference.New(db)
	ctx := context.Background()

	h, err := ref.Hotel(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, h)

	seat, err := ref.Seat(ctx, 999)
	assert.NoError(t, err)
	assert.Nil(t, seat)

	pi, err := ref.PersonalInfo(ctx, "00000000-0000-0000-0000-000000000000")
	assert.NoError(t, err)
	assert.Nil(t, pi)

	stops, err := ref.Stops(ctx, 999)
	assert.NoError(t, err)
	assert.Empty(t, stops)
}
