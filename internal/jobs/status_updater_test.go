package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/utils"
)

type MockAdvancer struct {
	mock.Mock
}

func (m *MockAdvancer) AdvanceStatuses(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(now)
	return args.Int(0), args.Error(1)
}

func TestRunUsesClock(t *testing.T) {
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)
	adv := new(MockAdvancer)
	adv.On("AdvanceStatuses", now).Return(3, nil).Once()

	u := NewStatusUpdater(adv, utils.NewFixedClock(now), nil)
	n, err := u.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	adv.AssertExpectations(t)
}

func TestRunReportsPartialProgress(t *testing.T) {
	adv := new(MockAdvancer)
	adv.On("AdvanceStatuses", mock.Anything).Return(1, errors.New("db gone"))

	u := NewStatusUpdater(adv, nil, nil)
	n, err := u.Run(context.Background())
	assert.EqualError(t, err, "db gone")
	assert.Equal(t, 1, n)
}

func TestStartRunsOnSchedule(t *testing.T) {
	adv := new(MockAdvancer)
	ran := make(chan struct{}, 4)
	adv.On("AdvanceStatuses", mock.Anything).Return(0, nil).Run(func(mock.Arguments) {
		ran <- struct{}{}
	})

	u := NewStatusUpdater(adv, nil, nil)
	require.NoError(t, u.Start("@every 1s"))
	assert.Error(t, u.Start("@every 1s"), "second start is refused")

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Fatal("status pass never ran")
	}
	u.Stop()
	u.Stop()
}

func TestStartRejectsBadSpec(t *testing.T) {
	u := NewStatusUpdater(new(MockAdvancer), nil, nil)
	assert.Error(t, u.Start("every minute please"))
}
