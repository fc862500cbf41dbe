package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"ms-booking/internal/apperr"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/order"
	"ms-booking/internal/payguard"
	"ms-booking/internal/utils"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Submit(ctx context.Context, call booking.Call, items []order.Item, atomic bool) (*booking.TransactionInfo, error) {
	args := m.Called(call, items, atomic)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.TransactionInfo), args.Error(1)
}

func (m *MockService) Pay(ctx context.Context, call booking.Call, transactionID string, creds payguard.Credentials) (*booking.SettleResult, error) {
	args := m.Called(call, transactionID, creds)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.SettleResult), args.Error(1)
}

func (m *MockService) CancelOrder(ctx context.Context, call booking.Call, orderID string) (*booking.OrderInfo, error) {
	args := m.Called(call, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.OrderInfo), args.Error(1)
}

func (m *MockService) Balance(ctx context.Context, call booking.Call) (decimal.Decimal, error) {
	args := m.Called(call)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockService) History(ctx context.Context, call booking.Call) ([]booking.TransactionInfo, error) {
	args := m.Called(call)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.TransactionInfo), args.Error(1)
}

func (m *MockService) Recharge(ctx context.Context, call booking.Call, amount decimal.Decimal) (*booking.TransactionInfo, error) {
	args := m.Called(call, amount.String())
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.TransactionInfo), args.Error(1)
}

func (m *MockService) SetPaymentPassword(ctx context.Context, call booking.Call, loginPassword, paymentPassword string) error {
	return m.Called(call, loginPassword, paymentPassword).Error(0)
}

func (m *MockService) Availability(ctx context.Context, hotelID int64, begin, end time.Time) ([]booking.RoomAvailability, error) {
	args := m.Called(hotelID, begin, end)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]booking.RoomAvailability), args.Error(1)
}

var alice = booking.Call{Session: "tok-alice"}

func newRouter(svc Service) http.Handler {
	r := chi.NewRouter()
	NewHandler(svc, nil).RegisterRoutes(r)
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, utils.APIResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer tok-alice")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp utils.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func TestSubmitOrders(t *testing.T) {
	svc := new(MockService)
	items := []order.Item{{Kind: order.KindHotel, PersonalInfoID: "pi", HotelID: 1, RoomTypeID: 2, BeginDate: "2025-06-05", EndDate: "2025-06-06"}}
	svc.On("Submit", alice, items, true).Return(&booking.TransactionInfo{
		TransactionID: "txn-1",
		Status:        "unpaid",
		Amount:        decimal.RequireFromString("-100.00"),
	}, nil).Once()

	rec, resp := do(t, newRouter(svc), http.MethodPost, "/api/orders", map[string]interface{}{"orders": items})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "txn-1", data["transaction_id"])
	assert.Equal(t, "-100", data["amount"], "money is a decimal string")
	svc.AssertExpectations(t)
}

func TestSubmitOrdersNonAtomic(t *testing.T) {
	svc := new(MockService)
	svc.On("Submit", alice, mock.Anything, false).Return(&booking.TransactionInfo{TransactionID: "txn-2"}, nil).Once()

	rec, _ := do(t, newRouter(svc), http.MethodPost, "/api/orders", map[string]interface{}{
		"orders": []order.Item{{Kind: order.KindTrain}},
		"atomic": false,
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestSubmitOrdersErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{apperr.ErrInvalidSession, http.StatusUnauthorized, "invalid session"},
		{fmt.Errorf("item 0: %w", apperr.ErrInvalidDateRange), http.StatusBadRequest, "item 0: invalid date range"},
		{fmt.Errorf("db down: %w", apperr.ErrConsistency), http.StatusInternalServerError, "internal server error"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			svc := new(MockService)
			svc.On("Submit", alice, mock.Anything, true).Return(nil, tt.err)

			rec, resp := do(t, newRouter(svc), http.MethodPost, "/api/orders", map[string]interface{}{"orders": []order.Item{}})
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.msg, resp.Error)
		})
	}
}

func TestSubmitOrdersBadBody(t *testing.T) {
	svc := new(MockService)
	req := httptest.NewRequest(http.MethodPost, "/api/orders", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything, mock.Anything)
}

func TestPay(t *testing.T) {
	svc := new(MockService)
	creds := payguard.Credentials{PaymentPassword: "123456"}
	svc.On("Pay", alice, "txn-1", creds).Return(&booking.SettleResult{TransactionID: "txn-1", Status: "paid"}, nil).Once()

	rec, resp := do(t, newRouter(svc), http.MethodPost, "/api/transactions/txn-1/pay", creds)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", resp.Data.(map[string]interface{})["status"])
}

func TestPayAtomicFailureReportsOutcomes(t *testing.T) {
	svc := new(MockService)
	res := &booking.SettleResult{
		TransactionID: "txn-1",
		Status:        "failed",
		Outcomes:      []booking.Outcome{{OrderID: "o1", Kind: order.KindHotel, Status: order.StatusFailed, Error: "capacity exceeded"}},
	}
	svc.On("Pay", alice, "txn-1", mock.Anything).Return(res, fmt.Errorf("order o1: %w", apperr.ErrCapacityExceeded))

	rec, resp := do(t, newRouter(svc), http.MethodPost, "/api/transactions/txn-1/pay", payguard.Credentials{UserPassword: "x"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "failed", resp.Data.(map[string]interface{})["status"])
}

func TestPayAuthorizationErrors(t *testing.T) {
	for err, status := range map[error]int{
		apperr.ErrUnauthorized:     http.StatusUnauthorized,
		apperr.ErrTooManyAttempts:  http.StatusTooManyRequests,
		apperr.ErrSettleInProgress: http.StatusConflict,
		apperr.ErrNotFound:         http.StatusNotFound,
	} {
		svc := new(MockService)
		svc.On("Pay", alice, "txn-1", mock.Anything).Return(nil, err)
		rec, _ := do(t, newRouter(svc), http.MethodPost, "/api/transactions/txn-1/pay", payguard.Credentials{UserPassword: "x"})
		assert.Equal(t, status, rec.Code, err.Error())
	}
}

func TestCancelOrder(t *testing.T) {
	svc := new(MockService)
	svc.On("CancelOrder", alice, "o-1").Return(&booking.OrderInfo{OrderID: "o-1", Status: order.StatusCancelled}, nil)
	svc.On("CancelOrder", alice, "o-2").Return(nil, apperr.ErrNotRefundable)

	rec, resp := do(t, newRouter(svc), http.MethodPost, "/api/orders/o-1/cancel", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", resp.Data.(map[string]interface{})["status"])

	rec, _ = do(t, newRouter(svc), http.MethodPost, "/api/orders/o-2/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBalanceHistoryRecharge(t *testing.T) {
	svc := new(MockService)
	svc.On("Balance", alice).Return(decimal.RequireFromString("12.5"), nil)
	svc.On("History", alice).Return([]booking.TransactionInfo{{TransactionID: "a"}, {TransactionID: "b"}}, nil)
	svc.On("Recharge", alice, "20").Return(&booking.TransactionInfo{TransactionID: "r", Kind: "recharge"}, nil)
	h := newRouter(svc)

	rec, resp := do(t, h, http.MethodGet, "/api/balance", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "12.5", resp.Data.(map[string]interface{})["balance"])

	rec, resp = do(t, h, http.MethodGet, "/api/transactions", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 2)

	rec, _ = do(t, h, http.MethodPost, "/api/recharge", map[string]string{"amount": "20"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestSetPaymentPassword(t *testing.T) {
	svc := new(MockService)
	svc.On("SetPaymentPassword", alice, "login", "123456").Return(nil)
	svc.On("SetPaymentPassword", alice, "login", "12").Return(apperr.ErrInvalidPaymentPassword)
	h := newRouter(svc)

	rec, _ := do(t, h, http.MethodPut, "/api/payment-password", map[string]string{"password": "login", "payment_password": "123456"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, resp := do(t, h, http.MethodPut, "/api/payment-password", map[string]string{"password": "login", "payment_password": "12"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, apperr.ErrInvalidPaymentPassword.Error(), resp.Error)
}

func TestAvailability(t *testing.T) {
	svc := new(MockService)
	begin := time.Date(2025, 6, 5, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 6, 7, 0, 0, 0, 0, time.UTC)
	svc.On("Availability", int64(3), begin, end).Return([]booking.RoomAvailability{{RoomTypeID: 1, Free: 2}}, nil)
	h := newRouter(svc)

	rec, resp := do(t, h, http.MethodGet, "/api/hotels/3/availability?begin=2025-06-05&end=2025-06-07", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, resp.Data, 1)

	rec, _ = do(t, h, http.MethodGet, "/api/hotels/3/availability?begin=june&end=2025-06-07", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	svc := new(MockService)
	svc.On("CancelOrder", alice, "o-9").Return(nil, apperr.ErrNotFound)

	r := chi.NewRouter()
	r.Use(RequestLogger(logger.New(&buf)))
	NewHandler(svc, nil).RegisterRoutes(r)

	rec, _ := do(t, r, http.MethodPost, "/api/orders/o-9/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var entry logger.LogEntry
	scanner := bufio.NewScanner(&buf)
	require.True(t, scanner.Scan())
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
	assert.Equal(t, "API", entry.Category)
	assert.Contains(t, entry.Message, "/api/orders/o-9/cancel")
	assert.Contains(t, entry.Message, "404")
}
