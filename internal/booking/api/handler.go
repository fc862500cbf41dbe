package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/booking"
	"ms-booking/internal/logger"
	"ms-booking/internal/order"
	"ms-booking/internal/payguard"
	"ms-booking/internal/utils"
)

// Service is the part of the booking service exposed over HTTP.
type Service interface {
	Submit(ctx context.Context, call booking.Call, items []order.Item, atomic bool) (*booking.TransactionInfo, error)
	Pay(ctx context.Context, call booking.Call, transactionID string, creds payguard.Credentials) (*booking.SettleResult, error)
	CancelOrder(ctx context.Context, call booking.Call, orderID string) (*booking.OrderInfo, error)
	Balance(ctx context.Context, call booking.Call) (decimal.Decimal, error)
	History(ctx context.Context, call booking.Call) ([]booking.TransactionInfo, error)
	Recharge(ctx context.Context, call booking.Call, amount decimal.Decimal) (*booking.TransactionInfo, error)
	SetPaymentPassword(ctx context.Context, call booking.Call, loginPassword, paymentPassword string) error
	Availability(ctx context.Context, hotelID int64, begin, end time.Time) ([]booking.RoomAvailability, error)
}

type Handler struct {
	Service Service
	Logger  *logger.Logger
}

func NewHandler(svc Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Service: svc, Logger: log}
}

// RegisterRoutes mounts the booking API. Session tokens are read by
// auth.Middleware; handlers that need a user resolve it through the service.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Use(auth.Middleware)

		r.Post("/orders", h.SubmitOrders)
		r.Post("/orders/{orderId}/cancel", h.CancelOrder)
		r.Post("/transactions/{transactionId}/pay", h.Pay)
		r.Get("/transactions", h.History)
		r.Get("/balance", h.Balance)
		r.Post("/recharge", h.Recharge)
		r.Put("/payment-password", h.SetPaymentPassword)
		r.Get("/hotels/{hotelId}/availability", h.Availability)
	})
}

func call(r *http.Request) booking.Call {
	return booking.Call{Session: auth.Token(r.Context())}
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := apperr.StatusCode(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Error("API", fmt.Sprintf("%s: %v", op, err))
	} else {
		h.Logger.Debug("API", fmt.Sprintf("%s: %v", op, err))
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(op+" failed", apperr.PublicMessage(err)))
}

func (h *Handler) badRequest(w http.ResponseWriter, op string, err error) {
	h.Logger.Debug("API", fmt.Sprintf("%s: bad request: %v", op, err))
	utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse(op+" failed", "invalid request body"))
}

type submitRequest struct {
	Orders []order.Item `json:"orders"`
	// Atomic defaults to true: either every order is booked or none.
	Atomic *bool `json:"atomic,omitempty"`
}

func (h *Handler) SubmitOrders(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "submit", err)
		return
	}
	atomic := true
	if req.Atomic != nil {
		atomic = *req.Atomic
	}

	info, err := h.Service.Submit(r.Context(), call(r), req.Orders, atomic)
	if err != nil {
		h.fail(w, "submit", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("SubmitOrders: transaction %s with %d orders", info.TransactionID, len(info.Orders)))
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("orders submitted", info))
}

func (h *Handler) Pay(w http.ResponseWriter, r *http.Request) {
	transactionID := chi.URLParam(r, "transactionId")
	var creds payguard.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		h.badRequest(w, "pay", err)
		return
	}

	res, err := h.Service.Pay(r.Context(), call(r), transactionID, creds)
	if err != nil {
		if res != nil {
			// An atomic group that could not be reserved still reports what
			// happened to each order.
			body := utils.ErrorResponse("pay failed", apperr.PublicMessage(err))
			body.Data = res
			utils.WriteJSON(w, apperr.StatusCode(err), body)
			return
		}
		h.fail(w, "pay", err)
		return
	}
	h.Logger.Info("API", fmt.Sprintf("Pay: transaction %s is %s", res.TransactionID, res.Status))
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("transaction settled", res))
}

func (h *Handler) CancelOrder(w http.ResponseWriter, r *http.Request) {
	info, err := h.Service.CancelOrder(r.Context(), call(r), chi.URLParam(r, "orderId"))
	if err != nil {
		h.fail(w, "cancel", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("order cancelled", info))
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.Service.Balance(r.Context(), call(r))
	if err != nil {
		h.fail(w, "balance", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("balance", map[string]decimal.Decimal{"balance": balance}))
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	txns, err := h.Service.History(r.Context(), call(r))
	if err != nil {
		h.fail(w, "history", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("transactions", txns))
}

func (h *Handler) Recharge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Amount decimal.Decimal `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "recharge", err)
		return
	}
	info, err := h.Service.Recharge(r.Context(), call(r), req.Amount)
	if err != nil {
		h.fail(w, "recharge", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse("balance recharged", info))
}

func (h *Handler) SetPaymentPassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Password        string `json:"password"`
		PaymentPassword string `json:"payment_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "payment password", err)
		return
	}
	if err := h.Service.SetPaymentPassword(r.Context(), call(r), req.Password, req.PaymentPassword); err != nil {
		h.fail(w, "payment password", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("payment password updated", nil))
}

func (h *Handler) Availability(w http.ResponseWriter, r *http.Request) {
	hotelID, err := strconv.ParseInt(chi.URLParam(r, "hotelId"), 10, 64)
	if err != nil {
		h.fail(w, "availability", apperr.ErrResourceNotFound)
		return
	}
	begin, err := utils.ParseDate(r.URL.Query().Get("begin"))
	if err != nil {
		h.fail(w, "availability", apperr.ErrInvalidDateRange)
		return
	}
	end, err := utils.ParseDate(r.URL.Query().Get("end"))
	if err != nil {
		h.fail(w, "availability", apperr.ErrInvalidDateRange)
		return
	}

	rooms, err := h.Service.Availability(r.Context(), hotelID, begin, end)
	if err != nil {
		h.fail(w, "availability", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("availability", rooms))
}
