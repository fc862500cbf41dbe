// Package booking turns requests into orders and settles them: it submits
// groups of orders with a pending transaction, pays them by reserving
// inventory and debiting the ledger in one store transaction, and cancels
// orders with a refund.
package booking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/database"
	"ms-booking/internal/inventory"
	"ms-booking/internal/ledger"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
	"ms-booking/internal/order"
	orderdb "ms-booking/internal/order/db"
	"ms-booking/internal/payguard"
	"ms-booking/internal/reference"
	"ms-booking/internal/utils"
)

// Call carries the caller's session token and the time the request is
// evaluated at. A zero Now means the service clock.
type Call struct {
	Session string
	Now     time.Time
}

type SettleLocker interface {
	Acquire(ctx context.Context, transactionID, owner string) (bool, error)
	Release(ctx context.Context, transactionID, owner string) error
}

type EventPublisher interface {
	PublishOrderStatus(ctx context.Context, events ...models.OrderStatusEvent) error
}

type Service struct {
	DB        bun.IDB
	Sessions  auth.Resolver
	Ref       reference.Lookup
	Builder   *order.Builder
	Orders    *orderdb.DB
	Ledger    *ledger.Ledger
	Allocator *inventory.Allocator
	Guard     *payguard.Guard
	Lock      SettleLocker
	Events    EventPublisher
	Metrics   *metrics.BookingMetrics
	Log       *logger.Logger
	Clock     utils.Clock
}

// Options tunes the pieces New assembles. Zero values fall back to defaults.
type Options struct {
	MaxHotelNights     int
	MaxPaymentAttempts int
	Hasher             *auth.Hasher
	Lock               SettleLocker
	Events             EventPublisher
	Metrics            *metrics.BookingMetrics
	Log                *logger.Logger
	Clock              utils.Clock
}

func New(db bun.IDB, sessions auth.Resolver, opts Options) *Service {
	if opts.Clock == nil {
		opts.Clock = utils.SystemClock{}
	}
	if opts.Log == nil {
		opts.Log = logger.Discard()
	}
	ref := reference.New(db)
	orders := orderdb.New(db)
	return &Service{
		DB:        db,
		Sessions:  sessions,
		Ref:       ref,
		Builder:   order.NewBuilder(ref, orders, opts.MaxHotelNights),
		Orders:    orders,
		Ledger:    ledger.New(db, opts.Clock),
		Allocator: inventory.New(db, opts.Metrics),
		Guard:     payguard.New(db, opts.Hasher, opts.MaxPaymentAttempts, opts.Metrics, opts.Log),
		Lock:      opts.Lock,
		Events:    opts.Events,
		Metrics:   opts.Metrics,
		Log:       opts.Log,
		Clock:     opts.Clock,
	}
}

func (s *Service) now(call Call) time.Time {
	if call.Now.IsZero() {
		return s.Clock.Now()
	}
	return call.Now.UTC()
}

func (s *Service) resolve(ctx context.Context, call Call) (int64, error) {
	if s.Sessions == nil || call.Session == "" {
		return 0, apperr.ErrInvalidSession
	}
	userID, ok := s.Sessions.Resolve(ctx, call.Session)
	if !ok {
		return 0, apperr.ErrInvalidSession
	}
	return userID, nil
}

// Submit builds the requested orders and records them with an unpaid
// transaction. No inventory is held until the transaction is paid.
func (s *Service) Submit(ctx context.Context, call Call, items []order.Item, atomic bool) (*TransactionInfo, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, apperr.ErrEmptyOrderList
	}

	orders, err := s.Builder.Build(ctx, userID, items, s.now(call))
	if err != nil {
		return nil, err
	}

	var txn *models.Transaction
	err = s.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		txn, err = s.Ledger.Tx(tx).Open(ctx, userID, orders, atomic)
		if err != nil {
			return err
		}
		repo := s.Orders.Tx(tx)
		for _, o := range orders {
			if err := repo.Create(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.LogTransaction("SUBMITTED", txn.UUID, fmt.Sprintf("%d orders, amount %s, atomic=%t", len(orders), txn.Amount.StringFixed(2), atomic))
	return newTransactionInfo(txn, orders), nil
}

// Pay authorizes the caller and settles the transaction. Concurrent pay
// requests for one transaction are refused while the first is running.
func (s *Service) Pay(ctx context.Context, call Call, transactionID string, creds payguard.Credentials) (*SettleResult, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return nil, err
	}

	if s.Lock != nil {
		owner := utils.NewUUID()
		ok, err := s.Lock.Acquire(ctx, transactionID, owner)
		switch {
		case err != nil:
			// Row locks still serialize settlement; the Redis lock only
			// turns duplicates away early.
			s.Log.Warn("BOOKING", fmt.Sprintf("Settle lock unavailable for %s: %v", transactionID, err))
		case !ok:
			s.Metrics.LockBusy()
			return nil, apperr.ErrSettleInProgress
		default:
			defer func() {
				if err := s.Lock.Release(context.Background(), transactionID, owner); err != nil {
					s.Log.Warn("BOOKING", fmt.Sprintf("Failed to release settle lock for %s: %v", transactionID, err))
				}
			}()
		}
	}

	txn, err := s.Ledger.Get(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if txn.UserID != userID {
		return nil, apperr.ErrNotFound
	}
	if txn.Status != models.TransactionUnpaid {
		return nil, fmt.Errorf("transaction %s is %s: %w", txn.UUID, txn.Status, apperr.ErrTransactionNotPayable)
	}

	if err := s.Guard.Authorize(ctx, userID, creds); err != nil {
		return nil, err
	}
	return s.Settle(ctx, userID, transactionID, s.now(call))
}

// Balance is the sum of the caller's paid transactions.
func (s *Service) Balance(ctx context.Context, call Call) (decimal.Decimal, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return decimal.Zero, err
	}
	return s.Ledger.Balance(ctx, userID)
}

// History lists the caller's transactions, newest first, with their orders.
func (s *Service) History(ctx context.Context, call Call) ([]TransactionInfo, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	txns, err := s.Ledger.History(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]TransactionInfo, 0, len(txns))
	for i := range txns {
		var orders []*order.Order
		if txns[i].Kind == models.TransactionPurchase {
			if orders, err = s.Orders.ListByTransaction(ctx, txns[i].ID); err != nil {
				return nil, err
			}
		}
		out = append(out, *newTransactionInfo(&txns[i], orders))
	}
	return out, nil
}

func (s *Service) Recharge(ctx context.Context, call Call, amount decimal.Decimal) (*TransactionInfo, error) {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return nil, err
	}
	txn, err := s.Ledger.Recharge(ctx, userID, amount)
	if err != nil {
		return nil, err
	}
	s.Metrics.Recharge()
	s.Log.LogTransaction("RECHARGE", txn.UUID, fmt.Sprintf("user %d +%s", userID, amount.StringFixed(2)))
	return newTransactionInfo(txn, nil), nil
}

func (s *Service) SetPaymentPassword(ctx context.Context, call Call, loginPassword, paymentPassword string) error {
	userID, err := s.resolve(ctx, call)
	if err != nil {
		return err
	}
	return s.Guard.SetPaymentPassword(ctx, userID, loginPassword, paymentPassword)
}

// Availability reports the free rooms of every room type of a hotel over
// the nights [begin, end).
func (s *Service) Availability(ctx context.Context, hotelID int64, begin, end time.Time) ([]RoomAvailability, error) {
	hotel, err := s.Ref.Hotel(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	if hotel == nil {
		return nil, fmt.Errorf("hotel %d: %w", hotelID, apperr.ErrResourceNotFound)
	}
	rts, err := s.Ref.RoomTypes(ctx, hotelID)
	if err != nil {
		return nil, err
	}
	out := make([]RoomAvailability, 0, len(rts))
	for _, rt := range rts {
		free, err := s.Allocator.Availability(ctx, rt.ID, begin, end)
		if err != nil {
			return nil, err
		}
		out = append(out, RoomAvailability{RoomTypeID: rt.ID, Name: rt.Name, Price: rt.Price, Capacity: rt.Capacity, Free: free})
	}
	return out, nil
}

// lockUser takes the user row lock that opens every settling transaction.
func lockUser(ctx context.Context, tx bun.IDB, userID int64) error {
	_, err := database.LockUser(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.ErrInvalidSession
	}
	return err
}

// publish sends status events after commit. Failures are logged only.
func (s *Service) publish(ctx context.Context, events []models.OrderStatusEvent) {
	if s.Events == nil || len(events) == 0 {
		return
	}
	if err := s.Events.PublishOrderStatus(ctx, events...); err != nil {
		s.Log.Warn("BOOKING", fmt.Sprintf("Order status events not published: %v", err))
	}
}

func (s *Service) statusEvent(o *order.Order, txnUUID string, now time.Time) (models.OrderStatusEvent, bool) {
	ev, err := models.NewOrderStatusEvent(o.UUID, txnUUID, o.UserID, string(o.Kind), string(o.Status), now)
	if err != nil {
		s.Log.Warn("BOOKING", fmt.Sprintf("Skipping status event for %s: %v", o.UUID, err))
		return ev, false
	}
	return ev, true
}
