// Package payguard authorizes payments with a secret and limits how many
// wrong secrets a user may submit.
package payguard

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/uptrace/bun"

	"ms-booking/internal/apperr"
	"ms-booking/internal/auth"
	"ms-booking/internal/database"
	"ms-booking/internal/logger"
	"ms-booking/internal/metrics"
	"ms-booking/internal/models"
)

const DefaultMaxAttempts = 5

var paymentPasswordPattern = regexp.MustCompile(`^[0-9]{6}$`)

// Credentials carries whichever secrets the caller supplied.
type Credentials struct {
	UserPassword    string `json:"user_password,omitempty"`
	PaymentPassword string `json:"payment_password,omitempty"`
}

type Guard struct {
	DB          bun.IDB
	Hasher      *auth.Hasher
	MaxAttempts int
	Metrics     *metrics.BookingMetrics
	Log         *logger.Logger
}

func New(db bun.IDB, hasher *auth.Hasher, maxAttempts int, m *metrics.BookingMetrics, log *logger.Logger) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if hasher == nil {
		hasher = auth.NewHasher()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Guard{DB: db, Hasher: hasher, MaxAttempts: maxAttempts, Metrics: m, Log: log}
}

// Authorize checks the caller's secret in its own store transaction so a
// wrong attempt is counted even though the payment is refused.
func (g *Guard) Authorize(ctx context.Context, userID int64, creds Credentials) error {
	if creds.UserPassword == "" && creds.PaymentPassword == "" {
		return apperr.ErrMissingCredentials
	}

	var verdict error
	err := g.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if user.WrongPaymentAttempts >= g.MaxAttempts {
			verdict = apperr.ErrTooManyAttempts
			return nil
		}

		if g.matches(user, creds) {
			if user.WrongPaymentAttempts > 0 {
				return setAttempts(ctx, tx, userID, 0)
			}
			return nil
		}

		verdict = apperr.ErrUnauthorized
		return setAttempts(ctx, tx, userID, user.WrongPaymentAttempts+1)
	})
	if err != nil {
		return err
	}

	switch {
	case errors.Is(verdict, apperr.ErrTooManyAttempts):
		g.Metrics.AuthFailure("locked")
		g.Log.LogSecurity("PAYMENT_LOCKED", fmt.Sprintf("User %d exceeded payment attempts", userID))
	case verdict != nil:
		g.Metrics.AuthFailure("mismatch")
		g.Log.LogSecurity("PAYMENT_MISMATCH", fmt.Sprintf("Wrong payment secret for user %d", userID))
	}
	return verdict
}

// matches prefers the payment password when the user has one and supplied
// it; otherwise the supplied secret is compared with the login password.
func (g *Guard) matches(user *models.User, creds Credentials) bool {
	if user.PaymentPasswordHash != nil && creds.PaymentPassword != "" {
		return g.Hasher.Verify(*user.PaymentPasswordHash, creds.PaymentPassword)
	}
	secret := creds.UserPassword
	if secret == "" {
		secret = creds.PaymentPassword
	}
	return g.Hasher.Verify(user.PasswordHash, secret)
}

// SetPaymentPassword replaces the user's six-digit payment password after
// checking the login password, and clears the attempt counter.
func (g *Guard) SetPaymentPassword(ctx context.Context, userID int64, loginPassword, paymentPassword string) error {
	if !paymentPasswordPattern.MatchString(paymentPassword) {
		return apperr.ErrInvalidPaymentPassword
	}
	hash, err := g.Hasher.Hash(paymentPassword)
	if err != nil {
		return fmt.Errorf("hash payment password: %w", err)
	}

	return g.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		user, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !g.Hasher.Verify(user.PasswordHash, loginPassword) {
			g.Log.LogSecurity("PAYMENT_PASSWORD", fmt.Sprintf("Wrong login password for user %d", userID))
			return apperr.ErrUnauthorized
		}
		_, err = tx.NewUpdate().
			Model((*models.User)(nil)).
			Set("payment_password_hash = ?", hash).
			Set("wrong_payment_attempts = 0").
			Where("id = ?", userID).
			Exec(ctx)
		return err
	})
}

// ResetAttempts is the administrative unlock.
func (g *Guard) ResetAttempts(ctx context.Context, userID int64) error {
	return g.DB.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := lockUser(ctx, tx, userID); err != nil {
			return err
		}
		return setAttempts(ctx, tx, userID, 0)
	})
}

// Attempts returns the current count of consecutive wrong secrets.
func (g *Guard) Attempts(ctx context.Context, userID int64) (int, error) {
	user := new(models.User)
	err := g.DB.NewSelect().Model(user).Column("u.id", "u.wrong_payment_attempts").Where("u.id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return user.WrongPaymentAttempts, nil
}

func lockUser(ctx context.Context, tx bun.IDB, userID int64) (*models.User, error) {
	user, err := database.LockUser(ctx, tx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.ErrUnauthorized
	}
	return user, err
}

func setAttempts(ctx context.Context, tx bun.IDB, userID int64, n int) error {
	_, err := tx.NewUpdate().
		Model((*models.User)(nil)).
		Set("wrong_payment_attempts = ?", n).
		Where("id = ?", userID).
		Exec(ctx)
	return err
}
