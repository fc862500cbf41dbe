package models

import (
	"time"

	"github.com/uptrace/bun"
)

type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID                   int64     `bun:"id,pk,autoincrement" json:"id"`
	Username             string    `bun:"username,unique,notnull" json:"username"`
	PasswordHash         string    `bun:"password_hash,notnull" json:"-"`
	PaymentPasswordHash  *string   `bun:"payment_password_hash" json:"-"`
	WrongPaymentAttempts int       `bun:"wrong_payment_attempts,notnull,default:0" json:"-"`
	CreatedAt            time.Time `bun:"created_at,notnull" json:"created_at"`
}

// PersonalInfo is a traveller profile an order is issued for.
type PersonalInfo struct {
	bun.BaseModel `bun:"table:personal_infos,alias:pi"`

	ID             int64  `bun:"id,pk,autoincrement" json:"-"`
	UUID           string `bun:"uuid,unique,notnull" json:"id"`
	UserID         int64  `bun:"user_id,notnull" json:"-"`
	Name           string `bun:"name,notnull" json:"name"`
	IdentityNumber string `bun:"identity_number,notnull" json:"identity_number"`
	IsDefault      bool   `bun:"is_default,notnull,default:false" json:"is_default"`
}
