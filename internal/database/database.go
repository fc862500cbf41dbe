package database

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"

	"ms-booking/internal/config"
	"ms-booking/internal/models"
)

// OpenPostgres connects to PostgreSQL through lib/pq and wraps it in bun.
func OpenPostgres(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.MaxLifetime)

	if err := sqldb.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return bun.NewDB(sqldb, pgdialect.New()), nil
}

// CreateSchema creates every table from the bun models. SQL migrations are
// the source of truth in production; this is for tests and local tooling.
func CreateSchema(ctx context.Context, db bun.IDB) error {
	for _, model := range models.All() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

// ForUpdate adds a row lock on dialects that support one. SQLite serializes
// writers on its own.
func ForUpdate(db bun.IDB, q *bun.SelectQuery) *bun.SelectQuery {
	if db.Dialect().Name() == dialect.PG {
		return q.For("UPDATE")
	}
	return q
}

// LockUser takes the per-user row lock that orders balance and
// password-attempt updates. Returns sql.ErrNoRows for unknown users.
func LockUser(ctx context.Context, db bun.IDB, userID int64) (*models.User, error) {
	user := new(models.User)
	err := ForUpdate(db, db.NewSelect().Model(user).Where("u.id = ?", userID)).Scan(ctx)
	if err != nil {
		return nil, err
	}
	return user, nil
}
