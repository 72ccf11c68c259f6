package store

import (
	"context"
	"database/sql"
	"errors"
)

// ErrNoRowsAffected is returned by guarded updates whose WHERE clause matched nothing.
var ErrNoRowsAffected = errors.New("no rows affected")

type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type Getter interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
}

type Selecter interface {
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
}

type DB interface {
	Execer
	Getter
	Selecter
}

type Tx interface {
	Execer
	Getter
	Selecter
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefStringPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
