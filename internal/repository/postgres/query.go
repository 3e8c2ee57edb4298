package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/postgres"
)

const (
	pgUniqueViolation   = "23505"
	pgNumericOutOfRange = "22003"
)

// namedGet binds :name parameters and scans a single row into dest
func namedGet(ctx context.Context, q postgres.Querier, dest interface{}, query string, params map[string]interface{}) error {
	bound, args, err := sqlx.Named(query, params)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to bind query").Mark(ierr.ErrSystem)
	}
	return q.GetContext(ctx, dest, q.Rebind(bound), args...)
}

// namedSelect binds :name parameters and scans every row into dest
func namedSelect(ctx context.Context, q postgres.Querier, dest interface{}, query string, params map[string]interface{}) error {
	bound, args, err := sqlx.Named(query, params)
	if err != nil {
		return ierr.WithError(err).WithMessage("failed to bind query").Mark(ierr.ErrSystem)
	}
	return q.SelectContext(ctx, dest, q.Rebind(bound), args...)
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// isOutOfRange matches bigint overflow, which is how an over-large credit fails
func isOutOfRange(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgNumericOutOfRange
}

func dbError(err error, msg string) error {
	return ierr.WithError(err).
		WithMessage(msg).
		WithHint("A database error occurred, please retry").
		Mark(ierr.ErrDatabase)
}
