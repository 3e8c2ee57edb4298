package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/numbrly/portal/internal/domain/number"
	ierr "github.com/numbrly/portal/internal/errors"
	"github.com/numbrly/portal/internal/logger"
	"github.com/numbrly/portal/internal/postgres"
	"github.com/numbrly/portal/internal/types"
)

const numberColumns = `id, mobile_number, toll_free_number, category, connection_fee, monthly_fee,
	status, owner_id, hold_expires_at, assigned_at, version, created_at, updated_at`

// a hold that expired at or before :now counts as available
const logicallyAvailable = `(status = 'available' OR (status = 'held' AND hold_expires_at <= :now))`

type numberRepository struct {
	db     *postgres.DB
	logger *logger.Logger
}

func NewNumberRepository(db *postgres.DB, logger *logger.Logger) number.Repository {
	return &numberRepository{
		db:     db,
		logger: logger,
	}
}

func (r *numberRepository) Create(ctx context.Context, numbers ...*number.PhoneNumber) error {
	query := `
		INSERT INTO phone_numbers (
			id, mobile_number, toll_free_number, category, connection_fee, monthly_fee,
			status, version, created_at, updated_at
		) VALUES (
			:id, :mobile_number, :toll_free_number, :category, :connection_fee, :monthly_fee,
			:status, :version, :created_at, :updated_at
		)`

	return r.db.WithTx(ctx, func(ctx context.Context) error {
		q := r.db.GetQuerier(ctx)
		for _, n := range numbers {
			if _, err := q.NamedExecContext(ctx, query, n); err != nil {
				if isUniqueViolation(err) {
					return ierr.WithError(err).
						WithHintf("Number %s already exists", n.Number()).
						WithReportableDetails(map[string]any{"number": n.Number()}).
						Mark(ierr.ErrAlreadyExists)
				}
				return dbError(err, "failed to insert number")
			}
		}
		return nil
	})
}

func (r *numberRepository) Get(ctx context.Context, id string) (*number.PhoneNumber, error) {
	var n number.PhoneNumber
	err := namedGet(ctx, r.db.GetQuerier(ctx), &n,
		`SELECT `+numberColumns+` FROM phone_numbers WHERE id = :id`,
		map[string]interface{}{"id": id})
	if err != nil {
		if isNoRows(err) {
			return nil, ierr.WithError(err).
				WithHintf("Number %s not found", id).
				WithReportableDetails(map[string]any{"number_id": id}).
				Mark(ierr.ErrNotFound)
		}
		return nil, dbError(err, "failed to get number")
	}
	return &n, nil
}

// filterClause appends the optional kind, category, status and owner predicates
func filterClause(filter *types.NumberFilter, params map[string]interface{}) string {
	var conds []string
	switch filter.Kind {
	case types.NumberKindMobile:
		conds = append(conds, "mobile_number <> ''")
	case types.NumberKindTollFree:
		conds = append(conds, "toll_free_number <> ''")
	}
	if filter.Category != "" {
		conds = append(conds, "category = :category")
		params["category"] = filter.Category
	}
	if filter.Status != "" {
		conds = append(conds, "status = :status")
		params["status"] = filter.Status
	}
	if filter.OwnerID != "" {
		conds = append(conds, "owner_id = :owner_id")
		params["owner_id"] = filter.OwnerID
	}
	if len(conds) == 0 {
		return ""
	}
	return " AND " + strings.Join(conds, " AND ")
}

func paginate(filter *types.NumberFilter, params map[string]interface{}) string {
	params["limit"] = filter.GetLimit()
	params["offset"] = filter.GetOffset()
	return " ORDER BY id LIMIT :limit OFFSET :offset"
}

func (r *numberRepository) List(ctx context.Context, filter *types.NumberFilter) ([]*number.PhoneNumber, error) {
	params := map[string]interface{}{}
	query := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE TRUE` +
		filterClause(filter, params) + paginate(filter, params)

	var numbers []*number.PhoneNumber
	if err := namedSelect(ctx, r.db.GetQuerier(ctx), &numbers, query, params); err != nil {
		return nil, dbError(err, "failed to list numbers")
	}
	return numbers, nil
}

func (r *numberRepository) Count(ctx context.Context, filter *types.NumberFilter) (int, error) {
	params := map[string]interface{}{}
	query := `SELECT COUNT(*) FROM phone_numbers WHERE TRUE` + filterClause(filter, params)

	var count int
	if err := namedGet(ctx, r.db.GetQuerier(ctx), &count, query, params); err != nil {
		return 0, dbError(err, "failed to count numbers")
	}
	return count, nil
}

func availableFilter(filter *types.NumberFilter) *types.NumberFilter {
	f := *filter
	f.Status = ""
	f.OwnerID = ""
	return &f
}

func (r *numberRepository) ListAvailable(ctx context.Context, filter *types.NumberFilter) ([]*number.PhoneNumber, error) {
	params := map[string]interface{}{"now": nowOf(filter)}
	f := availableFilter(filter)
	query := `SELECT ` + numberColumns + ` FROM phone_numbers WHERE ` + logicallyAvailable +
		filterClause(f, params) + paginate(f, params)

	var numbers []*number.PhoneNumber
	if err := namedSelect(ctx, r.db.GetQuerier(ctx), &numbers, query, params); err != nil {
		return nil, dbError(err, "failed to list available numbers")
	}
	return numbers, nil
}

func (r *numberRepository) CountAvailable(ctx context.Context, filter *types.NumberFilter) (int, error) {
	params := map[string]interface{}{"now": nowOf(filter)}
	query := `SELECT COUNT(*) FROM phone_numbers WHERE ` + logicallyAvailable +
		filterClause(availableFilter(filter), params)

	var count int
	if err := namedGet(ctx, r.db.GetQuerier(ctx), &count, query, params); err != nil {
		return 0, dbError(err, "failed to count available numbers")
	}
	return count, nil
}

func (r *numberRepository) MarkHeld(ctx context.Context, id, userID string, expiresAt, now time.Time, maxHolds int) (*number.PhoneNumber, error) {
	query := `
		UPDATE phone_numbers
		SET status = 'held',
			owner_id = :user_id,
			hold_expires_at = :expires_at,
			assigned_at = NULL,
			version = version + 1,
			updated_at = :now
		WHERE id = :id AND ` + logicallyAvailable + `
		RETURNING ` + numberColumns

	var held *number.PhoneNumber
	err := r.db.WithTx(ctx, func(ctx context.Context) error {
		if maxHolds > 0 {
			// serializes hold creation per user until the tx ends
			if _, err := r.db.GetQuerier(ctx).ExecContext(ctx,
				`SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
				return dbError(err, "failed to lock user holds")
			}
			count, err := r.CountActiveHolds(ctx, userID, now)
			if err != nil {
				return err
			}
			if count >= maxHolds {
				return number.ErrHoldLimitFor(userID, maxHolds)
			}
		}

		n, err := r.compareAndSet(ctx, id, "hold", query, map[string]interface{}{
			"id":         id,
			"user_id":    userID,
			"expires_at": expiresAt,
			"now":        now,
		})
		if err != nil {
			return err
		}
		held = n
		return nil
	})
	if err != nil {
		return nil, err
	}
	return held, nil
}

func (r *numberRepository) MarkAssigned(ctx context.Context, id, userID string, now time.Time) (*number.PhoneNumber, error) {
	query := `
		UPDATE phone_numbers
		SET status = 'assigned',
			owner_id = :user_id,
			hold_expires_at = NULL,
			assigned_at = :now,
			version = version + 1,
			updated_at = :now
		WHERE id = :id
		AND (status = 'available'
			OR (status = 'held' AND (owner_id = :user_id OR hold_expires_at <= :now)))
		RETURNING ` + numberColumns

	return r.compareAndSet(ctx, id, "assign", query, map[string]interface{}{
		"id":      id,
		"user_id": userID,
		"now":     now,
	})
}

func (r *numberRepository) Release(ctx context.Context, id string, cond *number.ReleaseCondition, now time.Time) (*number.PhoneNumber, error) {
	params := map[string]interface{}{
		"id":  id,
		"now": now,
	}

	var conds []string
	if cond != nil {
		if cond.ExpectedStatus != "" {
			conds = append(conds, "status = :expected_status")
			params["expected_status"] = cond.ExpectedStatus
		}
		if cond.ExpectedOwner != "" {
			conds = append(conds, "owner_id = :expected_owner")
			params["expected_owner"] = cond.ExpectedOwner
		}
		if cond.ExpiredAt != nil {
			conds = append(conds, "status = 'held' AND hold_expires_at <= :expired_at")
			params["expired_at"] = *cond.ExpiredAt
		}
	}

	where := "id = :id"
	if len(conds) > 0 {
		where += " AND " + strings.Join(conds, " AND ")
	}

	// releasing an already available number leaves version alone
	query := `
		UPDATE phone_numbers
		SET status = 'available',
			owner_id = NULL,
			hold_expires_at = NULL,
			assigned_at = NULL,
			version = CASE WHEN status = 'available' THEN version ELSE version + 1 END,
			updated_at = :now
		WHERE ` + where + `
		RETURNING ` + numberColumns

	return r.compareAndSet(ctx, id, "release", query, params)
}

// compareAndSet runs a conditional UPDATE ... RETURNING. No returned row means
// either the number does not exist or its state did not satisfy the condition.
func (r *numberRepository) compareAndSet(ctx context.Context, id, op, query string, params map[string]interface{}) (*number.PhoneNumber, error) {
	var n number.PhoneNumber
	err := namedGet(ctx, r.db.GetQuerier(ctx), &n, query, params)
	if err == nil {
		return &n, nil
	}
	if !isNoRows(err) {
		return nil, dbError(err, "failed to "+op+" number")
	}

	current, getErr := r.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}

	r.logger.Debugw("number state changed concurrently",
		"number_id", id,
		"operation", op,
		"status", current.Status,
	)
	return nil, ierr.NewError("number state does not allow "+op).
		WithHint("This number was just taken, pick another").
		WithReportableDetails(map[string]any{
			"number_id": id,
			"status":    current.Status,
		}).
		Mark(ierr.ErrConflict)
}

func (r *numberRepository) CountActiveHolds(ctx context.Context, userID string, now time.Time) (int, error) {
	query := `
		SELECT COUNT(*) FROM phone_numbers
		WHERE owner_id = :user_id AND status = 'held' AND hold_expires_at > :now`

	var count int
	err := namedGet(ctx, r.db.GetQuerier(ctx), &count, query, map[string]interface{}{
		"user_id": userID,
		"now":     now,
	})
	if err != nil {
		return 0, dbError(err, "failed to count holds")
	}
	return count, nil
}

func (r *numberRepository) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]*number.PhoneNumber, error) {
	query := `
		SELECT ` + numberColumns + ` FROM phone_numbers
		WHERE status = 'held' AND hold_expires_at < :now
		ORDER BY hold_expires_at, id
		LIMIT :limit`

	var numbers []*number.PhoneNumber
	err := namedSelect(ctx, r.db.GetQuerier(ctx), &numbers, query, map[string]interface{}{
		"now":   now,
		"limit": limit,
	})
	if err != nil {
		return nil, dbError(err, "failed to list expired holds")
	}
	return numbers, nil
}

func (r *numberRepository) ListByOwner(ctx context.Context, userID string, now time.Time) ([]*number.PhoneNumber, error) {
	query := `
		SELECT ` + numberColumns + ` FROM phone_numbers
		WHERE owner_id = :user_id
		AND (status = 'assigned' OR (status = 'held' AND hold_expires_at > :now))
		ORDER BY id`

	var numbers []*number.PhoneNumber
	err := namedSelect(ctx, r.db.GetQuerier(ctx), &numbers, query, map[string]interface{}{
		"user_id": userID,
		"now":     now,
	})
	if err != nil {
		return nil, dbError(err, "failed to list owned numbers")
	}
	return numbers, nil
}

func nowOf(filter *types.NumberFilter) time.Time {
	if filter.Now.IsZero() {
		return time.Now().UTC()
	}
	return filter.Now
}
