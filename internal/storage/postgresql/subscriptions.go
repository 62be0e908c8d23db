package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/subsavvy/subsavvy/internal/billing"
	domain "github.com/subsavvy/subsavvy/internal/domain/subscription"
	"github.com/subsavvy/subsavvy/internal/lib/civil"
)

const subscriptionColumns = "id, name, cost, category, billing_cycle, next_payment, notes, created_at"

const baseSelect = "SELECT " + subscriptionColumns + " FROM subscriptions"

func (s *Storage) CreateSubscription(ctx context.Context, sub domain.Subscription) (domain.Subscription, error) {
	const op = "storage.postgresql.CreateSubscription"

	query := `INSERT INTO subscriptions (name, cost, category, billing_cycle, next_payment, notes)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + subscriptionColumns

	created, err := scanSubscription(s.db.QueryRowContext(ctx, query,
		sub.Name,
		sub.Cost,
		sub.Category.String(),
		sub.BillingCycle.String(),
		sub.NextPayment,
		sub.Notes,
	))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	return created, nil
}

func (s *Storage) GetSubscription(ctx context.Context, id uuid.UUID) (domain.Subscription, error) {
	const op = "storage.postgresql.GetSubscription"

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, baseSelect+" WHERE id = $1", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	return sub, nil
}

func (s *Storage) UpdateSubscription(ctx context.Context, id uuid.UUID, input domain.UpdateInput) (domain.Subscription, error) {
	const op = "storage.postgresql.UpdateSubscription"

	query := `UPDATE subscriptions
SET name = $1,
    cost = $2,
    category = $3,
    billing_cycle = $4,
    next_payment = $5,
    notes = $6
WHERE id = $7
RETURNING ` + subscriptionColumns

	sub, err := scanSubscription(s.db.QueryRowContext(ctx, query,
		input.Name,
		input.Cost,
		input.Category.String(),
		input.BillingCycle.String(),
		input.NextPayment,
		input.Notes,
		id,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	return sub, nil
}

func (s *Storage) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	const op = "storage.postgresql.DeleteSubscription"

	res, err := s.db.ExecContext(ctx, "DELETE FROM subscriptions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if affected == 0 {
		return domain.ErrNotFound
	}

	return nil
}

func (s *Storage) ListSubscriptions(ctx context.Context, filter domain.ListFilter) ([]domain.Subscription, error) {
	const op = "storage.postgresql.ListSubscriptions"

	query := baseSelect
	var conditions []string
	var args []any

	if filter.Category != nil {
		args = append(args, filter.Category.String())
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	if filter.BillingCycle != nil {
		args = append(args, filter.BillingCycle.String())
		conditions = append(conditions, fmt.Sprintf("billing_cycle = $%d", len(args)))
	}

	if filter.DueBefore != nil {
		args = append(args, *filter.DueBefore)
		conditions = append(conditions, fmt.Sprintf("next_payment <= $%d", len(args)))
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	// created_at breaks ties so records sharing a due date keep insertion order.
	query += " ORDER BY next_payment, created_at"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, sub)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return result, nil
}

// MarkPaid applies a payment to one subscription. The row stays locked for
// the duration of the transaction so concurrent payments for the same
// subscription serialize and each physical payment advances the due date at
// most once. The advance callback decides the new date; any error it
// returns (including the service's future-date guard) rolls everything back
// untouched.
func (s *Storage) MarkPaid(ctx context.Context, id uuid.UUID, advance func(domain.Subscription) (civil.Date, error)) (domain.Subscription, error) {
	const op = "storage.postgresql.MarkPaid"

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback()

	sub, err := scanSubscription(tx.QueryRowContext(ctx, baseSelect+" WHERE id = $1 FOR UPDATE", id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Subscription{}, domain.ErrNotFound
		}
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	next, err := advance(sub)
	if err != nil {
		return domain.Subscription{}, err
	}

	updated, err := scanSubscription(tx.QueryRowContext(ctx,
		"UPDATE subscriptions SET next_payment = $1 WHERE id = $2 RETURNING "+subscriptionColumns,
		next, id,
	))
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Subscription{}, fmt.Errorf("%s: %w", op, err)
	}

	return updated, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSubscription(row rowScanner) (domain.Subscription, error) {
	var (
		sub      domain.Subscription
		category string
		cycle    string
	)

	err := row.Scan(
		&sub.ID,
		&sub.Name,
		&sub.Cost,
		&category,
		&cycle,
		&sub.NextPayment,
		&sub.Notes,
		&sub.CreatedAt,
	)
	if err != nil {
		return domain.Subscription{}, err
	}

	// Read path coerces unknown categories instead of failing the row.
	sub.Category = domain.NormalizeCategory(category)

	parsedCycle, err := billing.ParseCycle(cycle)
	if err != nil {
		return domain.Subscription{}, fmt.Errorf("subscription %s: %w", sub.ID, err)
	}
	sub.BillingCycle = parsedCycle

	return sub, nil
}
