package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"moneta/internal/core"
)

const ruleColumns = `id, user_id, transaction_id, period, interval, ends_at,
	next_scheduled_at, created_at, updated_at`

// InsertRuleTx creates a recurring rule. The UNIQUE constraint on
// transaction_id enforces one rule per original transaction.
func (r *Repository) InsertRuleTx(ctx context.Context, tx *sql.Tx, rule *core.RecurringRule) error {
	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `
		INSERT INTO recurring_rules (user_id, transaction_id, period, interval,
			ends_at, next_scheduled_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rule.UserID, rule.TransactionID, string(rule.Period), rule.Interval,
		nullTime(rule.EndsAt), rule.NextScheduledAt.UTC(), now, now)
	if err != nil {
		return fmt.Errorf("insert recurring rule: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("recurring rule id: %w", err)
	}
	rule.ID = id
	rule.CreatedAt = now
	rule.UpdatedAt = now

	return nil
}

// Rule loads a recurring rule by id.
func (r *Repository) Rule(ctx context.Context, id int64) (core.RecurringRule, error) {
	return getRule(ctx, r.db, id)
}

// RuleTx loads a rule inside an open transaction. The scheduler re-reads the
// rule here at run start rather than trusting what was captured at schedule
// time.
func (r *Repository) RuleTx(ctx context.Context, tx *sql.Tx, id int64) (core.RecurringRule, error) {
	return getRule(ctx, tx, id)
}

func getRule(ctx context.Context, q DBTX, id int64) (core.RecurringRule, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE id = ?`, id)
	return scanRule(row)
}

func scanRule(row rowScanner) (core.RecurringRule, error) {
	var (
		rule   core.RecurringRule
		period string
		endsAt sql.NullTime
	)
	err := row.Scan(&rule.ID, &rule.UserID, &rule.TransactionID, &period,
		&rule.Interval, &endsAt, &rule.NextScheduledAt, &rule.CreatedAt, &rule.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.RecurringRule{}, core.ErrRuleNotFound
	}
	if err != nil {
		return core.RecurringRule{}, fmt.Errorf("scan recurring rule: %w", err)
	}
	rule.Period = core.RecurrencePeriod(period)
	rule.EndsAt = timePtr(endsAt)
	return rule, nil
}

// ListRules returns a user's recurring rules.
func (r *Repository) ListRules(ctx context.Context, userID int64) ([]core.RecurringRule, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules WHERE user_id = ? ORDER BY id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list recurring rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// DueRules returns rules whose next occurrence is at or before now. The
// dispatcher turns each into an occurrence message; delay is this
// timestamp gate, not a sleeping goroutine.
func (r *Repository) DueRules(ctx context.Context, now time.Time, limit int) ([]core.RecurringRule, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM recurring_rules
		WHERE next_scheduled_at <= ? ORDER BY next_scheduled_at LIMIT ?`,
		now.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("due rules: %w", err)
	}
	defer rows.Close()

	var out []core.RecurringRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, rows.Err()
}

// UpdateRuleScheduleTx advances next_scheduled_at after a successful run.
func (r *Repository) UpdateRuleScheduleTx(ctx context.Context, tx *sql.Tx, ruleID int64, next time.Time) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE recurring_rules SET next_scheduled_at = ?, updated_at = ? WHERE id = ?`,
		next.UTC(), time.Now().UTC(), ruleID)
	if err != nil {
		return fmt.Errorf("update rule schedule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrRuleNotFound
	}
	return nil
}

// DeleteRule removes a rule; its original transaction is untouched.
func (r *Repository) DeleteRule(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recurring_rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete recurring rule: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrRuleNotFound
	}
	return nil
}
