// Package scheduler turns recurring rules into real transactions. A
// dispatcher polls for due rules and publishes one message per due run; the
// runner consumes those messages, re-validates each rule against current
// state and replicates the rule's original transaction as a new occurrence.
package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"moneta/internal/amqp"
	"moneta/internal/core"
	"moneta/internal/ledger"
	"moneta/internal/log"
	"moneta/internal/storage"
)

// Scheduler manages recurring rules and executes their occurrences.
type Scheduler struct {
	repo   *storage.Repository
	ledger *ledger.Ledger
}

func New(repo *storage.Repository, l *ledger.Ledger) *Scheduler {
	return &Scheduler{repo: repo, ledger: l}
}

// CreateRule registers a recurring rule for an existing transaction. When no
// first run is given, it is seeded from the original transaction's date plus
// one period, so a rule created today for last month's rent fires on next
// month's due date, not immediately.
func (s *Scheduler) CreateRule(ctx context.Context, rule *core.RecurringRule) error {
	original, err := s.repo.Transaction(ctx, rule.TransactionID)
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}
	if original.IsTransferLeg() {
		return core.ErrTransferLeg
	}

	rule.UserID = original.UserID
	if rule.NextScheduledAt.IsZero() {
		rule.NextScheduledAt = NextOccurrence(original.OccurredAt, rule.Period, rule.Interval)
	}
	if err := rule.Validate(); err != nil {
		return err
	}

	err = s.repo.WithTx(ctx, func(tx *sql.Tx) error {
		return s.repo.InsertRuleTx(ctx, tx, rule)
	})
	if err != nil {
		return fmt.Errorf("create rule: %w", err)
	}

	slog.InfoContext(ctx, "Recurring rule created",
		log.FieldRuleID, rule.ID,
		log.FieldTransactionID, rule.TransactionID,
		"period", rule.Period,
		"interval", rule.Interval,
		"next_scheduled_at", rule.NextScheduledAt)
	return nil
}

// ValidateAndRun executes one scheduled occurrence. The message is a
// snapshot taken at publish time; the rule is re-read fresh and the run is
// dropped without error when the rule no longer warrants it: the rule was
// deleted, it expired, its period or interval changed since publish, or this
// exact run already executed (duplicate delivery). A dropped run is terminal
// for that message, not for the rule.
func (s *Scheduler) ValidateAndRun(ctx context.Context, msg *amqp.OccurrenceMessage) error {
	now := time.Now().UTC()

	rule, err := s.repo.Rule(ctx, msg.RuleID)
	if errors.Is(err, core.ErrRuleNotFound) {
		slog.InfoContext(ctx, "Dropping run for deleted rule", log.FieldRuleID, msg.RuleID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load rule %d: %w", msg.RuleID, err)
	}

	if rule.Expired(now) {
		slog.InfoContext(ctx, "Dropping run for expired rule",
			log.FieldRuleID, rule.ID, "ends_at", rule.EndsAt)
		return nil
	}
	if rule.Period != msg.Period || rule.Interval != msg.Interval {
		slog.InfoContext(ctx, "Dropping stale run, rule changed since publish",
			log.FieldRuleID, rule.ID,
			"message_period", msg.Period,
			"rule_period", rule.Period)
		return nil
	}
	if !rule.NextScheduledAt.Equal(msg.ScheduledAt) {
		slog.InfoContext(ctx, "Dropping already-executed run",
			log.FieldRuleID, rule.ID,
			"message_scheduled_at", msg.ScheduledAt,
			"rule_scheduled_at", rule.NextScheduledAt)
		return nil
	}

	var originalGone bool
	err = s.repo.WithTx(ctx, func(tx *sql.Tx) error {
		original, err := s.repo.TransactionTx(ctx, tx, rule.TransactionID)
		if errors.Is(err, core.ErrTransactionNotFound) {
			originalGone = true
			return nil
		}
		if err != nil {
			return err
		}
		if original.IsTransferLeg() {
			originalGone = true
			return nil
		}

		occurrence := replicate(original, now)
		if err := s.ledger.CreateTransactionTx(ctx, tx, &occurrence); err != nil {
			return err
		}

		next := NextOccurrence(rule.NextScheduledAt, rule.Period, rule.Interval)
		return s.repo.UpdateRuleScheduleTx(ctx, tx, rule.ID, next)
	})
	if err != nil {
		return fmt.Errorf("run rule %d: %w", rule.ID, err)
	}
	if originalGone {
		slog.InfoContext(ctx, "Dropping run, original transaction gone",
			log.FieldRuleID, rule.ID, log.FieldTransactionID, rule.TransactionID)
		return nil
	}

	slog.InfoContext(ctx, "Occurrence created",
		log.FieldOperation, log.OpRun,
		log.FieldRuleID, rule.ID,
		log.FieldScheduledAt, msg.ScheduledAt)
	return nil
}

// replicate builds the occurrence from the original transaction. Type,
// amount, wallet, party, description and categories carry over; the
// occurrence gets its own identity and the execution time as its date.
func replicate(original core.Transaction, now time.Time) core.Transaction {
	t := core.Transaction{
		UserID:      original.UserID,
		WalletID:    original.WalletID,
		Type:        original.Type,
		Amount:      original.Amount,
		OccurredAt:  now,
		Description: original.Description,
		PartyID:     original.PartyID,
	}
	if len(original.CategoryIDs) > 0 {
		t.CategoryIDs = append([]int64(nil), original.CategoryIDs...)
	}
	return t
}
