package scheduler

import (
	"context"
	"log/slog"
	"time"

	"moneta/internal/amqp"
	"moneta/internal/log"
	"moneta/internal/storage"
)

// Publisher sends occurrence messages to the queue.
type Publisher interface {
	PublishOccurrence(ctx context.Context, msg *amqp.OccurrenceMessage) error
}

// Dispatcher periodically scans for due rules and publishes one message per
// due run. Delivery is at least once: a published run is remembered so the
// same (rule, scheduled time) pair is not re-published while the runner has
// not advanced the rule yet, but a restart forgets and may publish again.
// The runner's own validation makes the duplicate harmless.
type Dispatcher struct {
	repo      *storage.Repository
	publisher Publisher
	interval  time.Duration
	batchSize int

	published map[int64]time.Time
}

func NewDispatcher(repo *storage.Repository, publisher Publisher, interval time.Duration, batchSize int) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		published: make(map[int64]time.Time),
	}
}

// Run polls until the context is cancelled. One pass happens immediately so
// rules that came due while the process was down are picked up on start.
func (d *Dispatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "Dispatcher started", "interval", d.interval)
	d.dispatch(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Dispatcher stopped")
			return ctx.Err()
		case <-ticker.C:
			d.dispatch(ctx)
		}
	}
}

// dispatch publishes every due rule not already in flight and returns how
// many messages went out. A publish failure skips that rule until the next
// pass; the rest of the batch still goes out.
func (d *Dispatcher) dispatch(ctx context.Context) int {
	now := time.Now().UTC()

	rules, err := d.repo.DueRules(ctx, now, d.batchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to scan due rules", log.FieldError, err)
		return 0
	}

	seen := make(map[int64]time.Time, len(rules))
	count := 0
	for _, rule := range rules {
		seen[rule.ID] = rule.NextScheduledAt
		if last, ok := d.published[rule.ID]; ok && last.Equal(rule.NextScheduledAt) {
			continue
		}

		msg := amqp.NewOccurrenceMessage(rule)
		if err := d.publisher.PublishOccurrence(ctx, msg); err != nil {
			slog.ErrorContext(ctx, "Failed to publish occurrence",
				log.FieldComponent, log.ComponentScheduler,
				log.FieldRuleID, rule.ID,
				log.FieldError, err)
			continue
		}

		d.published[rule.ID] = rule.NextScheduledAt
		count++
	}

	// Rules that executed, changed or disappeared no longer show up as
	// due; drop their in-flight markers so the map tracks only open runs.
	for id := range d.published {
		if _, ok := seen[id]; !ok {
			delete(d.published, id)
		}
	}

	if count > 0 {
		slog.InfoContext(ctx, "Dispatched due rules",
			log.FieldOperation, log.OpDispatch,
			"count", count)
	}
	return count
}
