package amqp

import (
	"encoding/json"
	"time"

	"moneta/internal/core"
)

// OccurrenceMessage schedules one run of a recurring rule. It carries only
// the rule id plus a snapshot of the period and interval captured when the
// run was armed; the worker re-reads the rule from the database and treats
// the snapshot purely as a staleness check.
type OccurrenceMessage struct {
	RuleID      int64                 `json:"rule_id"`
	Period      core.RecurrencePeriod `json:"period"`
	Interval    int                   `json:"interval"`
	ScheduledAt time.Time             `json:"scheduled_at"`
	Timestamp   time.Time             `json:"timestamp"`
}

// NewOccurrenceMessage captures a rule's current schedule for one run.
func NewOccurrenceMessage(rule core.RecurringRule) *OccurrenceMessage {
	return &OccurrenceMessage{
		RuleID:      rule.ID,
		Period:      rule.Period,
		Interval:    rule.Interval,
		ScheduledAt: rule.NextScheduledAt,
		Timestamp:   time.Now().UTC(),
	}
}

// ToJSON converts the message to JSON bytes.
func (m *OccurrenceMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// OccurrenceMessageFromJSON creates a message from JSON bytes.
func OccurrenceMessageFromJSON(data []byte) (*OccurrenceMessage, error) {
	var msg OccurrenceMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
