package types

import (
	"encoding/json"
	"time"
)

// LifecycleEvent is a number or balance state change delivered to notification consumers
type LifecycleEvent struct {
	ID        string          `json:"id"`
	EventName string          `json:"event_name"`
	UserID    string          `json:"user_id"`
	NumberID  string          `json:"number_id,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// number event names
const (
	EventNumberHeld          = "number.held"
	EventNumberHoldCancelled = "number.hold_cancelled"
	EventNumberHoldExpired   = "number.hold_expired"
	EventNumberPurchased     = "number.purchased"
	EventNumberReleased      = "number.released"
)

// balance event names
const (
	EventBalanceToppedUp = "balance.topped_up"
)

// RefundPending is queued when a refund or purchase rollback could not be
// credited inline. The idempotency key makes redelivery safe.
type RefundPending struct {
	UserID         string            `json:"user_id"`
	NumberID       string            `json:"number_id"`
	Amount         int64             `json:"amount"`
	Reason         TransactionReason `json:"reason"`
	IdempotencyKey string            `json:"idempotency_key"`
	FirstFailedAt  time.Time         `json:"first_failed_at"`
	LastError      string            `json:"last_error,omitempty"`

	// set on purchase rollbacks: the debit being voided and the number
	// version it was taken against
	DebitID       string `json:"debit_id,omitempty"`
	NumberVersion int64  `json:"number_version,omitempty"`
}

// NewLifecycleEvent builds an event; payload is marshalled as-is and dropped if it cannot be encoded
func NewLifecycleEvent(name, userID, numberID string, payload interface{}, at time.Time) *LifecycleEvent {
	event := &LifecycleEvent{
		ID:        GenerateUUIDWithPrefix(UUID_PREFIX_EVENT),
		EventName: name,
		UserID:    userID,
		NumberID:  numberID,
		Timestamp: at.UTC(),
	}
	if payload != nil {
		if b, err := json.Marshal(payload); err == nil {
			event.Payload = b
		}
	}
	return event
}
