package queue

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Item is the durable unit of work: one scheduled notification attempt.
// The payload is produced by a renderer and never interpreted here.
type Item struct {
	ID           uuid.UUID         `json:"id"`
	UserID       string            `json:"user_id"`
	Payload      json.RawMessage   `json:"payload"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	Priority     Priority          `json:"priority"`
	RetryCount   int               `json:"retry_count"`
	MaxRetries   int               `json:"max_retries"`
	Status       Status            `json:"status"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	LastAttempt  *time.Time        `json:"last_attempt,omitempty"`
}

// Status is the delivery lifecycle state of an item.
//
// Transitions:
//
//	pending -> processing -> sent       (delivered)
//	pending -> processing -> pending    (retry with backoff)
//	pending -> processing -> failed     (retries exhausted)
//	pending -> cancelled                (explicit cancel)
//
// sent, failed and cancelled are terminal; terminal items only leave the
// store through ClearCompleted.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusFailed || s == StatusCancelled
}

// Priority is the symbolic urgency level of an item. It is persisted as the
// symbolic name; the ordinal mapping is applied only when ordering a
// dispatch batch.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Ordinal maps a priority to its sort weight. Unknown or empty levels rank
// as normal.
func (p Priority) Ordinal() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityHigh:
		return 3
	case PriorityUrgent:
		return 4
	default:
		return 2
	}
}

// Clone returns a deep copy of the item so store internals never alias
// caller-held values.
func (it *Item) Clone() *Item {
	cp := *it
	if it.Payload != nil {
		cp.Payload = append(json.RawMessage(nil), it.Payload...)
	}
	if it.ErrorMessage != nil {
		msg := *it.ErrorMessage
		cp.ErrorMessage = &msg
	}
	if it.LastAttempt != nil {
		at := *it.LastAttempt
		cp.LastAttempt = &at
	}
	if it.Metadata != nil {
		cp.Metadata = make(map[string]string, len(it.Metadata))
		for k, v := range it.Metadata {
			cp.Metadata[k] = v
		}
	}
	return &cp
}
