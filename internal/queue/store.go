// Package queue defines the scheduled-notification queue model and the
// pluggable store that holds items until they are due.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Store errors.
var (
	ErrNotFound = errors.New("queue item not found")
	// ErrNotClaimable is returned by Claim when the item is no longer
	// pending, typically because it was cancelled or another instance
	// claimed it first.
	ErrNotClaimable = errors.New("queue item not claimable")
)

// Store is the durable holder of queue items. Implementations must make
// Claim atomic: in a multi-instance deployment two dispatchers racing on
// the same item must not both succeed.
type Store interface {
	Create(ctx context.Context, item *Item) error
	Get(ctx context.Context, id uuid.UUID) (*Item, error)
	Update(ctx context.Context, item *Item) error

	// ListDue returns pending items with ScheduledFor <= now, ordered by
	// priority descending then ScheduledFor ascending, capped at limit
	// (limit <= 0 means no cap).
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Item, error)

	// ListPendingByUser returns a user's pending items ordered by
	// ScheduledFor ascending.
	ListPendingByUser(ctx context.Context, userID string) ([]*Item, error)

	// Claim transitions a pending item to processing and records the
	// attempt time, returning the claimed item. Returns ErrNotClaimable
	// if the item is not pending and ErrNotFound if it does not exist.
	Claim(ctx context.Context, id uuid.UUID, at time.Time) (*Item, error)

	// CountByStatus returns the number of items per status.
	CountByStatus(ctx context.Context) (map[Status]int, error)

	// PurgeTerminal deletes all sent, failed and cancelled items and
	// returns how many were removed.
	PurgeTerminal(ctx context.Context) (int, error)

	Delete(ctx context.Context, id uuid.UUID) error
}
