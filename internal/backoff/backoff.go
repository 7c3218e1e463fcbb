// Package backoff maps failed delivery attempts to retry delays and
// terminal failure.
package backoff

import (
	"time"

	"github.com/sloreti/chime/internal/queue"
)

// DefaultBaseDelay yields the standard retry sequence of
// 5, 10, 20, ... minutes.
const DefaultBaseDelay = 5 * time.Minute

// Policy decides what happens to an item after a failed dispatch attempt.
// The base delay is configured per dispatcher, not per item; the scheduler's
// per-call RetryDelay option is not consulted here.
type Policy struct {
	// BaseDelay is the delay after the first failure; each subsequent
	// failure doubles it. Zero means DefaultBaseDelay.
	BaseDelay time.Duration
}

// Delay returns how long to wait after the given failed attempt
// (attempt >= 1). Delays double per attempt: base, 2x, 4x, ...
func (p Policy) Delay(attempt int) time.Duration {
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Apply records a failed attempt on the item. Within the retry budget the
// item goes back to pending with ScheduledFor pushed out by the backoff
// delay; once RetryCount reaches MaxRetries the item is terminally failed
// and ScheduledFor is left untouched.
func (p Policy) Apply(item *queue.Item, now time.Time) {
	item.RetryCount++
	if item.RetryCount >= item.MaxRetries {
		item.Status = queue.StatusFailed
		return
	}
	item.Status = queue.StatusPending
	item.ScheduledFor = now.Add(p.Delay(item.RetryCount))
}
