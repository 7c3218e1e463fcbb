// Package scheduler is the public API of the notification core: it accepts
// requests to deliver a notification at a future time, applies preference
// and quiet-hours rules, and writes queue items for the dispatch loop.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sloreti/chime/internal/clock"
	"github.com/sloreti/chime/internal/metrics"
	"github.com/sloreti/chime/internal/prefs"
	"github.com/sloreti/chime/internal/queue"
	"github.com/sloreti/chime/internal/render"
	"github.com/sloreti/chime/internal/schedule"
)

// DefaultMaxRetries is the retry ceiling applied when options leave it
// unset.
const DefaultMaxRetries = 3

// Options control a single schedule request.
type Options struct {
	// ScheduledFor is when the item becomes eligible for dispatch. A past
	// time dispatches on the next tick.
	ScheduledFor time.Time

	// Timezone is the IANA zone used for recurrence expansion and as a
	// fallback when the user's quiet hours carry no zone of their own.
	Timezone string

	// IgnoreQuietHours skips the quiet-hours deferral. The zero value
	// respects quiet hours.
	IgnoreQuietHours bool

	// MaxRetries overrides the default dispatch retry ceiling.
	MaxRetries int

	// RetryDelay is accepted for compatibility with older callers but is
	// not consulted: the retry schedule is configured on the dispatch
	// loop's backoff policy, not per item.
	RetryDelay time.Duration

	Priority queue.Priority

	// Metadata is free-form tracing context carried on the item.
	Metadata map[string]string
}

// Scheduler writes scheduled notifications to the queue store. All
// collaborators are injected; the scheduler holds no global state.
type Scheduler struct {
	store    queue.Store
	prefs    prefs.Provider
	renderer render.Renderer
	clock    clock.Clock
	logger   *zap.Logger
}

// New creates a Scheduler. A nil clk falls back to the system clock.
func New(store queue.Store, provider prefs.Provider, renderer render.Renderer, clk clock.Clock, logger *zap.Logger) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Scheduler{
		store:    store,
		prefs:    provider,
		renderer: renderer,
		clock:    clk,
		logger:   logger,
	}
}

// Schedule validates the request, renders the payload and persists one
// pending queue item, returning its id. No item is created when
// preferences reject the notification or rendering fails.
func (s *Scheduler) Schedule(ctx context.Context, userID, templateRef string, data map[string]any, opts Options) (uuid.UUID, error) {
	if userID == "" {
		metrics.RecordScheduleRejected("missing_user")
		return uuid.Nil, ErrMissingUser
	}

	p, err := s.prefs.GetPreferences(ctx, userID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("get preferences: %w", err)
	}
	if !p.Enabled {
		metrics.RecordScheduleRejected("preferences_disabled")
		return uuid.Nil, fmt.Errorf("%w: %s", ErrPreferencesDisabled, userID)
	}

	rendered, err := s.renderer.Render(ctx, templateRef, data)
	if err != nil {
		metrics.RecordScheduleRejected("render")
		return uuid.Nil, fmt.Errorf("render template: %w", err)
	}
	if !p.CategoryEnabled(rendered.Category) {
		metrics.RecordScheduleRejected("category_disabled")
		return uuid.Nil, fmt.Errorf("%w: %s", ErrCategoryDisabled, rendered.Category)
	}

	scheduledFor := opts.ScheduledFor
	if scheduledFor.IsZero() {
		scheduledFor = s.clock.Now()
	}

	if !opts.IgnoreQuietHours {
		qh := p.QuietHours
		if qh.Timezone == "" {
			qh.Timezone = opts.Timezone
		}
		adjusted, err := schedule.AdjustForQuietHours(scheduledFor, qh)
		if err != nil {
			// A malformed window never blocks scheduling.
			s.logger.Warn("ignoring malformed quiet hours",
				zap.Error(err),
				zap.String("user_id", userID),
			)
		} else {
			if !adjusted.Equal(scheduledFor) {
				metrics.RecordQuietHoursDeferral()
			}
			scheduledFor = adjusted
		}
	}

	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	priority := opts.Priority
	if priority == "" {
		priority = queue.PriorityNormal
	}

	metadata := make(map[string]string, len(opts.Metadata)+1)
	for k, v := range opts.Metadata {
		metadata[k] = v
	}
	metadata["template"] = templateRef

	item := &queue.Item{
		ID:           uuid.New(),
		UserID:       userID,
		Payload:      rendered.Payload,
		ScheduledFor: scheduledFor,
		Priority:     priority,
		MaxRetries:   maxRetries,
		Status:       queue.StatusPending,
		Metadata:     metadata,
		CreatedAt:    s.clock.Now(),
	}

	if err := s.store.Create(ctx, item); err != nil {
		return uuid.Nil, fmt.Errorf("persist queue item: %w", err)
	}

	metrics.RecordScheduled(string(priority))
	s.logger.Info("notification scheduled",
		zap.String("item_id", item.ID.String()),
		zap.String("user_id", userID),
		zap.String("template", templateRef),
		zap.Time("scheduled_for", scheduledFor),
		zap.String("priority", string(priority)),
	)

	return item.ID, nil
}

// Cancel marks a non-terminal item cancelled. It returns false without
// error when the item does not exist or has already reached a terminal
// state. A cancel racing an in-flight dispatch is accepted but does not
// retract a delivery already handed to the gateway.
func (s *Scheduler) Cancel(ctx context.Context, id uuid.UUID) (bool, error) {
	item, err := s.store.Get(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get queue item: %w", err)
	}
	if item.Status.Terminal() {
		return false, nil
	}

	item.Status = queue.StatusCancelled
	if err := s.store.Update(ctx, item); err != nil {
		return false, fmt.Errorf("update queue item: %w", err)
	}

	s.logger.Info("notification cancelled", zap.String("item_id", id.String()))
	return true, nil
}

// Reschedule moves an item to a new time as a fresh scheduling attempt:
// status returns to pending and the retry count resets. Returns false
// without error when the item is missing or already sent.
func (s *Scheduler) Reschedule(ctx context.Context, id uuid.UUID, newTime time.Time) (bool, error) {
	item, err := s.store.Get(ctx, id)
	if errors.Is(err, queue.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get queue item: %w", err)
	}
	if item.Status == queue.StatusSent {
		return false, nil
	}

	item.ScheduledFor = newTime
	item.Status = queue.StatusPending
	item.RetryCount = 0
	item.ErrorMessage = nil
	if err := s.store.Update(ctx, item); err != nil {
		return false, fmt.Errorf("update queue item: %w", err)
	}

	s.logger.Info("notification rescheduled",
		zap.String("item_id", id.String()),
		zap.Time("scheduled_for", newTime),
	)
	return true, nil
}

// Status returns the item by id.
func (s *Scheduler) Status(ctx context.Context, id uuid.UUID) (*queue.Item, error) {
	return s.store.Get(ctx, id)
}

// UserPending returns a user's pending items ordered by scheduled time.
func (s *Scheduler) UserPending(ctx context.Context, userID string) ([]*queue.Item, error) {
	return s.store.ListPendingByUser(ctx, userID)
}

// BulkItem is one entry of a bulk schedule request.
type BulkItem struct {
	UserID      string
	TemplateRef string
	Data        map[string]any
	Options     Options
}

// BulkResult pairs a bulk entry with its outcome. Exactly one of ID and
// Err is meaningful.
type BulkResult struct {
	ID  uuid.UUID
	Err error
}

// ScheduleBulk schedules each item independently; one entry's validation
// failure never aborts the rest. The result slice is positionally aligned
// with the input.
func (s *Scheduler) ScheduleBulk(ctx context.Context, items []BulkItem) []BulkResult {
	results := make([]BulkResult, len(items))
	for i, item := range items {
		id, err := s.Schedule(ctx, item.UserID, item.TemplateRef, item.Data, item.Options)
		if err != nil {
			s.logger.Warn("bulk schedule entry failed",
				zap.Int("index", i),
				zap.String("user_id", item.UserID),
				zap.Error(err),
			)
		}
		results[i] = BulkResult{ID: id, Err: err}
	}
	return results
}

// ScheduleRecurring expands the pattern into concrete occurrences between
// now and the pattern's end date and schedules one notification per
// occurrence. Per-occurrence failures are isolated; the returned ids cover
// the occurrences that were scheduled.
func (s *Scheduler) ScheduleRecurring(ctx context.Context, userID, templateRef string, data map[string]any, pattern schedule.RecurrencePattern, opts Options) ([]uuid.UUID, error) {
	loc := time.UTC
	if opts.Timezone != "" {
		var err error
		loc, err = time.LoadLocation(opts.Timezone)
		if err != nil {
			return nil, fmt.Errorf("load timezone %q: %w", opts.Timezone, err)
		}
	}

	occurrences, err := schedule.ExpandRecurrence(pattern, s.clock.Now(), loc)
	if err != nil {
		return nil, fmt.Errorf("expand recurrence: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(occurrences))
	for _, at := range occurrences {
		itemOpts := opts
		itemOpts.ScheduledFor = at
		id, err := s.Schedule(ctx, userID, templateRef, data, itemOpts)
		if err != nil {
			s.logger.Warn("recurring occurrence not scheduled",
				zap.String("user_id", userID),
				zap.Time("occurrence", at),
				zap.Error(err),
			)
			continue
		}
		ids = append(ids, id)
	}

	s.logger.Info("recurring notifications scheduled",
		zap.String("user_id", userID),
		zap.String("template", templateRef),
		zap.String("frequency", string(pattern.Frequency)),
		zap.Int("occurrences", len(ids)),
	)
	return ids, nil
}

// QueueStats returns item counts per status.
func (s *Scheduler) QueueStats(ctx context.Context) (map[queue.Status]int, error) {
	counts, err := s.store.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}
	for status, count := range counts {
		metrics.SetQueueDepth(string(status), count)
	}
	return counts, nil
}

// ClearCompleted deletes all terminal items and returns the count removed.
// This is the only deletion path for queue items.
func (s *Scheduler) ClearCompleted(ctx context.Context) (int, error) {
	removed, err := s.store.PurgeTerminal(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		s.logger.Info("cleared completed notifications", zap.Int("removed", removed))
	}
	return removed, nil
}
