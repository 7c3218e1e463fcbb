// Package dispatch runs the periodic loop that delivers due queue items
// through the gateway and applies retry backoff on failure.
package dispatch

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sloreti/chime/internal/backoff"
	"github.com/sloreti/chime/internal/clock"
	"github.com/sloreti/chime/internal/gateway"
	"github.com/sloreti/chime/internal/metrics"
	"github.com/sloreti/chime/internal/queue"
	"github.com/sloreti/chime/internal/track"
)

// Config holds dispatcher tuning.
type Config struct {
	// Interval between ticks. Zero means 30 seconds.
	Interval time.Duration

	// BatchSize caps the items processed per tick. Zero means 50.
	BatchSize int

	// Backoff is the retry policy applied to failed deliveries.
	Backoff backoff.Policy
}

// Dispatcher selects due items in priority order each tick, delivers them
// through the gateway and moves them through the status state machine.
// Items start dispatch strictly in the selected order; a tick that would
// overlap a still-running one is dropped, not queued.
type Dispatcher struct {
	store   queue.Store
	gateway gateway.Gateway
	sink    track.Sink
	clock   clock.Clock
	config  Config
	logger  *zap.Logger

	busy atomic.Bool
}

// New creates a Dispatcher. A nil clk falls back to the system clock and a
// nil sink disables delivery tracking.
func New(store queue.Store, gw gateway.Gateway, sink track.Sink, clk clock.Clock, cfg Config, logger *zap.Logger) *Dispatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if clk == nil {
		clk = clock.Real{}
	}

	return &Dispatcher{
		store:   store,
		gateway: gw,
		sink:    sink,
		clock:   clk,
		config:  cfg,
		logger:  logger,
	}
}

// Start runs the dispatch loop until ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	ticker := time.NewTicker(d.config.Interval)
	defer ticker.Stop()

	d.logger.Info("dispatch loop started",
		zap.Duration("interval", d.config.Interval),
		zap.Int("batch_size", d.config.BatchSize),
	)

	for {
		select {
		case <-ctx.Done():
			d.logger.Info("dispatch loop stopping")
			return
		case <-ticker.C:
			d.Tick(ctx)
		}
	}
}

// Tick runs one selection-and-delivery cycle. If a previous tick is still
// running the call is dropped entirely.
func (d *Dispatcher) Tick(ctx context.Context) {
	if !d.busy.CompareAndSwap(false, true) {
		metrics.RecordTickSkipped()
		d.logger.Debug("skipping tick, previous tick still running")
		return
	}
	defer d.busy.Store(false)

	start := time.Now()
	defer func() { metrics.RecordTickDuration(time.Since(start)) }()

	now := d.clock.Now()
	due, err := d.store.ListDue(ctx, now, d.config.BatchSize)
	if err != nil {
		d.logger.Error("failed to list due items", zap.Error(err))
		return
	}
	if len(due) == 0 {
		return
	}

	d.logger.Debug("dispatching due items", zap.Int("count", len(due)))
	for _, item := range due {
		d.dispatch(ctx, item)
	}
}

// dispatch processes one item. Store errors are isolated here so a broken
// item never aborts the rest of the tick.
func (d *Dispatcher) dispatch(ctx context.Context, item *queue.Item) {
	claimed, err := d.store.Claim(ctx, item.ID, d.clock.Now())
	if err != nil {
		// A lost claim is routine: the item was cancelled or another
		// instance got there first.
		if !errors.Is(err, queue.ErrNotClaimable) && !errors.Is(err, queue.ErrNotFound) {
			d.logger.Error("failed to claim item",
				zap.Error(err),
				zap.String("item_id", item.ID.String()),
			)
		}
		return
	}

	receipt, sendErr := d.gateway.Send(ctx, claimed.UserID, claimed.Payload)
	if sendErr == nil {
		d.complete(ctx, claimed, receipt)
		return
	}
	d.retryOrFail(ctx, claimed, sendErr)
}

func (d *Dispatcher) complete(ctx context.Context, item *queue.Item, receipt *gateway.Receipt) {
	item.Status = queue.StatusSent
	item.ErrorMessage = nil
	if err := d.store.Update(ctx, item); err != nil {
		d.logger.Error("failed to mark item sent",
			zap.Error(err),
			zap.String("item_id", item.ID.String()),
		)
		return
	}

	metrics.RecordDispatchAttempt("sent")
	d.logger.Info("notification sent",
		zap.String("item_id", item.ID.String()),
		zap.String("message_id", receipt.MessageID),
	)
	d.record(ctx, track.Event{
		ItemID:    item.ID,
		UserID:    item.UserID,
		Outcome:   track.OutcomeDelivered,
		MessageID: receipt.MessageID,
		Timestamp: d.clock.Now(),
	})
}

func (d *Dispatcher) retryOrFail(ctx context.Context, item *queue.Item, sendErr error) {
	errMsg := sendErr.Error()
	item.ErrorMessage = &errMsg
	d.config.Backoff.Apply(item, d.clock.Now())

	if err := d.store.Update(ctx, item); err != nil {
		d.logger.Error("failed to record dispatch failure",
			zap.Error(err),
			zap.String("item_id", item.ID.String()),
		)
		return
	}

	if item.Status == queue.StatusFailed {
		metrics.RecordDispatchAttempt("failed")
		d.logger.Error("notification failed permanently",
			zap.String("item_id", item.ID.String()),
			zap.Int("attempts", item.RetryCount),
			zap.String("error", errMsg),
		)
		d.record(ctx, track.Event{
			ItemID:    item.ID,
			UserID:    item.UserID,
			Outcome:   track.OutcomeFailed,
			Error:     errMsg,
			Timestamp: d.clock.Now(),
		})
		return
	}

	metrics.RecordDispatchAttempt("retry")
	d.logger.Warn("delivery failed, retry scheduled",
		zap.String("item_id", item.ID.String()),
		zap.Int("attempt", item.RetryCount),
		zap.Time("next_attempt", item.ScheduledFor),
		zap.String("error", errMsg),
	)
}

func (d *Dispatcher) record(ctx context.Context, event track.Event) {
	if d.sink == nil {
		return
	}
	d.sink.Record(ctx, event)
}
