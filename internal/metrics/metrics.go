// Package metrics exposes Prometheus instrumentation for the scheduler and
// dispatch loop.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	notificationsScheduled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chime_notifications_scheduled_total",
			Help: "Total notifications scheduled by priority",
		},
		[]string{"priority"},
	)

	scheduleRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chime_schedule_rejections_total",
			Help: "Schedule requests rejected at validation time",
		},
		[]string{"reason"},
	)

	quietHoursDeferrals = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chime_quiet_hours_deferrals_total",
			Help: "Notifications deferred past a quiet-hours window",
		},
	)

	dispatchAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chime_dispatch_attempts_total",
			Help: "Dispatch attempts by outcome (sent, retry, failed)",
		},
		[]string{"outcome"},
	)

	dispatchTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "chime_dispatch_tick_duration_seconds",
			Help:    "Duration of one dispatch tick",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 5, 30},
		},
	)

	dispatchTicksSkipped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chime_dispatch_ticks_skipped_total",
			Help: "Ticks dropped because the previous tick was still running",
		},
	)

	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chime_queue_depth",
			Help: "Queue items by status",
		},
		[]string{"status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordScheduled records a successfully scheduled notification.
func RecordScheduled(priority string) {
	notificationsScheduled.WithLabelValues(priority).Inc()
}

// RecordScheduleRejected records a validation-time rejection.
func RecordScheduleRejected(reason string) {
	scheduleRejections.WithLabelValues(reason).Inc()
}

// RecordQuietHoursDeferral records a scheduled time moved past quiet hours.
func RecordQuietHoursDeferral() {
	quietHoursDeferrals.Inc()
}

// RecordDispatchAttempt records one dispatch attempt outcome.
func RecordDispatchAttempt(outcome string) {
	dispatchAttempts.WithLabelValues(outcome).Inc()
}

// RecordTickDuration records how long a dispatch tick took.
func RecordTickDuration(d time.Duration) {
	dispatchTickDuration.Observe(d.Seconds())
}

// RecordTickSkipped records a dropped overlapping tick.
func RecordTickSkipped() {
	dispatchTicksSkipped.Inc()
}

// SetQueueDepth sets the current item count for a status.
func SetQueueDepth(status string, count int) {
	queueDepth.WithLabelValues(status).Set(float64(count))
}
