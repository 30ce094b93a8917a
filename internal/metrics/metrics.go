// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "budget_guardian"

// Result label values.
const (
	ResultSuccess = "success"
	ResultError   = "error"
	ResultSkipped = "skipped"
)

// ThresholdChecks counts threshold check runs by result.
var ThresholdChecks = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "threshold_checks_total",
	Help:      "Total threshold check runs by result.",
}, []string{"result"})

// ThresholdCheckDuration observes how long a threshold check takes.
var ThresholdCheckDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: namespace,
	Name:      "threshold_check_duration_seconds",
	Help:      "Duration of threshold check runs.",
	Buckets:   prometheus.DefBuckets,
})

// NotificationsCreated counts stored notifications by type.
var NotificationsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_created_total",
	Help:      "Total budget notifications created by type.",
}, []string{"type"})

// AlertDeliveries counts notifier sends by notifier and result.
var AlertDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "alert_deliveries_total",
	Help:      "Total alert deliveries by notifier and result.",
}, []string{"notifier", "result"})

// NotificationsPurged counts read notifications removed by retention cleanup.
var NotificationsPurged = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "notifications_purged_total",
	Help:      "Total read notifications deleted by retention cleanup.",
})
