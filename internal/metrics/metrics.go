// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// SubmissionsTotal counts attendance submissions by outcome: "accepted" or
// the rejection kind.
var SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "attendance_submissions_total",
	Help: "Attendance submissions by outcome.",
}, []string{"outcome"})
