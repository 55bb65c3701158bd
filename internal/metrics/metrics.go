// Package metrics holds the gateway's prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scans counts scan events by outcome: marked, duplicate, busy, failed,
	// cancelled.
	Scans = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classsync_scans_total",
		Help: "Scan events handled by scan surfaces, by outcome.",
	}, []string{"outcome"})

	// Submissions counts mark-attendance requests by whether coordinates
	// were attached (with, without).
	Submissions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classsync_submissions_total",
		Help: "Mark-attendance requests sent to the backend.",
	}, []string{"location"})

	Toasts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classsync_toasts_total",
		Help: "Toasts pushed, by type.",
	}, []string{"type"})

	// TimetableFetches counts where a weekly timetable came from: live,
	// cache or none.
	TimetableFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "classsync_timetable_fetch_total",
		Help: "Timetable lookups, by source.",
	}, []string{"source"})
)

func init() {
	prometheus.MustRegister(Scans, Submissions, Toasts, TimetableFetches)
}

// Handler serves the default registry.
func Handler() http.Handler { return promhttp.Handler() }
