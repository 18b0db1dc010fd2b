// Package metrics holds the prometheus collectors served on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SessionsOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_opened_total",
		Help: "Check-in windows opened or reopened.",
	})
	SessionsClosed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "attendance_sessions_closed_total",
		Help: "Check-in windows closed by a teacher.",
	})
	Checkins = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_checkins_total",
		Help: "Student check-in attempts by result code.",
	}, []string{"result"})
	RosterSource = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_roster_source_total",
		Help: "Roster resolutions by the source that served them.",
	}, []string{"source"})
	ScoreDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_score_deliveries_total",
		Help: "Score webhook deliveries by outcome.",
	}, []string{"outcome"})
)
