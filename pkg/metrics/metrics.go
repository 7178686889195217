package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Moves counts drag-and-drop moves by the kind of occupant update issued.
	Moves = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ionm_board_moves_total",
		Help: "Drag-and-drop moves applied to the assignment board.",
	}, []string{"outcome"})

	DutyCommits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ionm_board_duty_commits_total",
		Help: "Duty edits written to the store.",
	})

	Resets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ionm_board_resets_total",
		Help: "Board resets applied.",
	})

	WriteFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ionm_board_write_failures_total",
		Help: "Store writes rejected, by operation.",
	}, []string{"op"})

	FeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ionm_board_feed_events_total",
		Help: "Change feed events merged into live sessions.",
	}, []string{"type"})

	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ionm_board_active_sessions",
		Help: "Live board sessions currently subscribed to the change feed.",
	})
)
