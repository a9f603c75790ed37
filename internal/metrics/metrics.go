package metrics

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ActiveCallsProvider exposes the number of calls currently in progress.
type ActiveCallsProvider interface {
	ActiveCallCount() int
}

// ExitReasonCounter returns completed call counts grouped by exit reason.
type ExitReasonCounter interface {
	CountByExitReason(ctx context.Context) (map[string]int, error)
}

// knownExitReasons keeps the calls_total series stable across scrapes
// even before the first call with a given reason lands.
var knownExitReasons = []string{
	"user_exit", "ai_exit", "no_response", "failed_interactions",
	"timeout", "disconnected", "max_turns_reached", "error",
}

// Collector is a prometheus.Collector that gathers VoiceGate metrics at scrape time.
type Collector struct {
	activeCalls ActiveCallsProvider
	calls       ExitReasonCounter
	startTime   time.Time

	// Metric descriptors.
	activeCallsDesc *prometheus.Desc
	callsTotalDesc  *prometheus.Desc
	uptimeDesc      *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if unavailable.
func NewCollector(activeCalls ActiveCallsProvider, calls ExitReasonCounter, startTime time.Time) *Collector {
	return &Collector{
		activeCalls: activeCalls,
		calls:       calls,
		startTime:   startTime,

		activeCallsDesc: prometheus.NewDesc(
			"voicegate_active_calls",
			"Number of calls currently being handled",
			nil, nil,
		),
		callsTotalDesc: prometheus.NewDesc(
			"voicegate_calls_total",
			"Total number of completed calls by exit reason",
			[]string{"exit_reason"}, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"voicegate_uptime_seconds",
			"Seconds since the VoiceGate process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.activeCallsDesc
	ch <- c.callsTotalDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if c.activeCalls != nil {
		ch <- prometheus.MustNewConstMetric(
			c.activeCallsDesc, prometheus.GaugeValue,
			float64(c.activeCalls.ActiveCallCount()),
		)
	}

	if c.calls != nil {
		counts, err := c.calls.CountByExitReason(ctx)
		if err != nil {
			slog.Error("metrics: failed to count calls by exit reason", "error", err)
		} else {
			for _, reason := range knownExitReasons {
				ch <- prometheus.MustNewConstMetric(
					c.callsTotalDesc, prometheus.CounterValue,
					float64(counts[reason]), reason,
				)
			}
		}
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
