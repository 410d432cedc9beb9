// SPDX-License-Identifier: GPL-3.0-or-later

package selfmon

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/emitter"
)

func TestNewRegistry(t *testing.T) {
	agg, err := aggregator.New(aggregator.Config{})
	require.NoError(t, err)
	agg.Mute()
	require.NoError(t, agg.Gauge("a", 1))
	require.NoError(t, agg.Gauge("b", 1))
	agg.Flush()

	reg := NewRegistry(Sources{
		Aggregator:        agg.Stats,
		Emitter:           func() emitter.HTTPStats { return emitter.HTTPStats{Posted: 4, Failed: 1} },
		Cycles:            func() int64 { return 7 },
		LastCycleDuration: func() time.Duration { return 1500 * time.Millisecond },
	})

	expected := `
# HELP monagent_aggregator_series Tracked series.
# TYPE monagent_aggregator_series gauge
monagent_aggregator_series 2
# HELP monagent_aggregator_submissions_total Accepted metric submissions.
# TYPE monagent_aggregator_submissions_total counter
monagent_aggregator_submissions_total 2
# HELP monagent_collector_cycles_total Completed collection cycles.
# TYPE monagent_collector_cycles_total counter
monagent_collector_cycles_total 7
# HELP monagent_collector_last_cycle_seconds Duration of the latest collection cycle.
# TYPE monagent_collector_last_cycle_seconds gauge
monagent_collector_last_cycle_seconds 1.5
# HELP monagent_emitter_post_failures_total Batch chunks not delivered after retries.
# TYPE monagent_emitter_post_failures_total counter
monagent_emitter_post_failures_total 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"monagent_aggregator_series",
		"monagent_aggregator_submissions_total",
		"monagent_collector_cycles_total",
		"monagent_collector_last_cycle_seconds",
		"monagent_emitter_post_failures_total",
	)
	assert.NoError(t, err)
}

func TestNewRegistry_Handler(t *testing.T) {
	reg := NewRegistry(Sources{StatsdReceived: func() int64 { return 3 }})

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "monagent_statsd_samples_total 3")
	assert.NotContains(t, rec.Body.String(), "monagent_aggregator_series")
}

func TestNewRegistry_RateConflictsAreNotFlushErrors(t *testing.T) {
	agg, err := aggregator.New(aggregator.Config{})
	require.NoError(t, err)
	agg.Mute()

	ts := time.Now()
	require.NoError(t, agg.Rate("disk.io", 10, aggregator.WithTimestamp(ts)))
	require.NoError(t, agg.Rate("disk.io", 20, aggregator.WithTimestamp(ts)))
	agg.Flush()

	reg := NewRegistry(Sources{Aggregator: agg.Stats})

	expected := `
# HELP monagent_aggregator_flush_errors_total Series skipped on flush because of a recovered panic.
# TYPE monagent_aggregator_flush_errors_total counter
monagent_aggregator_flush_errors_total 0
# HELP monagent_aggregator_rate_conflicts_total Rate flushes skipped because both points shared a timestamp.
# TYPE monagent_aggregator_rate_conflicts_total counter
monagent_aggregator_rate_conflicts_total 1
`
	err = testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"monagent_aggregator_flush_errors_total",
		"monagent_aggregator_rate_conflicts_total",
	)
	assert.NoError(t, err)
}
