// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"maps"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/pkg/aggregator"
)

// Harness binds a check to a fresh aggregator driven by a mock clock, so check tests
// can assert on what a collection cycle emits.
type Harness struct {
	Clock      *clock.Mock
	Aggregator *aggregator.Aggregator
}

func NewHarness(t *testing.T, mod Module) *Harness {
	t.Helper()

	clk := clock.NewMock()
	clk.Set(time.Unix(1700000000, 0))

	agg, err := aggregator.New(aggregator.Config{Clock: clk})
	require.NoError(t, err)

	mod.GetBase().Sender = NewSender(agg, nil, mod.GetBase().Logger)

	return &Harness{Clock: clk, Aggregator: agg}
}

// Collect runs one Collect and flushes. Series are keyed as name{k=v,...}.
func (h *Harness) Collect(t *testing.T, mod Module) map[string]float64 {
	t.Helper()

	require.NoError(t, mod.Collect(context.Background()))
	return SeriesValues(h.Aggregator.Flush())
}

// CollectTwice runs two collections interval apart, as needed for rate series.
// It returns the values of the second flush.
func (h *Harness) CollectTwice(t *testing.T, mod Module, interval time.Duration) map[string]float64 {
	t.Helper()

	h.Collect(t, mod)
	h.Clock.Add(interval)
	return h.Collect(t, mod)
}

func SeriesValues(batch []aggregator.Envelope) map[string]float64 {
	mx := make(map[string]float64, len(batch))
	for _, env := range batch {
		mx[SeriesKey(env.Measurement.Name, env.Measurement.Dimensions)] = env.Measurement.Value
	}
	return mx
}

func SeriesKey(name string, dims map[string]string) string {
	if len(dims) == 0 {
		return name
	}

	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(dims)) {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(k)
		sb.WriteByte('=')
		sb.WriteString(dims[k])
	}
	sb.WriteByte('}')
	return sb.String()
}
