// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import (
	"fmt"
	"math"
	"time"
)

// Kind selects the accumulation semantics of a time series.
type Kind int

const (
	// KindGauge keeps the last sampled value.
	KindGauge Kind = iota
	// KindCounter sums sampled increments and emits the truncated total.
	KindCounter
	// KindRate emits the per-second derivative between two consecutive points.
	KindRate
)

func (k Kind) String() string {
	switch k {
	case KindGauge:
		return "gauge"
	case KindCounter:
		return "counter"
	case KindRate:
		return "rate"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

type point struct {
	value float64
	ts    time.Time
}

type metric interface {
	sample(value, sampleRate float64, ts time.Time) error
	// flush returns the pending point, if any, and resets the pending state.
	flush() (point, bool, error)
}

func newMetric(kind Kind) (metric, error) {
	switch kind {
	case KindGauge:
		return &gauge{}, nil
	case KindCounter:
		return &counter{}, nil
	case KindRate:
		return &rate{}, nil
	default:
		return nil, fmt.Errorf("aggregator: unknown metric kind %d", int(kind))
	}
}

type gauge struct {
	cur *point
}

func (g *gauge) sample(value, _ float64, ts time.Time) error {
	g.cur = &point{value: value, ts: ts}
	return nil
}

func (g *gauge) flush() (point, bool, error) {
	if g.cur == nil {
		return point{}, false, nil
	}
	p := *g.cur
	g.cur = nil
	return p, true, nil
}

type counter struct {
	cur *point
}

func (c *counter) sample(value, sampleRate float64, ts time.Time) error {
	inc := value / sampleRate
	if math.IsNaN(inc) || math.IsInf(inc, 0) {
		return fmt.Errorf("%w: %v/%v", errNonFiniteIncrement, value, sampleRate)
	}
	if c.cur == nil {
		c.cur = &point{value: inc, ts: ts}
		return nil
	}
	c.cur.value += inc
	c.cur.ts = ts
	return nil
}

func (c *counter) flush() (point, bool, error) {
	if c.cur == nil {
		return point{}, false, nil
	}
	p := point{value: math.Trunc(c.cur.value), ts: c.cur.ts}
	c.cur = nil
	return p, true, nil
}

// rate keeps a rolling baseline: a computed point's end becomes the next start.
type rate struct {
	start *point
	cur   *point
}

func (r *rate) sample(value, _ float64, ts time.Time) error {
	p := &point{value: value, ts: ts}
	if r.start == nil {
		r.start = p
		return nil
	}
	r.cur = p
	return nil
}

func (r *rate) flush() (point, bool, error) {
	if r.start == nil || r.cur == nil {
		return point{}, false, nil
	}

	start, cur := r.start, r.cur
	r.start, r.cur = cur, nil

	delta := cur.ts.Sub(start.ts).Seconds()
	if delta == 0 {
		return point{}, false, errRateTimeConflict
	}

	return point{value: (cur.value - start.value) / delta, ts: cur.ts}, true, nil
}
