// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"math"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/monagent/monagent/logger"
)

const defaultRecentPointThreshold = time.Hour

// Config is the explicit aggregator configuration built once at agent start.
type Config struct {
	// Hostname is added as the "hostname" dimension unless a submission carries one.
	Hostname string
	// Dimensions are agent-level defaults, the lowest precedence dimension layer.
	Dimensions map[string]string
	// DelegatedTenant is used when a submission does not name a tenant.
	DelegatedTenant string
	// RecentPointThreshold is the maximum age of an explicitly timestamped sample.
	RecentPointThreshold time.Duration
	// MaxIdleFlushes drops a series that had no samples for that many consecutive flushes.
	// Zero keeps every series for the process lifetime.
	MaxIdleFlushes int
	Clock          clock.Clock
}

// Stats is a snapshot of the aggregator counters.
type Stats struct {
	TotalSubmissions    int64
	IntervalSubmissions int64
	Discarded           int64
	// FlushErrors counts series skipped because their flush panicked.
	FlushErrors int64
	// RateConflicts counts rate flushes whose two points shared a timestamp.
	RateConflicts int64
	Evicted       int64
	Series        int
}

type series struct {
	id        identity
	key       string
	kind      Kind
	metric    metric
	valueMeta map[string]string
	touched   bool
	idle      int
	// kindWarned is set once a sample of another kind was seen for this identity.
	kindWarned bool
}

// Aggregator owns every time series of the agent and produces flush batches.
// It is safe for concurrent use.
type Aggregator struct {
	*logger.Logger

	hostname      string
	dims          map[string]string
	tenant        string
	threshold     time.Duration
	maxIdle       int
	clock         clock.Clock
	mux           sync.Mutex
	order         []*series
	index         map[uint64][]*series
	stats         Stats
	discardedLast int64
}

// New validates cfg and returns an empty aggregator.
func New(cfg Config) (*Aggregator, error) {
	if err := validateDimensions(cfg.Dimensions); err != nil {
		return nil, fmt.Errorf("default dimensions: %w", err)
	}
	if cfg.MaxIdleFlushes < 0 {
		return nil, errors.New("max idle flushes must not be negative")
	}

	a := &Aggregator{
		Logger:    logger.New().With(slog.String("component", "aggregator")),
		hostname:  cfg.Hostname,
		dims:      maps.Clone(cfg.Dimensions),
		tenant:    cfg.DelegatedTenant,
		threshold: cfg.RecentPointThreshold,
		maxIdle:   cfg.MaxIdleFlushes,
		clock:     cfg.Clock,
		index:     make(map[uint64][]*series),
	}
	if a.threshold <= 0 {
		a.threshold = defaultRecentPointThreshold
	}
	if a.clock == nil {
		a.clock = clock.New()
	}
	return a, nil
}

// Gauge submits a KindGauge sample.
func (a *Aggregator) Gauge(name string, value float64, opts ...SubmitOption) error {
	return a.SubmitMetric(name, value, KindGauge, opts...)
}

// Increment submits a KindCounter sample.
func (a *Aggregator) Increment(name string, value float64, opts ...SubmitOption) error {
	return a.SubmitMetric(name, value, KindCounter, opts...)
}

// Decrement submits a negated KindCounter sample.
func (a *Aggregator) Decrement(name string, value float64, opts ...SubmitOption) error {
	return a.SubmitMetric(name, -value, KindCounter, opts...)
}

// Rate submits a KindRate sample.
func (a *Aggregator) Rate(name string, value float64, opts ...SubmitOption) error {
	return a.SubmitMetric(name, value, KindRate, opts...)
}

// SubmitMetric validates a sample and forwards it to the series of its identity.
// A malformed submission returns *ValidationError and changes nothing.
// A sample older than the recent point threshold is dropped without an error.
func (a *Aggregator) SubmitMetric(name string, value float64, kind Kind, opts ...SubmitOption) error {
	cfg := newSubmitConfig(opts)

	id := a.resolveIdentity(name, cfg)

	if err := validateName(name); err != nil {
		return err
	}
	if err := validateDimensions(id.dims); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}
	if err := validateValueMeta(cfg.valueMeta); err != nil {
		return err
	}

	a.mux.Lock()
	defer a.mux.Unlock()

	now := a.clock.Now()
	ts := cfg.timestamp
	if ts.IsZero() {
		ts = now
	} else if now.Sub(ts) > a.threshold {
		a.stats.Discarded++
		return nil
	}

	if kind == KindCounter {
		if inc := value / cfg.sampleRate; math.IsNaN(inc) || math.IsInf(inc, 0) {
			a.Warningf("metric '%s': dropping sample: %v: %v/%v", name, errNonFiniteIncrement, value, cfg.sampleRate)
			return nil
		}
	}

	s, err := a.lookupOrCreate(id, kind)
	if err != nil {
		return err
	}

	a.stats.IntervalSubmissions++

	if err := s.metric.sample(value, cfg.sampleRate, ts); err != nil {
		a.Warningf("metric '%s': dropping sample: %v", name, err)
		return nil
	}

	s.touched = true
	s.valueMeta = maps.Clone(cfg.valueMeta)

	return nil
}

func (a *Aggregator) resolveIdentity(name string, cfg submitConfig) identity {
	dims := MergeDimensions(a.dims, cfg.dimensions, cfg.instanceDimensions)

	hostname := a.hostname
	if cfg.hostnameSet {
		hostname = cfg.hostname
	}
	if hostname == SuppressHostname {
		hostname = ""
	}
	if _, ok := dims["hostname"]; !ok && hostname != "" {
		dims["hostname"] = hostname
	}

	if cfg.deviceName != "" {
		dims["device"] = cfg.deviceName
	}

	tenant := a.tenant
	if cfg.tenantSet {
		tenant = cfg.tenant
	}

	return identity{
		name:     name,
		dims:     dims,
		tenant:   tenant,
		hostname: hostname,
		device:   cfg.deviceName,
	}
}

func (a *Aggregator) lookupOrCreate(id identity, kind Kind) (*series, error) {
	key := id.key()
	hash := hashKey(key)

	for _, s := range a.index[hash] {
		if s.key != key {
			continue
		}
		if s.kind != kind && !s.kindWarned {
			s.kindWarned = true
			a.Warningf("metric '%s' is a %s, %s samples are applied with %s semantics", id.name, s.kind, kind, s.kind)
		}
		return s, nil
	}

	m, err := newMetric(kind)
	if err != nil {
		return nil, err
	}

	s := &series{id: id, key: key, kind: kind, metric: m}
	a.index[hash] = append(a.index[hash], s)
	a.order = append(a.order, s)

	return s, nil
}

// Flush drains every series with a pending point into a batch of envelopes.
// A failing series is logged and skipped. The result is never nil.
func (a *Aggregator) Flush() []Envelope {
	a.mux.Lock()
	defer a.mux.Unlock()

	batch := make([]Envelope, 0, len(a.order))

	for _, s := range a.order {
		if env, ok := a.flushSeries(s); ok {
			batch = append(batch, env)
		}
	}

	a.stats.TotalSubmissions += a.stats.IntervalSubmissions
	a.stats.IntervalSubmissions = 0

	if n := a.stats.Discarded - a.discardedLast; n > 0 {
		a.Warningf("discarded %d points older than %s", n, a.threshold)
		a.discardedLast = a.stats.Discarded
	}

	a.evictIdle()

	return batch
}

func (a *Aggregator) flushSeries(s *series) (env Envelope, ok bool) {
	defer func() {
		if v := recover(); v != nil {
			a.stats.FlushErrors++
			ok = false
			a.Errorf("metric '%s': panic on flush: %v", s.id.name, v)
			if logger.Level.Enabled(slog.LevelDebug) {
				a.Debugf("%s", debug.Stack())
			}
		}
	}()

	if s.touched {
		s.idle = 0
	} else {
		s.idle++
	}
	s.touched = false

	p, ok, err := s.metric.flush()
	if err != nil {
		a.stats.RateConflicts++
		a.Warningf("metric '%s': %v, baseline moved to the latest sample", s.id.name, err)
		return Envelope{}, false
	}
	if !ok {
		return Envelope{}, false
	}

	env = Envelope{
		Measurement: Measurement{
			Name:       s.id.name,
			Dimensions: maps.Clone(s.id.dims),
			Value:      p.value,
			Timestamp:  p.ts.UnixMilli(),
			ValueMeta:  s.valueMeta,
		},
	}
	if s.id.tenant != "" {
		tenant := s.id.tenant
		env.TenantID = &tenant
	}
	s.valueMeta = nil

	return env, true
}

func (a *Aggregator) evictIdle() {
	if a.maxIdle <= 0 {
		return
	}

	kept := a.order[:0]
	for _, s := range a.order {
		if s.idle < a.maxIdle {
			kept = append(kept, s)
			continue
		}
		a.stats.Evicted++
		a.removeFromIndex(s)
	}
	clear(a.order[len(kept):])
	a.order = kept
}

func (a *Aggregator) removeFromIndex(s *series) {
	hash := hashKey(s.key)
	bucket := a.index[hash]
	for i, v := range bucket {
		if v == s {
			bucket = append(bucket[:i], bucket[i+1:]...)
			break
		}
	}
	if len(bucket) == 0 {
		delete(a.index, hash)
		return
	}
	a.index[hash] = bucket
}

// Stats returns a snapshot of the aggregator counters.
func (a *Aggregator) Stats() Stats {
	a.mux.Lock()
	defer a.mux.Unlock()

	st := a.stats
	st.Series = len(a.order)
	return st
}
