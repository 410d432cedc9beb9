// SPDX-License-Identifier: GPL-3.0-or-later

package selfmon

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/emitter"
)

const namespace = "monagent"

// Sources are read on every scrape. Nil sources are not exported.
type Sources struct {
	Aggregator        func() aggregator.Stats
	Emitter           func() emitter.HTTPStats
	Cycles            func() int64
	EmitErrors        func() int64
	LastCycleDuration func() time.Duration
	StatsdReceived    func() int64
	StatsdInvalid     func() int64
}

// NewRegistry builds a registry exposing the agent internals.
func NewRegistry(src Sources) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if f := src.Aggregator; f != nil {
		reg.MustRegister(
			counterFunc("aggregator", "submissions_total", "Accepted metric submissions.", func() float64 {
				st := f()
				return float64(st.TotalSubmissions + st.IntervalSubmissions)
			}),
			counterFunc("aggregator", "discarded_total", "Samples discarded for being older than the recent point threshold.", func() float64 {
				return float64(f().Discarded)
			}),
			counterFunc("aggregator", "flush_errors_total", "Series skipped on flush because of a recovered panic.", func() float64 {
				return float64(f().FlushErrors)
			}),
			counterFunc("aggregator", "rate_conflicts_total", "Rate flushes skipped because both points shared a timestamp.", func() float64 {
				return float64(f().RateConflicts)
			}),
			counterFunc("aggregator", "evicted_total", "Idle series dropped.", func() float64 {
				return float64(f().Evicted)
			}),
			gaugeFunc("aggregator", "series", "Tracked series.", func() float64 {
				return float64(f().Series)
			}),
		)
	}
	if f := src.Emitter; f != nil {
		reg.MustRegister(
			counterFunc("emitter", "posts_total", "Delivered batch chunks.", func() float64 { return float64(f().Posted) }),
			counterFunc("emitter", "post_failures_total", "Batch chunks not delivered after retries.", func() float64 { return float64(f().Failed) }),
			counterFunc("emitter", "post_retries_total", "Retried posts.", func() float64 { return float64(f().Retried) }),
		)
	}
	if f := src.Cycles; f != nil {
		reg.MustRegister(counterFunc("collector", "cycles_total", "Completed collection cycles.", func() float64 { return float64(f()) }))
	}
	if f := src.EmitErrors; f != nil {
		reg.MustRegister(counterFunc("collector", "emit_errors_total", "Failed batch emissions.", func() float64 { return float64(f()) }))
	}
	if f := src.LastCycleDuration; f != nil {
		reg.MustRegister(gaugeFunc("collector", "last_cycle_seconds", "Duration of the latest collection cycle.", func() float64 { return f().Seconds() }))
	}
	if f := src.StatsdReceived; f != nil {
		reg.MustRegister(counterFunc("statsd", "samples_total", "Accepted statsd samples.", func() float64 { return float64(f()) }))
	}
	if f := src.StatsdInvalid; f != nil {
		reg.MustRegister(counterFunc("statsd", "invalid_total", "Rejected statsd lines.", func() float64 { return float64(f()) }))
	}

	return reg
}

// Serve exposes reg at /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry) error {
	log := logger.New().With(slog.String("component", "selfmon"))

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()

	log.Infof("serving self metrics on http://%s/metrics", ln.Addr())

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func counterFunc(subsystem, name, help string, f func() float64) prometheus.Collector {
	return prometheus.NewCounterFunc(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, f)
}

func gaugeFunc(subsystem, name, help string, f func() float64) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, f)
}
