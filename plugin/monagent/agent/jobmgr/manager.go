// SPDX-License-Identifier: GPL-3.0-or-later

package jobmgr

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"gopkg.in/yaml.v2"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/confgroup"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

const collectionTimeMetric = "monagent.collection_time_sec"

// Aggregator is the metrics sink shared by every job of a manager.
type Aggregator interface {
	module.Submitter
	Flush() []aggregator.Envelope
}

// Emitter ships a flush batch.
type Emitter interface {
	Emit(ctx context.Context, batch []aggregator.Envelope) error
}

func New() *Manager {
	return &Manager{
		Logger: logger.New().With(
			slog.String("component", "job manager"),
		),
		Modules:   module.DefaultRegistry,
		CheckFreq: 30 * time.Second,
		Clock:     clock.New(),
	}
}

// Manager runs every configured check sequentially once per collection cycle,
// then flushes the aggregator and hands the batch to the emitter.
type Manager struct {
	*logger.Logger

	Modules    module.Registry
	RunModules []string
	Aggregator Aggregator
	Emitter    Emitter
	CheckFreq  time.Duration
	Clock      clock.Clock

	running []*module.Job
	waiting []*module.Job
	cycle   int

	cycles          atomic.Int64
	emitErrors      atomic.Int64
	lastCycleMillis atomic.Int64
}

// Run builds the jobs and collects every CheckFreq until ctx is done.
func (m *Manager) Run(ctx context.Context, groups []*confgroup.Group) {
	m.Info("instance is started")
	defer func() { m.Info("instance is stopped") }()

	m.createJobs(groups)
	defer m.cleanup()

	m.runCycle(ctx)

	tk := m.Clock.Ticker(m.CheckFreq)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			m.runCycle(ctx)
		}
	}
}

// RunOnce builds the jobs, runs a single collection cycle and cleans up.
func (m *Manager) RunOnce(ctx context.Context, groups []*confgroup.Group) error {
	m.createJobs(groups)
	defer m.cleanup()

	if len(m.running)+len(m.waiting) == 0 {
		return fmt.Errorf("no jobs to run")
	}

	m.runCycle(ctx)
	return nil
}

// Cycles returns the number of completed collection cycles.
func (m *Manager) Cycles() int64 { return m.cycles.Load() }

// EmitErrors returns the number of failed batch emissions.
func (m *Manager) EmitErrors() int64 { return m.emitErrors.Load() }

// LastCycleDuration returns the duration of the latest collection cycle.
func (m *Manager) LastCycleDuration() time.Duration {
	return time.Duration(m.lastCycleMillis.Load()) * time.Millisecond
}

func (m *Manager) createJobs(groups []*confgroup.Group) {
	seen := make(map[string]bool)

	for _, g := range groups {
		for _, cfg := range g.Configs {
			if len(m.RunModules) > 0 && !slices.Contains(m.RunModules, cfg.Module()) {
				continue
			}
			if seen[cfg.FullName()] {
				m.Warningf("%s[%s] job is a duplicate, skipping (source '%s')", cfg.Module(), cfg.Name(), g.Source)
				continue
			}

			job, err := m.createJob(cfg)
			if err != nil {
				m.Warningf("couldn't create %s[%s] job: %v", cfg.Module(), cfg.Name(), err)
				continue
			}
			seen[cfg.FullName()] = true

			if err := job.AutoDetection(context.Background()); err != nil {
				if job.RetryAutoDetection() {
					m.Infof("%s[%s] job detection failed, will retry in %d cycles", cfg.Module(), cfg.Name(), job.AutoDetectionEvery())
					m.waiting = append(m.waiting, job)
				}
				continue
			}
			m.running = append(m.running, job)
		}
	}

	m.Infof("%d jobs running, %d waiting for detection retry", len(m.running), len(m.waiting))
}

func (m *Manager) createJob(cfg confgroup.Config) (*module.Job, error) {
	creator, ok := m.Modules.Lookup(cfg.Module())
	if !ok {
		return nil, fmt.Errorf("can not find %s module", cfg.Module())
	}
	if creator.Disabled && !slices.Contains(m.RunModules, cfg.Module()) {
		return nil, fmt.Errorf("%s module is disabled by default", cfg.Module())
	}

	m.Debugf("creating %s[%s] job, config: %v", cfg.Module(), cfg.Name(), cfg)

	mod := creator.Create()
	if err := applyConfig(cfg, mod); err != nil {
		return nil, err
	}

	timeout := m.CheckFreq
	if v := cfg.CollectTimeout(); v > 0 {
		timeout = time.Duration(v * float64(time.Second))
	}

	job := module.NewJob(module.JobConfig{
		Name:            cfg.Name(),
		ModuleName:      cfg.Module(),
		Module:          mod,
		Dimensions:      cfg.Dimensions(),
		Submitter:       m.Aggregator,
		AutoDetectEvery: cfg.AutoDetectionRetry(),
		Timeout:         timeout,
	})

	return job, nil
}

func (m *Manager) runCycle(ctx context.Context) {
	start := m.Clock.Now()

	m.retryDetection(ctx)

	for _, job := range m.running {
		if ctx.Err() != nil {
			return
		}
		job.Collect(ctx, m.cycle)
	}

	elapsed := m.Clock.Since(start)
	m.lastCycleMillis.Store(elapsed.Milliseconds())

	err := m.Aggregator.SubmitMetric(collectionTimeMetric, elapsed.Seconds(), aggregator.KindGauge,
		aggregator.WithDimensions(map[string]string{"component": "monagent-collector"}))
	if err != nil {
		m.Warningf("submit %s: %v", collectionTimeMetric, err)
	}

	batch := m.Aggregator.Flush()
	m.Debugf("cycle %d: %d jobs collected in %s, %d measurements", m.cycle, len(m.running), elapsed, len(batch))

	if len(batch) > 0 && m.Emitter != nil {
		if err := m.Emitter.Emit(ctx, batch); err != nil {
			m.emitErrors.Add(1)
			m.Errorf("emit %d measurements: %v", len(batch), err)
		}
	}

	m.cycle++
	m.cycles.Add(1)
}

func (m *Manager) retryDetection(ctx context.Context) {
	if m.cycle == 0 || len(m.waiting) == 0 {
		return
	}

	waiting := m.waiting[:0]
	for _, job := range m.waiting {
		if m.cycle%job.AutoDetectionEvery() != 0 {
			waiting = append(waiting, job)
			continue
		}
		if err := job.AutoDetection(ctx); err == nil {
			m.running = append(m.running, job)
			continue
		}
		if job.RetryAutoDetection() {
			waiting = append(waiting, job)
		}
	}
	m.waiting = waiting
}

func (m *Manager) cleanup() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, job := range m.running {
		job.Cleanup(ctx)
	}
	m.running, m.waiting = nil, nil
}

func applyConfig(cfg confgroup.Config, module any) error {
	bs, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(bs, module)
}
