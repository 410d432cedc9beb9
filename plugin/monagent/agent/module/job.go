// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/monagent/monagent/logger"
)

const (
	penaltyStep = 5
	maxPenalty  = 600
	infTries    = -1
)

type JobConfig struct {
	Name            string
	ModuleName      string
	Module          Module
	Dimensions      map[string]string
	Submitter       Submitter
	AutoDetectEvery int
	Timeout         time.Duration
}

func NewJob(cfg JobConfig) *Job {
	j := &Job{
		AutoDetectEvery: cfg.AutoDetectEvery,
		AutoDetectTries: infTries,

		name:       cfg.Name,
		moduleName: cfg.ModuleName,
		module:     cfg.Module,
		timeout:    cfg.Timeout,
	}

	log := logger.New().With(
		slog.String("collector", j.ModuleName()),
		slog.String("job", j.Name()),
	)

	j.Logger = log
	if j.module != nil {
		base := j.module.GetBase()
		base.Logger = log
		base.Sender = NewSender(cfg.Submitter, cfg.Dimensions, log)
	}

	return j
}

// Job is one configured check instance. It's a module wrapper.
type Job struct {
	*logger.Logger

	name       string
	moduleName string

	AutoDetectEvery int
	AutoDetectTries int

	module  Module
	timeout time.Duration

	initialized bool
	panicked    bool
	retries     int
}

// FullName returns job full name.
func (j *Job) FullName() string {
	if j.name == j.moduleName {
		return j.name
	}
	return j.moduleName + "_" + j.name
}

// ModuleName returns job module name.
func (j *Job) ModuleName() string {
	return j.moduleName
}

// Name returns job name.
func (j *Job) Name() string {
	return j.name
}

// Panicked returns 'panicked' flag value.
func (j *Job) Panicked() bool {
	return j.panicked
}

// AutoDetectionEvery returns value of AutoDetectEvery.
func (j *Job) AutoDetectionEvery() int {
	return j.AutoDetectEvery
}

// RetryAutoDetection returns whether it is needed to retry autodetection.
func (j *Job) RetryAutoDetection() bool {
	return j.AutoDetectEvery > 0 && (j.AutoDetectTries == infTries || j.AutoDetectTries > 0)
}

func (j *Job) Configuration() any {
	return j.module.Configuration()
}

// AutoDetection invokes init and check. It handles panic.
func (j *Job) AutoDetection(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic %v", r)
			j.panicked = true
			j.disableAutoDetection()

			j.Errorf("PANIC %v", r)
			if logger.Level.Enabled(slog.LevelDebug) {
				j.Errorf("STACK: %s", debug.Stack())
			}
		}
		if err != nil {
			j.module.Cleanup(ctx)
		}
	}()

	if err = j.init(ctx); err != nil {
		j.Errorf("init failed: %v", err)
		j.disableAutoDetection()
		return err
	}

	if err = j.check(ctx); err != nil {
		j.Errorf("check failed: %v", err)
		return err
	}

	j.Info("check success")

	return nil
}

// Collect runs the check once if the failure penalty allows it at this cycle.
// It reports whether the check was run.
func (j *Job) Collect(ctx context.Context, cycle int) bool {
	if !shouldCollectWithPenalty(cycle, j.retries) {
		j.Debugf("skipping cycle %d, %d consecutive failures", cycle, j.retries)
		return false
	}

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	if err := j.collect(ctx); err != nil {
		j.retries++
		if !j.panicked {
			j.Warningf("collect failed: %v", err)
		}
	} else {
		j.retries = 0
	}

	if n := j.module.GetBase().Rejected(); n > 0 {
		j.Warningf("%d metrics rejected during the cycle", n)
	}

	return true
}

// Cleanup releases the check resources.
func (j *Job) Cleanup(ctx context.Context) {
	j.module.Cleanup(ctx)
	j.Info("stopped")
}

func (j *Job) disableAutoDetection() {
	j.AutoDetectEvery = 0
}

func (j *Job) init(ctx context.Context) error {
	if j.initialized {
		return nil
	}

	if err := j.module.Init(ctx); err != nil {
		return err
	}

	j.initialized = true

	return nil
}

func (j *Job) check(ctx context.Context) error {
	if err := j.module.Check(ctx); err != nil {
		if j.AutoDetectTries != infTries {
			j.AutoDetectTries--
		}
		return err
	}
	return nil
}

func (j *Job) collect(ctx context.Context) (err error) {
	j.panicked = false
	defer func() {
		if r := recover(); r != nil {
			j.panicked = true
			err = fmt.Errorf("panic %v", r)
			j.Errorf("PANIC: %v", r)
			if logger.Level.Enabled(slog.LevelDebug) {
				j.Errorf("STACK: %s", debug.Stack())
			}
		}
	}()
	return j.module.Collect(ctx)
}

// shouldCollectWithPenalty stretches the collection interval of a failing job.
func shouldCollectWithPenalty(cycle, retries int) bool {
	return cycle%(1+penaltyFromRetries(retries)) == 0
}

func penaltyFromRetries(retries int) int {
	v := retries / penaltyStep * penaltyStep / 2
	if v > maxPenalty {
		return maxPenalty
	}
	return v
}
