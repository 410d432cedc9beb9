// SPDX-License-Identifier: GPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/confgroup"
	"github.com/monagent/monagent/plugin/monagent/agent/confwatch"
	"github.com/monagent/monagent/plugin/monagent/agent/emitter"
	"github.com/monagent/monagent/plugin/monagent/agent/filelock"
	"github.com/monagent/monagent/plugin/monagent/agent/jobmgr"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
	"github.com/monagent/monagent/plugin/monagent/agent/selfmon"
	"github.com/monagent/monagent/plugin/monagent/agent/statsd"
)

const lockName = "monagent"

// Options is an Agent configuration.
type Options struct {
	ConfigPath     string
	ConfDir        string
	RunModules     []string
	DryRun         bool
	Debug          bool
	ModuleRegistry module.Registry
	Out            io.Writer
}

// Agent represents orchestrator.
type Agent struct {
	*logger.Logger

	ConfigPath     string
	ConfDir        string
	RunModules     []string
	DryRun         bool
	Debug          bool
	ModuleRegistry module.Registry
	Out            io.Writer
}

// New creates a new Agent.
func New(opts Options) *Agent {
	a := &Agent{
		Logger: logger.New().With(
			slog.String("component", "agent"),
		),
		ConfigPath:     opts.ConfigPath,
		ConfDir:        opts.ConfDir,
		RunModules:     opts.RunModules,
		DryRun:         opts.DryRun,
		Debug:          opts.Debug,
		ModuleRegistry: opts.ModuleRegistry,
		Out:            opts.Out,
	}
	if a.ModuleRegistry == nil {
		a.ModuleRegistry = module.DefaultRegistry
	}
	if a.Out == nil {
		a.Out = os.Stdout
	}
	return a
}

// Run starts the Agent. It returns only on SIGINT or SIGTERM.
func (a *Agent) Run() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reload := make(chan struct{}, 1)
	go func() {
		if err := confwatch.New(a.ConfDir).Run(ctx, reload); err != nil {
			a.Warningf("conf.d changes will not be picked up: %v", err)
		}
	}()

	serve(a, reload)
}

// RunOnce runs a single collection cycle and writes the flushed batch to Out.
func (a *Agent) RunOnce(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	agg, err := aggregator.New(cfg.AggregatorConfig())
	if err != nil {
		return err
	}

	groups, err := confgroup.ReadDir(a.ModuleRegistry, a.ConfDir)
	if err != nil {
		return err
	}

	mgr := a.newJobManager(cfg, agg, emitter.NewWriter(a.Out))

	return mgr.RunOnce(ctx, groups)
}

func serve(a *Agent, reload <-chan struct{}) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(ch)

	var wg sync.WaitGroup

	for {
		ctx, cancel := context.WithCancel(context.Background())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.run(ctx); err != nil {
				a.Error(err)
			}
		}()

		var exit bool

		select {
		case <-reload:
			a.Info("check configuration changed. Restarting running instance")
		case sig := <-ch:
			switch sig {
			case syscall.SIGHUP:
				a.Infof("received %s signal (%d). Restarting running instance", sig, sig)
			default:
				a.Infof("received %s signal (%d). Terminating...", sig, sig)
				exit = true
			}
		}

		cancel()

		func() {
			timeout := time.Second * 10
			t := time.NewTimer(timeout)
			defer t.Stop()
			done := make(chan struct{})

			go func() { wg.Wait(); close(done) }()

			select {
			case <-t.C:
				a.Errorf("stopping all goroutines timed out after %s. Exiting...", timeout)
				os.Exit(0)
			case <-done:
			}
		}()

		if exit {
			return
		}

		time.Sleep(time.Second)
	}
}

func (a *Agent) run(ctx context.Context) error {
	a.Info("instance is started")
	defer func() { a.Info("instance is stopped") }()

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	if !a.DryRun && cfg.Main.LockDir != "" {
		lock, err := filelock.Acquire(cfg.Main.LockDir, lockName)
		switch {
		case errors.Is(err, filelock.ErrLocked):
			return fmt.Errorf("instance lock in '%s': %v", cfg.Main.LockDir, err)
		case err != nil:
			a.Warningf("couldn't acquire instance lock in '%s': %v", cfg.Main.LockDir, err)
		default:
			defer func() { _ = lock.Release() }()
		}
	}

	agg, err := aggregator.New(cfg.AggregatorConfig())
	if err != nil {
		return err
	}

	var emit jobmgr.Emitter
	var httpEmit *emitter.HTTP
	if a.DryRun {
		emit = emitter.NewWriter(a.Out)
	} else {
		if httpEmit, err = emitter.NewHTTP(cfg.API); err != nil {
			return fmt.Errorf("api: %v", err)
		}
		emit = httpEmit
	}

	groups, err := confgroup.ReadDir(a.ModuleRegistry, a.ConfDir)
	if err != nil {
		return err
	}
	if len(groups) == 0 && !bool(cfg.Statsd.Enabled) {
		return errors.New("no checks configured and statsd is disabled, nothing to do")
	}

	mgr := a.newJobManager(cfg, agg, emit)

	var wg sync.WaitGroup

	var srv *statsd.Server
	if cfg.Statsd.Enabled {
		srv = statsd.NewServer(cfg.Statsd.Address, agg)
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx); err != nil {
				a.Errorf("statsd: %v", err)
			}
		}()
	}

	if cfg.Selfmon.Address != "" {
		reg := selfmon.NewRegistry(selfmonSources(agg, httpEmit, mgr, srv))
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := selfmon.Serve(ctx, cfg.Selfmon.Address, reg); err != nil {
				a.Errorf("selfmon: %v", err)
			}
		}()
	}

	wg.Add(1)
	go func() { defer wg.Done(); mgr.Run(ctx, groups) }()

	wg.Wait()
	return nil
}

func (a *Agent) loadConfig() (Config, error) {
	cfg, err := LoadConfig(a.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if !a.Debug && cfg.Logging.Level != "" {
		logger.Level.SetByName(cfg.Logging.Level)
	}
	a.Debugf("using config '%s', check configs '%s'", a.ConfigPath, a.ConfDir)
	return cfg, nil
}

func (a *Agent) newJobManager(cfg Config, agg *aggregator.Aggregator, emit jobmgr.Emitter) *jobmgr.Manager {
	mgr := jobmgr.New()
	mgr.Modules = a.ModuleRegistry
	mgr.RunModules = a.RunModules
	mgr.Aggregator = agg
	mgr.Emitter = emit
	mgr.CheckFreq = cfg.Main.CheckFreq.Duration()
	return mgr
}

func selfmonSources(agg *aggregator.Aggregator, emit *emitter.HTTP, mgr *jobmgr.Manager, srv *statsd.Server) selfmon.Sources {
	src := selfmon.Sources{
		Aggregator:        agg.Stats,
		Cycles:            mgr.Cycles,
		EmitErrors:        mgr.EmitErrors,
		LastCycleDuration: mgr.LastCycleDuration,
	}
	if emit != nil {
		src.Emitter = emit.Stats
	}
	if srv != nil {
		src.StatsdReceived = srv.Received
		src.StatsdInvalid = srv.Invalid
	}
	return src
}
