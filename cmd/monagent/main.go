// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"os/user"
	"strings"
	"syscall"

	"go.uber.org/automaxprocs/maxprocs"
	"golang.org/x/net/http/httpproxy"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/buildinfo"
	"github.com/monagent/monagent/plugin/monagent/agent"
	"github.com/monagent/monagent/plugin/monagent/cli"
	_ "github.com/monagent/monagent/plugin/monagent/collector"
)

func init() {
	if v := os.Getenv("TZ"); strings.HasPrefix(v, ":") {
		_ = os.Unsetenv("TZ")
	}
}

func main() {
	_, _ = maxprocs.Set(maxprocs.Logger(func(s string, args ...interface{}) {}))

	opts := parseCLI()

	if opts.Version {
		fmt.Printf("monagent, version: %s\n", buildinfo.Version)
		return
	}

	if opts.Debug {
		logger.Level.Set(slog.LevelDebug)
	}

	a := agent.New(agent.Options{
		ConfigPath: opts.Config,
		ConfDir:    opts.ConfDir,
		RunModules: opts.Modules,
		DryRun:     opts.DryRun || opts.Once,
		Debug:      opts.Debug,
	})

	if opts.Once {
		ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		if err := a.RunOnce(ctx); err != nil {
			a.Error(err)
			os.Exit(1)
		}
		return
	}

	a.Infof("monagent, version: %s", buildinfo.Version)
	if u, err := user.Current(); err == nil {
		a.Debugf("current user: name=%s, uid=%s", u.Username, u.Uid)
	}

	proxyCfg := httpproxy.FromEnvironment()
	a.Infof("env HTTP_PROXY '%s', HTTPS_PROXY '%s'", proxyCfg.HTTPProxy, proxyCfg.HTTPSProxy)

	a.Infof("config: %s | checks: %s", a.ConfigPath, a.ConfDir)

	a.Run()
}

func parseCLI() *cli.Option {
	opt, err := cli.Parse(os.Args[1:])
	if err != nil {
		if cli.IsHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	return opt
}
