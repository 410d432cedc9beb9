// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"context"

	"github.com/prometheus/procfs"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func NewLoad() *Load {
	return &Load{
		Config: Config{ProcRoot: defaultProcRoot},
	}
}

type Load struct {
	module.Base
	Config `yaml:",inline" json:""`

	fs procfs.FS
}

func (l *Load) Configuration() any {
	return l.Config
}

func (l *Load) Init(context.Context) error {
	fs, err := newProcFS(l.ProcRoot)
	if err != nil {
		return err
	}
	l.fs = fs
	return nil
}

func (l *Load) Check(context.Context) error {
	_, err := l.fs.LoadAvg()
	return err
}

func (l *Load) Collect(context.Context) error {
	avg, err := l.fs.LoadAvg()
	if err != nil {
		return err
	}

	l.Gauge("load.avg_1_min", avg.Load1)
	l.Gauge("load.avg_5_min", avg.Load5)
	l.Gauge("load.avg_15_min", avg.Load15)

	return nil
}

func (l *Load) Cleanup(context.Context) {}
