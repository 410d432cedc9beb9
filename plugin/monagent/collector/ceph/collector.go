// SPDX-License-Identifier: GPL-3.0-or-later

package ceph

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("ceph", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Binary:             "ceph",
			ClusterName:        "ceph",
			Timeout:            confopt.Duration(time.Second * 10),
			CollectPoolMetrics: true,
		},
	}
}

type Config struct {
	Binary             string           `yaml:"binary_path,omitempty" json:"binary_path"`
	ClusterName        string           `yaml:"cluster_name,omitempty" json:"cluster_name"`
	UseSudo            bool             `yaml:"use_sudo" json:"use_sudo"`
	Timeout            confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
	CollectPoolMetrics bool             `yaml:"collect_pool_metrics" json:"collect_pool_metrics"`
}

type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	exec cephCli
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if c.ClusterName == "" {
		return errors.New("config: 'cluster_name' not set")
	}

	path, err := exec.LookPath(c.Binary)
	if err != nil {
		return fmt.Errorf("ceph binary: %v", err)
	}
	c.Debugf("using ceph binary '%s'", path)

	c.exec = newCephExec(path, c.ClusterName, c.UseSudo, c.Timeout.Duration(), c.Logger)

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	return c.Collect(ctx)
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {}
