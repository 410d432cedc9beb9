// SPDX-License-Identifier: GPL-3.0-or-later

package ping

import (
	"context"
	"errors"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"
	"github.com/sourcegraph/conc/pool"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

func init() {
	module.Register("ping", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Network:    "ip",
			Privileged: true,
			Packets:    5,
			Interval:   confopt.Duration(time.Millisecond * 100),
		},
		newProber: newICMPProber,
	}
}

type Config struct {
	Hosts      []string         `yaml:"hosts" json:"hosts"`
	Network    string           `yaml:"network,omitempty" json:"network"`
	Privileged bool             `yaml:"privileged" json:"privileged"`
	Packets    int              `yaml:"packets,omitempty" json:"packets"`
	Interval   confopt.Duration `yaml:"interval,omitempty" json:"interval"`
	Timeout    confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

type (
	Collector struct {
		module.Base
		Config `yaml:",inline" json:""`

		prober    prober
		newProber func(probeOptions, *logger.Logger) prober
	}
	prober interface {
		ping(ctx context.Context, host string) (*probing.Statistics, error)
	}
)

type hostResult struct {
	host  string
	stats *probing.Statistics
	err   error
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if err := c.validateConfig(); err != nil {
		return fmt.Errorf("invalid config: %v", err)
	}

	deadline := c.Timeout.Duration()
	if deadline <= 0 {
		deadline = c.Interval.Duration()*time.Duration(c.Packets) + time.Second
	}

	c.prober = c.newProber(probeOptions{
		network:    c.Network,
		privileged: c.Privileged,
		packets:    c.Packets,
		interval:   c.Interval.Duration(),
		deadline:   deadline,
	}, c.Logger)

	return nil
}

func (c *Collector) Check(context.Context) error {
	return nil
}

func (c *Collector) Collect(ctx context.Context) error {
	p := pool.NewWithResults[hostResult]().WithMaxGoroutines(len(c.Hosts))

	for _, host := range c.Hosts {
		p.Go(func() hostResult {
			stats, err := c.prober.ping(ctx, host)
			return hostResult{host: host, stats: stats, err: err}
		})
	}

	for _, res := range p.Wait() {
		c.collectHost(res)
	}

	return nil
}

func (c *Collector) Cleanup(context.Context) {}

func (c *Collector) collectHost(res hostResult) {
	dims := aggregator.WithDimensions(map[string]string{"target_host": res.host})

	err := res.err
	if err == nil && res.stats.PacketsRecv == 0 {
		err = fmt.Errorf("%s: no replies to %d packets", res.host, res.stats.PacketsSent)
	}
	if err != nil {
		c.Gauge("ping.status", float64(servicecheck.StatusDown), dims,
			aggregator.WithValueMeta(servicecheck.ValueMeta(err.Error())))
		if res.stats != nil {
			c.Gauge("ping.packet_loss_perc", res.stats.PacketLoss, dims)
		}
		return
	}

	st := res.stats
	c.Gauge("ping.status", float64(servicecheck.StatusUp), dims)
	c.Gauge("ping.packet_loss_perc", st.PacketLoss, dims)
	c.Gauge("ping.rtt_min_ms", durationToMs(st.MinRtt), dims)
	c.Gauge("ping.rtt_avg_ms", durationToMs(st.AvgRtt), dims)
	c.Gauge("ping.rtt_max_ms", durationToMs(st.MaxRtt), dims)
	c.Gauge("ping.rtt_stddev_ms", durationToMs(st.StdDevRtt), dims)
}

func (c *Collector) validateConfig() error {
	if len(c.Hosts) == 0 {
		return errors.New("'hosts' can't be empty")
	}
	if c.Packets <= 0 {
		return errors.New("'packets' must be > 0")
	}
	if c.Interval.Duration() <= 0 {
		return errors.New("'interval' must be > 0")
	}
	return nil
}

func durationToMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
