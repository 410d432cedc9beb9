// SPDX-License-Identifier: GPL-3.0-or-later

package tcpcheck

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/sourcegraph/conc/pool"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

func init() {
	module.Register("tcp_check", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Timeout: confopt.Duration(time.Second * 2),
		},
		dialContext: (&net.Dialer{}).DialContext,
	}
}

type Config struct {
	Host    string           `yaml:"host" json:"host"`
	Ports   []int            `yaml:"ports" json:"ports"`
	Timeout confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

// Collector dials every configured port of a host concurrently.
type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	runner      *servicecheck.Runner
	dialContext func(ctx context.Context, network, address string) (net.Conn, error)
}

type portResult struct {
	port int
	servicecheck.Result
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if c.Host == "" {
		return errors.New("'host' not set")
	}
	if len(c.Ports) == 0 {
		return errors.New("'ports' not set")
	}
	for _, p := range c.Ports {
		if p <= 0 || p > 65535 {
			return fmt.Errorf("invalid port %d", p)
		}
	}

	timeout := c.Timeout.Duration()
	if timeout <= 0 {
		timeout = time.Second * 2
	}
	c.runner = servicecheck.NewRunner(timeout, len(c.Ports))

	c.Debugf("using host: %s", c.Host)
	c.Debugf("using ports: %v", c.Ports)
	c.Debugf("using TCP connection timeout: %s", timeout)

	return nil
}

func (c *Collector) Check(context.Context) error {
	return nil
}

func (c *Collector) Collect(ctx context.Context) error {
	p := pool.NewWithResults[portResult]().WithMaxGoroutines(len(c.Ports))

	for _, port := range c.Ports {
		p.Go(func() portResult {
			addr := c.address(port)
			res := c.runner.Run(ctx, addr, func(ctx context.Context) error {
				conn, err := c.dialContext(ctx, "tcp", addr)
				if err != nil {
					return err
				}
				return conn.Close()
			})
			return portResult{port: port, Result: res}
		})
	}

	for _, res := range p.Wait() {
		dims := aggregator.WithDimensions(map[string]string{
			"target_host": c.Host,
			"port":        strconv.Itoa(res.port),
		})

		c.Gauge("tcp_check.status", float64(res.Status), dims,
			aggregator.WithValueMeta(servicecheck.ValueMeta(res.Message)))
		if res.Status == servicecheck.StatusUp {
			c.Gauge("tcp_check.response_time", res.Elapsed.Seconds(), dims)
		}
	}

	return nil
}

func (c *Collector) Cleanup(context.Context) {}

func (c *Collector) address(port int) string {
	// net.JoinHostPort expects literal IPv6 address, it adds []
	host := strings.Trim(c.Host, "[]")
	return net.JoinHostPort(host, strconv.Itoa(port))
}
