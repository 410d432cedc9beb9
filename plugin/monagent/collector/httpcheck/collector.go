// SPDX-License-Identifier: GPL-3.0-or-later

package httpcheck

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/pkg/web"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

func init() {
	module.Register("http_check", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			HTTPConfig: web.HTTPConfig{
				ClientConfig: web.ClientConfig{
					Timeout: confopt.Duration(time.Second * 10),
				},
			},
			AcceptedStatuses:    []int{200},
			CollectResponseTime: true,
		},
	}
}

type Config struct {
	web.HTTPConfig      `yaml:",inline" json:""`
	AcceptedStatuses    []int  `yaml:"status_accepted,omitempty" json:"status_accepted"`
	ResponseMatch       string `yaml:"response_match,omitempty" json:"response_match"`
	CollectResponseTime bool   `yaml:"collect_response_time" json:"collect_response_time"`
}

// Collector probes one URL per cycle. The probe runs under the service check runner
// so a hanging endpoint reports down instead of blocking the cycle.
type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	httpClient *http.Client
	runner     *servicecheck.Runner
	reMatch    *regexp.Regexp
	dims       map[string]string
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if err := c.validateConfig(); err != nil {
		return fmt.Errorf("config validation: %v", err)
	}

	client, err := web.NewHTTPClient(c.ClientConfig)
	if err != nil {
		return fmt.Errorf("init HTTP client: %v", err)
	}
	c.httpClient = client

	if c.ResponseMatch != "" {
		if c.reMatch, err = regexp.Compile(c.ResponseMatch); err != nil {
			return fmt.Errorf("invalid 'response_match': %v", err)
		}
	}

	timeout := c.Timeout.Duration()
	if timeout <= 0 {
		timeout = time.Second * 10
	}
	c.runner = servicecheck.NewRunner(timeout, 1)
	c.dims = map[string]string{"url": c.URL}

	c.Debugf("using URL %s", c.URL)
	c.Debugf("using HTTP timeout %s", timeout)
	c.Debugf("using accepted HTTP statuses %v", c.AcceptedStatuses)
	if c.reMatch != nil {
		c.Debugf("using response match regexp %s", c.reMatch)
	}

	return nil
}

func (c *Collector) Check(context.Context) error {
	return nil
}

func (c *Collector) Collect(ctx context.Context) error {
	res := c.runner.Run(ctx, c.URL, c.probe)

	c.Gauge("http_status", float64(res.Status),
		aggregator.WithDimensions(c.dims),
		aggregator.WithValueMeta(servicecheck.ValueMeta(res.Message)),
	)
	if res.Status == servicecheck.StatusUp && c.CollectResponseTime {
		c.Gauge("http_response_time", res.Elapsed.Seconds(), aggregator.WithDimensions(c.dims))
	}
	if res.Status == servicecheck.StatusDown {
		c.Debug(res.Message)
	}

	return nil
}

func (c *Collector) Cleanup(context.Context) {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}

func (c *Collector) validateConfig() error {
	if c.URL == "" {
		return errors.New("'url' not set")
	}
	return nil
}
