// SPDX-License-Identifier: GPL-3.0-or-later

package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/pkg/web"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("rabbitmq", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			HTTPConfig: web.HTTPConfig{
				RequestConfig: web.RequestConfig{
					URL:      "http://localhost:15672",
					Username: "guest",
					Password: "guest",
				},
				ClientConfig: web.ClientConfig{
					Timeout: confopt.Duration(time.Second),
				},
			},
			CollectNodes:  true,
			CollectQueues: false,
		},
	}
}

type Config struct {
	web.HTTPConfig `yaml:",inline" json:""`
	CollectNodes   bool `yaml:"collect_nodes_metrics" json:"collect_nodes_metrics"`
	CollectQueues  bool `yaml:"collect_queues_metrics" json:"collect_queues_metrics"`
	// Queues holds regular expressions matched against queue names. Empty means all.
	Queues []string `yaml:"queues,omitempty" json:"queues"`
}

type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	httpClient *http.Client
	reQueues   []*regexp.Regexp

	clusterName string
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if c.URL == "" {
		return errors.New("config: url not set")
	}

	for _, s := range c.Queues {
		re, err := regexp.Compile(s)
		if err != nil {
			return fmt.Errorf("invalid queue regexp '%s': %v", s, err)
		}
		c.reQueues = append(c.reQueues, re)
	}

	client, err := web.NewHTTPClient(c.ClientConfig)
	if err != nil {
		return fmt.Errorf("init HTTP client: %v", err)
	}
	c.httpClient = client

	c.Debugf("using URL %s", c.URL)
	c.Debugf("using timeout: %s", c.Timeout)

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	return c.Collect(ctx)
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {
	if c.httpClient != nil {
		c.httpClient.CloseIdleConnections()
	}
}
