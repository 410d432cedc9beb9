// SPDX-License-Identifier: GPL-3.0-or-later

package dnsquery

import (
	"context"
	"fmt"
	"time"

	"github.com/miekg/dns"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("dns_query", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Timeout:     confopt.Duration(time.Second * 2),
			Network:     "udp",
			RecordTypes: []string{"A"},
			Port:        53,
		},
		resolvConf: "/etc/resolv.conf",
		newDNSClient: func(network string, timeout time.Duration) dnsClient {
			return &dns.Client{
				Net:         network,
				ReadTimeout: timeout,
			}
		},
	}
}

type Config struct {
	Timeout     confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
	Domains     []string         `yaml:"domains" json:"domains"`
	Servers     []string         `yaml:"servers" json:"servers"`
	Network     string           `yaml:"network,omitempty" json:"network"`
	RecordTypes []string         `yaml:"record_types,omitempty" json:"record_types"`
	Port        int              `yaml:"port,omitempty" json:"port"`
}

type (
	Collector struct {
		module.Base
		Config `yaml:",inline" json:""`

		resolvConf   string
		dnsClient    dnsClient
		newDNSClient func(network string, duration time.Duration) dnsClient

		recordTypes map[string]uint16
	}
	dnsClient interface {
		ExchangeContext(ctx context.Context, msg *dns.Msg, address string) (response *dns.Msg, rtt time.Duration, err error)
	}
)

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if err := c.verifyConfig(); err != nil {
		return fmt.Errorf("config validation: %v", err)
	}

	if err := c.initServers(); err != nil {
		return fmt.Errorf("failed to initialize servers: %v", err)
	}

	rt, err := c.initRecordTypes()
	if err != nil {
		return fmt.Errorf("init record type: %v", err)
	}
	c.recordTypes = rt

	c.dnsClient = c.newDNSClient(c.Network, c.Timeout.Duration())

	return nil
}

func (c *Collector) Check(context.Context) error {
	return nil
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {}
