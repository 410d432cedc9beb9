// SPDX-License-Identifier: GPL-3.0-or-later

package dnsquery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/miekg/dns"
	"github.com/sourcegraph/conc"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

type queryResult struct {
	server, domain, rtype string
	rtt                   time.Duration
	err                   error
}

func (c *Collector) collect(ctx context.Context) error {
	var results []*queryResult
	var wg conc.WaitGroup

	for _, srv := range c.Servers {
		for _, domain := range c.Domains {
			for rtypeName, rtype := range c.recordTypes {
				res := &queryResult{server: srv, domain: domain, rtype: rtypeName}
				results = append(results, res)

				wg.Go(func() {
					msg := new(dns.Msg)
					msg.SetQuestion(dns.Fqdn(domain), rtype)
					address := net.JoinHostPort(srv, strconv.Itoa(c.Port))

					resp, rtt, err := c.dnsClient.ExchangeContext(ctx, msg, address)
					res.rtt = rtt
					switch {
					case err != nil:
						res.err = fmt.Errorf("%s query for '%s' to %s: %v", rtypeName, domain, srv, err)
					case resp != nil && resp.Rcode != dns.RcodeSuccess:
						res.err = fmt.Errorf("%s query for '%s' to %s: rcode %s", rtypeName, domain, srv, dns.RcodeToString[resp.Rcode])
					}
				})
			}
		}
	}
	wg.Wait()

	for _, res := range results {
		dims := aggregator.WithDimensions(map[string]string{
			"server":      res.server,
			"domain":      res.domain,
			"record_type": res.rtype,
		})

		if res.err != nil {
			c.Debug(res.err)
			c.Gauge("dns.query_status", float64(servicecheck.StatusDown), dims,
				aggregator.WithValueMeta(servicecheck.ValueMeta(res.err.Error())))
			continue
		}

		c.Gauge("dns.query_status", float64(servicecheck.StatusUp), dims)
		c.Gauge("dns.query_time_ms", float64(res.rtt)/float64(time.Millisecond), dims)
	}

	return nil
}
