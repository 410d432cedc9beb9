// SPDX-License-Identifier: GPL-3.0-or-later

package ping

import (
	"context"
	"fmt"
	"time"

	probing "github.com/prometheus-community/pro-bing"

	"github.com/monagent/monagent/logger"
)

// probeOptions are shared by every host of a job.
type probeOptions struct {
	network    string
	privileged bool
	packets    int
	interval   time.Duration
	deadline   time.Duration
}

func newICMPProber(opts probeOptions, log *logger.Logger) prober {
	return &icmpProber{opts: opts, log: log}
}

type icmpProber struct {
	opts probeOptions
	log  *logger.Logger
}

func (p *icmpProber) ping(ctx context.Context, host string) (*probing.Statistics, error) {
	pinger, err := p.newPinger(host)
	if err != nil {
		return nil, err
	}

	if err := pinger.RunWithContext(ctx); err != nil {
		return nil, fmt.Errorf("%s (%s): %v", host, pinger.IPAddr(), err)
	}

	stats := pinger.Statistics()
	p.log.Debugf("%s (%s): sent %d, received %d, loss %.1f%%, avg rtt %s",
		host, pinger.IPAddr(), stats.PacketsSent, stats.PacketsRecv, stats.PacketLoss, stats.AvgRtt)

	return stats, nil
}

func (p *icmpProber) newPinger(host string) (*probing.Pinger, error) {
	pinger := probing.New(host)
	pinger.SetNetwork(p.opts.network)

	if err := pinger.Resolve(); err != nil {
		return nil, fmt.Errorf("resolve '%s': %v", host, err)
	}

	pinger.SetPrivileged(p.opts.privileged)
	pinger.SetLogger(nil)
	pinger.RecordRtts = false
	pinger.Count = p.opts.packets
	pinger.Interval = p.opts.interval
	pinger.Timeout = p.opts.deadline

	return pinger, nil
}
