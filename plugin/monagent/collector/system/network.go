// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"context"
	"slices"

	"github.com/prometheus/procfs"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

type NetworkConfig struct {
	ProcRoot           string   `yaml:"proc_root,omitempty" json:"proc_root"`
	ExcludedInterfaces []string `yaml:"excluded_interfaces,omitempty" json:"excluded_interfaces"`
}

func NewNetwork() *Network {
	return &Network{
		NetworkConfig: NetworkConfig{
			ProcRoot:           defaultProcRoot,
			ExcludedInterfaces: []string{"lo"},
		},
	}
}

// Network reports per-interface throughput as rates of the /proc/net/dev counters.
type Network struct {
	module.Base
	NetworkConfig `yaml:",inline" json:""`

	fs procfs.FS
}

func (n *Network) Configuration() any {
	return n.NetworkConfig
}

func (n *Network) Init(context.Context) error {
	fs, err := newProcFS(n.ProcRoot)
	if err != nil {
		return err
	}
	n.fs = fs
	return nil
}

func (n *Network) Check(context.Context) error {
	_, err := n.fs.NetDev()
	return err
}

func (n *Network) Collect(context.Context) error {
	dev, err := n.fs.NetDev()
	if err != nil {
		return err
	}

	for name, line := range dev {
		if slices.Contains(n.ExcludedInterfaces, name) {
			continue
		}
		opt := aggregator.WithDeviceName(name)

		n.Rate("net.in_bytes_sec", float64(line.RxBytes), opt)
		n.Rate("net.out_bytes_sec", float64(line.TxBytes), opt)
		n.Rate("net.in_packets_sec", float64(line.RxPackets), opt)
		n.Rate("net.out_packets_sec", float64(line.TxPackets), opt)
		n.Rate("net.in_errors_sec", float64(line.RxErrors), opt)
		n.Rate("net.out_errors_sec", float64(line.TxErrors), opt)
		n.Rate("net.in_packets_dropped_sec", float64(line.RxDropped), opt)
		n.Rate("net.out_packets_dropped_sec", float64(line.TxDropped), opt)
	}

	return nil
}

func (n *Network) Cleanup(context.Context) {}
