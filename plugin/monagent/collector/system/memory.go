// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"context"
	"errors"

	"github.com/prometheus/procfs"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func NewMemory() *Memory {
	return &Memory{
		Config: Config{ProcRoot: defaultProcRoot},
	}
}

type Memory struct {
	module.Base
	Config `yaml:",inline" json:""`

	fs procfs.FS
}

func (m *Memory) Configuration() any {
	return m.Config
}

func (m *Memory) Init(context.Context) error {
	fs, err := newProcFS(m.ProcRoot)
	if err != nil {
		return err
	}
	m.fs = fs
	return nil
}

func (m *Memory) Check(ctx context.Context) error {
	_, err := m.fs.Meminfo()
	return err
}

func (m *Memory) Collect(context.Context) error {
	mi, err := m.fs.Meminfo()
	if err != nil {
		return err
	}
	if mi.MemTotal == nil || mi.MemFree == nil {
		return errors.New("meminfo: MemTotal or MemFree is missing")
	}

	total := kbToMB(mi.MemTotal)
	free := kbToMB(mi.MemFree)
	buffers := kbToMB(mi.Buffers)
	cached := kbToMB(mi.Cached)

	usable := free + buffers + cached
	if mi.MemAvailable != nil {
		usable = kbToMB(mi.MemAvailable)
	}

	m.Gauge("mem.total_mb", total)
	m.Gauge("mem.free_mb", free)
	m.Gauge("mem.usable_mb", usable)
	m.Gauge("mem.usable_perc", percent(usable, total))
	m.Gauge("mem.used_buffers", buffers)
	m.Gauge("mem.used_cache", cached)

	if mi.SwapTotal != nil && mi.SwapFree != nil {
		swapTotal := kbToMB(mi.SwapTotal)
		swapFree := kbToMB(mi.SwapFree)
		m.Gauge("mem.swap_total_mb", swapTotal)
		m.Gauge("mem.swap_free_mb", swapFree)
		m.Gauge("mem.swap_used_mb", swapTotal-swapFree)
		if swapTotal > 0 {
			m.Gauge("mem.swap_free_perc", percent(swapFree, swapTotal))
		}
	}

	return nil
}

func (m *Memory) Cleanup(context.Context) {}

func kbToMB(v *uint64) float64 {
	if v == nil {
		return 0
	}
	return float64(*v) / 1024
}
