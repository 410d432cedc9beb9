// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"context"

	"github.com/prometheus/procfs"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func NewCPU() *CPU {
	return &CPU{
		Config: Config{ProcRoot: defaultProcRoot},
	}
}

// CPU reports utilisation percentages from the delta of /proc/stat between two cycles.
type CPU struct {
	module.Base
	Config `yaml:",inline" json:""`

	fs   procfs.FS
	prev *procfs.CPUStat
}

func (c *CPU) Configuration() any {
	return c.Config
}

func (c *CPU) Init(context.Context) error {
	fs, err := newProcFS(c.ProcRoot)
	if err != nil {
		return err
	}
	c.fs = fs
	return nil
}

func (c *CPU) Check(context.Context) error {
	_, err := c.fs.Stat()
	return err
}

func (c *CPU) Collect(context.Context) error {
	st, err := c.fs.Stat()
	if err != nil {
		return err
	}

	c.Gauge("cpu.total_logical_cores", float64(len(st.CPU)))
	c.Rate("cpu.context_switches_sec", float64(st.ContextSwitches))

	cur := st.CPUTotal
	if prev := c.prev; prev != nil {
		total := cpuTotal(cur) - cpuTotal(*prev)
		if total > 0 {
			c.Gauge("cpu.user_perc", percent(cur.User+cur.Nice-prev.User-prev.Nice, total))
			c.Gauge("cpu.system_perc", percent(cur.System+cur.IRQ+cur.SoftIRQ-prev.System-prev.IRQ-prev.SoftIRQ, total))
			c.Gauge("cpu.wait_perc", percent(cur.Iowait-prev.Iowait, total))
			c.Gauge("cpu.stolen_perc", percent(cur.Steal-prev.Steal, total))
			c.Gauge("cpu.idle_perc", percent(cur.Idle-prev.Idle, total))
		}
	}
	c.prev = &cur

	return nil
}

func (c *CPU) Cleanup(context.Context) {}

// Guest time is already accounted in user time.
func cpuTotal(s procfs.CPUStat) float64 {
	return s.User + s.Nice + s.System + s.Idle + s.Iowait + s.IRQ + s.SoftIRQ + s.Steal
}
