// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/prometheus/procfs"
	"github.com/prometheus/procfs/blockdevice"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

var (
	dataConfigJSON, _        = os.ReadFile("testdata/config.json")
	dataConfigYAML, _        = os.ReadFile("testdata/config.yaml")
	dataDiskConfigJSON, _    = os.ReadFile("testdata/disk_config.json")
	dataDiskConfigYAML, _    = os.ReadFile("testdata/disk_config.yaml")
	dataNetworkConfigJSON, _ = os.ReadFile("testdata/network_config.json")
	dataNetworkConfigYAML, _ = os.ReadFile("testdata/network_config.yaml")
)

const interval = 10 * time.Second

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataConfigJSON":        dataConfigJSON,
		"dataConfigYAML":        dataConfigYAML,
		"dataDiskConfigJSON":    dataDiskConfigJSON,
		"dataDiskConfigYAML":    dataDiskConfigYAML,
		"dataNetworkConfigJSON": dataNetworkConfigJSON,
		"dataNetworkConfigYAML": dataNetworkConfigYAML,
	} {
		require.NotNil(t, data, name)
	}
}

func TestConfigurationSerialize(t *testing.T) {
	module.TestConfigurationSerialize(t, &CPU{}, dataConfigJSON, dataConfigYAML)
	module.TestConfigurationSerialize(t, &Load{}, dataConfigJSON, dataConfigYAML)
	module.TestConfigurationSerialize(t, &Memory{}, dataConfigJSON, dataConfigYAML)
	module.TestConfigurationSerialize(t, &Disk{}, dataDiskConfigJSON, dataDiskConfigYAML)
	module.TestConfigurationSerialize(t, &Network{}, dataNetworkConfigJSON, dataNetworkConfigYAML)
}

func TestModules_Init(t *testing.T) {
	tests := map[string]struct {
		mod      module.Module
		wantFail bool
	}{
		"cpu":                      {mod: &CPU{Config: Config{ProcRoot: "testdata/proc"}}},
		"cpu missing root":         {mod: &CPU{Config: Config{ProcRoot: "testdata/missing"}}, wantFail: true},
		"load":                     {mod: &Load{Config: Config{ProcRoot: "testdata/proc"}}},
		"memory":                   {mod: &Memory{Config: Config{ProcRoot: "testdata/proc"}}},
		"network":                  {mod: &Network{NetworkConfig: NetworkConfig{ProcRoot: "testdata/proc"}}},
		"disk":                     {mod: &Disk{DiskConfig: DiskConfig{ProcRoot: "testdata/proc", SysRoot: "testdata/sys"}}},
		"disk missing sys root":    {mod: &Disk{DiskConfig: DiskConfig{ProcRoot: "testdata/proc", SysRoot: "testdata/missing"}}, wantFail: true},
		"disk invalid mount regex": {mod: &Disk{DiskConfig: DiskConfig{ProcRoot: "testdata/proc", SysRoot: "testdata/sys", ExcludedMountPoints: "("}}, wantFail: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			if test.wantFail {
				assert.Error(t, test.mod.Init(context.Background()))
			} else {
				assert.NoError(t, test.mod.Init(context.Background()))
			}
		})
	}
}

func TestCPU_Collect(t *testing.T) {
	cpu := NewCPU()
	cpu.ProcRoot = "testdata/proc"
	require.NoError(t, cpu.Init(context.Background()))
	require.NoError(t, cpu.Check(context.Background()))

	h := module.NewHarness(t, cpu)

	first := h.Collect(t, cpu)
	assert.Equal(t, map[string]float64{"cpu.total_logical_cores": 2}, first)

	cpu.fs = mustProcFS(t, "testdata/proc2")
	h.Clock.Add(interval)
	mx := h.Collect(t, cpu)

	assert.InDeltaMapValues(t, map[string]float64{
		"cpu.total_logical_cores":  2,
		"cpu.context_switches_sec": 50,
		"cpu.user_perc":            30,
		"cpu.system_perc":          15,
		"cpu.wait_perc":            5,
		"cpu.stolen_perc":          10,
		"cpu.idle_perc":            40,
	}, mx, 1e-9)
}

func TestLoad_Collect(t *testing.T) {
	load := NewLoad()
	load.ProcRoot = "testdata/proc"
	require.NoError(t, load.Init(context.Background()))
	require.NoError(t, load.Check(context.Background()))

	h := module.NewHarness(t, load)

	assert.Equal(t, map[string]float64{
		"load.avg_1_min":  0.5,
		"load.avg_5_min":  0.75,
		"load.avg_15_min": 1.25,
	}, h.Collect(t, load))
}

func TestMemory_Collect(t *testing.T) {
	mem := NewMemory()
	mem.ProcRoot = "testdata/proc"
	require.NoError(t, mem.Init(context.Background()))
	require.NoError(t, mem.Check(context.Background()))

	h := module.NewHarness(t, mem)

	assert.Equal(t, map[string]float64{
		"mem.total_mb":       8000,
		"mem.free_mb":        2000,
		"mem.usable_mb":      4000,
		"mem.usable_perc":    50,
		"mem.used_buffers":   100,
		"mem.used_cache":     1000,
		"mem.swap_total_mb":  2000,
		"mem.swap_free_mb":   1000,
		"mem.swap_used_mb":   1000,
		"mem.swap_free_perc": 50,
	}, h.Collect(t, mem))
}

func TestNetwork_Collect(t *testing.T) {
	tests := map[string]struct {
		excluded []string
		want     map[string]float64
	}{
		"loopback excluded by default": {
			excluded: NewNetwork().ExcludedInterfaces,
			want: map[string]float64{
				"net.in_bytes_sec{device=eth0}":            10000,
				"net.out_bytes_sec{device=eth0}":           2000,
				"net.in_packets_sec{device=eth0}":          100,
				"net.out_packets_sec{device=eth0}":         20,
				"net.in_errors_sec{device=eth0}":           0,
				"net.out_errors_sec{device=eth0}":          0,
				"net.in_packets_dropped_sec{device=eth0}":  0,
				"net.out_packets_dropped_sec{device=eth0}": 0.2,
			},
		},
		"everything excluded": {
			excluded: []string{"lo", "eth0"},
			want:     map[string]float64{},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			nw := NewNetwork()
			nw.ProcRoot = "testdata/proc"
			nw.ExcludedInterfaces = test.excluded
			require.NoError(t, nw.Init(context.Background()))

			h := module.NewHarness(t, nw)

			assert.Empty(t, h.Collect(t, nw))

			nw.fs = mustProcFS(t, "testdata/proc2")
			h.Clock.Add(interval)

			assert.InDeltaMapValues(t, test.want, h.Collect(t, nw), 1e-9)
		})
	}
}

func TestDisk_Check(t *testing.T) {
	tests := map[string]struct {
		excludedMounts string
		wantFail       bool
	}{
		"device backed mounts found": {},
		"all mounts excluded":        {excludedMounts: ".*", wantFail: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			disk := newTestDisk()
			disk.ExcludedMountPoints = test.excludedMounts
			require.NoError(t, disk.Init(context.Background()))

			if test.wantFail {
				assert.Error(t, disk.Check(context.Background()))
			} else {
				assert.NoError(t, disk.Check(context.Background()))
			}
		})
	}
}

func TestDisk_readMounts(t *testing.T) {
	disk := newTestDisk()
	require.NoError(t, disk.Init(context.Background()))

	mounts, err := disk.readMounts()
	require.NoError(t, err)

	assert.Equal(t, []mount{
		{device: "/dev/sda1", mountPoint: "/", fsType: "ext4"},
		{device: "/dev/sdb1", mountPoint: "/mnt/data disk", fsType: "xfs"},
	}, mounts)
}

func TestDisk_Collect(t *testing.T) {
	disk := newTestDisk()
	require.NoError(t, disk.Init(context.Background()))

	h := module.NewHarness(t, disk)

	usage := map[string]float64{
		"disk.space_used_perc{device=sda1,mount_point=/}":     75,
		"disk.total_space_mb{device=sda1,mount_point=/}":      1024,
		"disk.total_used_space_mb{device=sda1,mount_point=/}": 768,
		"disk.inode_used_perc{device=sda1,mount_point=/}":     75,
	}

	assert.Equal(t, usage, h.Collect(t, disk))

	fs, err := blockdevice.NewFS("testdata/proc2", "testdata/sys")
	require.NoError(t, err)
	disk.blockFS = fs
	h.Clock.Add(interval)

	want := map[string]float64{
		"io.read_req_sec{device=sda}":     50,
		"io.write_req_sec{device=sda}":    60,
		"io.read_kbytes_sec{device=sda}":  500,
		"io.write_kbytes_sec{device=sda}": 600,
		"io.read_time_sec{device=sda}":    0.02,
		"io.write_time_sec{device=sda}":   0.04,
	}
	for k, v := range usage {
		want[k] = v
	}

	assert.InDeltaMapValues(t, want, h.Collect(t, disk), 1e-9)
}

func newTestDisk() *Disk {
	disk := NewDisk()
	disk.ProcRoot = "testdata/proc"
	disk.SysRoot = "testdata/sys"
	disk.statfs = func(path string) (fsUsage, error) {
		if path != "/" {
			return fsUsage{}, errors.New("mock statfs error")
		}
		return fsUsage{
			totalBytes:  1 << 30,
			freeBytes:   256 << 20,
			totalInodes: 1000,
			freeInodes:  250,
		}, nil
	}
	return disk
}

func mustProcFS(t *testing.T, root string) procfs.FS {
	fs, err := procfs.NewFS(root)
	require.NoError(t, err)
	return fs
}
