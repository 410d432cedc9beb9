// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/prometheus/procfs/blockdevice"
	"github.com/sourcegraph/conc/iter"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

const (
	defaultSysRoot = "/sys"
	sectorSize     = 512
)

var defaultExcludedFileSystems = []string{
	"autofs", "binfmt_misc", "bpf", "cgroup", "cgroup2", "configfs", "debugfs", "devpts", "devtmpfs",
	"fusectl", "hugetlbfs", "mqueue", "nsfs", "overlay", "proc", "pstore", "rpc_pipefs", "securityfs",
	"squashfs", "sysfs", "tmpfs", "tracefs",
}

type DiskConfig struct {
	ProcRoot            string   `yaml:"proc_root,omitempty" json:"proc_root"`
	SysRoot             string   `yaml:"sys_root,omitempty" json:"sys_root"`
	ExcludedFileSystems []string `yaml:"excluded_file_systems,omitempty" json:"excluded_file_systems"`
	ExcludedMountPoints string   `yaml:"excluded_mount_points,omitempty" json:"excluded_mount_points"`
	ExcludedDevices     string   `yaml:"excluded_devices,omitempty" json:"excluded_devices"`
}

func NewDisk() *Disk {
	return &Disk{
		DiskConfig: DiskConfig{
			ProcRoot:            defaultProcRoot,
			SysRoot:             defaultSysRoot,
			ExcludedFileSystems: defaultExcludedFileSystems,
			ExcludedDevices:     `^(loop|ram|zram)\d+$`,
		},
		statfs: statfs,
	}
}

// Disk reports space and inode usage per mount point and IO rates per block device.
type Disk struct {
	module.Base
	DiskConfig `yaml:",inline" json:""`

	blockFS      blockdevice.FS
	mountsFile   string
	mountPointRe *regexp.Regexp
	deviceRe     *regexp.Regexp
	statfs       func(path string) (fsUsage, error)
}

type (
	mount struct {
		device     string
		mountPoint string
		fsType     string
	}
	fsUsage struct {
		totalBytes  uint64
		freeBytes   uint64
		totalInodes uint64
		freeInodes  uint64
	}
	mountUsage struct {
		mount
		usage fsUsage
		err   error
	}
)

func (d *Disk) Configuration() any {
	return d.DiskConfig
}

func (d *Disk) Init(context.Context) error {
	if d.ProcRoot == "" {
		d.ProcRoot = defaultProcRoot
	}
	if d.SysRoot == "" {
		d.SysRoot = defaultSysRoot
	}

	fs, err := blockdevice.NewFS(d.ProcRoot, d.SysRoot)
	if err != nil {
		return fmt.Errorf("block devices: %v", err)
	}
	d.blockFS = fs
	d.mountsFile = filepath.Join(d.ProcRoot, "mounts")

	if d.ExcludedMountPoints != "" {
		if d.mountPointRe, err = regexp.Compile(d.ExcludedMountPoints); err != nil {
			return fmt.Errorf("invalid 'excluded_mount_points': %v", err)
		}
	}
	if d.ExcludedDevices != "" {
		if d.deviceRe, err = regexp.Compile(d.ExcludedDevices); err != nil {
			return fmt.Errorf("invalid 'excluded_devices': %v", err)
		}
	}

	return nil
}

func (d *Disk) Check(context.Context) error {
	mounts, err := d.readMounts()
	if err != nil {
		return err
	}
	if len(mounts) == 0 {
		return fmt.Errorf("no mount points left after filtering '%s'", d.mountsFile)
	}
	return nil
}

func (d *Disk) Collect(context.Context) error {
	mounts, err := d.readMounts()
	if err != nil {
		return err
	}

	results := iter.Map(mounts, func(m *mount) mountUsage {
		usage, err := d.statfs(m.mountPoint)
		return mountUsage{mount: *m, usage: usage, err: err}
	})

	for _, res := range results {
		if res.err != nil {
			d.Warningf("statfs '%s': %v", res.mountPoint, res.err)
			continue
		}
		d.collectUsage(res)
	}

	if err := d.collectIO(); err != nil {
		d.Warningf("diskstats: %v", err)
	}

	return nil
}

func (d *Disk) Cleanup(context.Context) {}

func (d *Disk) collectUsage(res mountUsage) {
	u := res.usage
	if u.totalBytes == 0 {
		return
	}

	opts := []aggregator.SubmitOption{
		aggregator.WithDeviceName(filepath.Base(res.device)),
		aggregator.WithDimensions(map[string]string{"mount_point": res.mountPoint}),
	}

	used := u.totalBytes - u.freeBytes
	d.Gauge("disk.space_used_perc", percent(float64(used), float64(u.totalBytes)), opts...)
	d.Gauge("disk.total_space_mb", float64(u.totalBytes)/(1<<20), opts...)
	d.Gauge("disk.total_used_space_mb", float64(used)/(1<<20), opts...)
	if u.totalInodes > 0 {
		d.Gauge("disk.inode_used_perc", percent(float64(u.totalInodes-u.freeInodes), float64(u.totalInodes)), opts...)
	}
}

func (d *Disk) collectIO() error {
	stats, err := d.blockFS.ProcDiskstats()
	if err != nil {
		return err
	}

	for _, st := range stats {
		if d.deviceRe != nil && d.deviceRe.MatchString(st.DeviceName) {
			continue
		}
		opt := aggregator.WithDeviceName(st.DeviceName)

		d.Rate("io.read_req_sec", float64(st.ReadIOs), opt)
		d.Rate("io.write_req_sec", float64(st.WriteIOs), opt)
		d.Rate("io.read_kbytes_sec", float64(st.ReadSectors*sectorSize)/1024, opt)
		d.Rate("io.write_kbytes_sec", float64(st.WriteSectors*sectorSize)/1024, opt)
		d.Rate("io.read_time_sec", float64(st.ReadTicks)/1000, opt)
		d.Rate("io.write_time_sec", float64(st.WriteTicks)/1000, opt)
	}

	return nil
}

// readMounts returns the mounts backed by a device, one per mount point.
func (d *Disk) readMounts() ([]mount, error) {
	f, err := os.Open(d.mountsFile)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var mounts []mount
	seen := make(map[string]bool)

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		parts := strings.Fields(sc.Text())
		if len(parts) < 3 {
			continue
		}
		m := mount{
			device:     parts[0],
			mountPoint: unescapeMountPath(parts[1]),
			fsType:     parts[2],
		}
		if !strings.HasPrefix(m.device, "/") || seen[m.mountPoint] {
			continue
		}
		if slices.Contains(d.ExcludedFileSystems, m.fsType) {
			continue
		}
		if d.mountPointRe != nil && d.mountPointRe.MatchString(m.mountPoint) {
			continue
		}
		seen[m.mountPoint] = true
		mounts = append(mounts, m)
	}

	return mounts, sc.Err()
}

// /proc/mounts escapes space, tab, newline and backslash as octal.
var mountPathReplacer = strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`)

func unescapeMountPath(s string) string {
	return mountPathReplacer.Replace(s)
}
