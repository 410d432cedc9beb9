// SPDX-License-Identifier: GPL-3.0-or-later

// Package system implements the host checks reading procfs: cpu, load, memory, disk and network.
package system

import (
	"fmt"

	"github.com/prometheus/procfs"
)

const defaultProcRoot = "/proc"

// Config is shared by the cpu, load and memory checks.
type Config struct {
	ProcRoot string `yaml:"proc_root,omitempty" json:"proc_root"`
}

func newProcFS(root string) (procfs.FS, error) {
	if root == "" {
		root = defaultProcRoot
	}
	fs, err := procfs.NewFS(root)
	if err != nil {
		return procfs.FS{}, fmt.Errorf("procfs '%s': %v", root, err)
	}
	return fs, nil
}

func percent(part, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return part / total * 100
}
