// SPDX-License-Identifier: GPL-3.0-or-later

//go:build linux || darwin || freebsd

package system

import (
	"golang.org/x/sys/unix"
)

func statfs(path string) (fsUsage, error) {
	var st unix.Statfs_t
	if err := unix.Statfs(path, &st); err != nil {
		return fsUsage{}, err
	}

	bsize := uint64(st.Bsize)

	return fsUsage{
		totalBytes:  uint64(st.Blocks) * bsize,
		freeBytes:   uint64(st.Bavail) * bsize,
		totalInodes: uint64(st.Files),
		freeInodes:  uint64(st.Ffree),
	}, nil
}
