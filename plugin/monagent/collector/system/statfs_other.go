// SPDX-License-Identifier: GPL-3.0-or-later

//go:build !linux && !darwin && !freebsd

package system

import (
	"errors"
)

func statfs(string) (fsUsage, error) {
	return fsUsage{}, errors.New("statfs is not supported on this platform")
}
