// SPDX-License-Identifier: GPL-3.0-or-later

// Package filelock keeps a single agent instance per lock directory.
package filelock

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gofrs/flock"
)

var ErrLocked = errors.New("locked by another process")

type Lock struct {
	path string
	fl   *flock.Flock
}

// Acquire takes "<dir>/<name>.lock" without blocking and records the holder's pid in it.
// It returns an error wrapping ErrLocked when the lock is held elsewhere.
func Acquire(dir, name string) (*Lock, error) {
	path := filepath.Join(dir, name+".lock")
	fl := flock.New(path)

	ok, err := fl.TryLock()
	if err != nil {
		return nil, err
	}
	if !ok {
		_ = fl.Close()
		if pid, ok := HolderPID(dir, name); ok {
			return nil, fmt.Errorf("%w (pid %d)", ErrLocked, pid)
		}
		return nil, ErrLocked
	}

	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		_ = fl.Close()
		return nil, fmt.Errorf("write pid to '%s': %v", path, err)
	}

	return &Lock{path: path, fl: fl}, nil
}

func (l *Lock) Path() string { return l.path }

// Release unlocks. The file is left in place, removing it would race with a concurrent Acquire.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	err := l.fl.Close()
	l.fl = nil
	return err
}

// HolderPID reads the pid recorded by the last successful Acquire.
func HolderPID(dir, name string) (int, bool) {
	bs, err := os.ReadFile(filepath.Join(dir, name+".lock"))
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(bs)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}
