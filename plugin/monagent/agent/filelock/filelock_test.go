// SPDX-License-Identifier: GPL-3.0-or-later

package filelock

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquire(t *testing.T) {
	tests := map[string]func(t *testing.T, dir string){
		"take a free lock": func(t *testing.T, dir string) {
			lock, err := Acquire(dir, "monagent")
			require.NoError(t, err)
			defer func() { _ = lock.Release() }()

			assert.Equal(t, filepath.Join(dir, "monagent.lock"), lock.Path())

			pid, ok := HolderPID(dir, "monagent")
			assert.True(t, ok)
			assert.Equal(t, os.Getpid(), pid)
		},
		"fail when the lock is held": func(t *testing.T, dir string) {
			first, err := Acquire(dir, "monagent")
			require.NoError(t, err)
			defer func() { _ = first.Release() }()

			_, err = Acquire(dir, "monagent")
			assert.ErrorIs(t, err, ErrLocked)
			assert.Contains(t, err.Error(), "pid")
		},
		"take the lock again after release": func(t *testing.T, dir string) {
			first, err := Acquire(dir, "monagent")
			require.NoError(t, err)
			require.NoError(t, first.Release())

			second, err := Acquire(dir, "monagent")
			require.NoError(t, err)
			assert.NoError(t, second.Release())
		},
		"different names do not conflict": func(t *testing.T, dir string) {
			a, err := Acquire(dir, "a")
			require.NoError(t, err)
			defer func() { _ = a.Release() }()

			b, err := Acquire(dir, "b")
			require.NoError(t, err)
			assert.NoError(t, b.Release())
		},
		"fail when the directory doesn't exist": func(t *testing.T, dir string) {
			_, err := Acquire(filepath.Join(dir, "missing"), "monagent")
			assert.Error(t, err)
			assert.NotErrorIs(t, err, ErrLocked)
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			test(t, t.TempDir())
		})
	}
}

func TestLock_Release(t *testing.T) {
	var nilLock *Lock
	assert.NoError(t, nilLock.Release())

	lock, err := Acquire(t.TempDir(), "monagent")
	require.NoError(t, err)
	assert.NoError(t, lock.Release())
	assert.NoError(t, lock.Release())
}

func TestHolderPID(t *testing.T) {
	tests := map[string]struct {
		content string
		wantPID int
		wantOK  bool
	}{
		"valid pid":    {content: "1234\n", wantPID: 1234, wantOK: true},
		"garbage":      {content: "not-a-pid"},
		"empty":        {content: ""},
		"non-positive": {content: "0"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "monagent.lock"), []byte(test.content), 0o644))

			pid, ok := HolderPID(dir, "monagent")
			assert.Equal(t, test.wantOK, ok)
			assert.Equal(t, test.wantPID, pid)
		})
	}

	_, ok := HolderPID(t.TempDir(), "missing")
	assert.False(t, ok)
}
