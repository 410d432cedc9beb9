// SPDX-License-Identifier: GPL-3.0-or-later

package servicecheck

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/pkg/aggregator"
)

func TestRunner_Run(t *testing.T) {
	tests := map[string]struct {
		probe       Probe
		wantStatus  Status
		wantMessage string
	}{
		"up": {
			probe:      func(context.Context) error { return nil },
			wantStatus: StatusUp,
		},
		"down": {
			probe:       func(context.Context) error { return errors.New("connection refused") },
			wantStatus:  StatusDown,
			wantMessage: "connection refused",
		},
		"timed out": {
			probe: func(ctx context.Context) error {
				time.Sleep(200 * time.Millisecond)
				return nil
			},
			wantStatus:  StatusDown,
			wantMessage: "timed out",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			r := NewRunner(50*time.Millisecond, 2)

			res := r.Run(context.Background(), "svc", test.probe)

			assert.Equal(t, test.wantStatus, res.Status)
			assert.Contains(t, res.Message, test.wantMessage)
		})
	}
}

func TestRunner_Run_SkipsKeyInFlight(t *testing.T) {
	r := NewRunner(20*time.Millisecond, 4)
	release := make(chan struct{})
	defer close(release)

	res := r.Run(context.Background(), "slow", func(context.Context) error {
		<-release
		return nil
	})
	require.Equal(t, StatusDown, res.Status)

	started := false
	res = r.Run(context.Background(), "slow", func(context.Context) error {
		started = true
		return nil
	})
	assert.Equal(t, StatusDown, res.Status)
	assert.Contains(t, res.Message, "still running")
	assert.False(t, started)

	res = r.Run(context.Background(), "other", func(context.Context) error { return nil })
	assert.Equal(t, StatusUp, res.Status)
}

func TestValueMeta(t *testing.T) {
	tests := map[string]struct {
		msg       string
		wantNil   bool
		wantExact bool
	}{
		"empty":     {msg: "", wantNil: true},
		"short":     {msg: "connection refused", wantExact: true},
		"long":      {msg: strings.Repeat("x", 5000)},
		"escaped":   {msg: strings.Repeat("<>&\"", 2000)},
		"multibyte": {msg: strings.Repeat("ошибка ", 1000)},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			meta := ValueMeta(test.msg)

			if test.wantNil {
				assert.Nil(t, meta)
				return
			}
			require.NotNil(t, meta)
			if test.wantExact {
				assert.Equal(t, test.msg, meta["error"])
			}
			bs, err := json.Marshal(meta)
			require.NoError(t, err)
			assert.LessOrEqual(t, len(bs), aggregator.MaxValueMetaSize)
			assert.True(t, utf8.ValidString(meta["error"]))
		})
	}
}
