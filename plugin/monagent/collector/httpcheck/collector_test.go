// SPDX-License-Identifier: GPL-3.0-or-later

package httpcheck

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/pkg/web"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

var (
	dataConfigJSON, _ = os.ReadFile("testdata/config.json")
	dataConfigYAML, _ = os.ReadFile("testdata/config.yaml")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataConfigJSON": dataConfigJSON,
		"dataConfigYAML": dataConfigYAML,
	} {
		require.NotNil(t, data, name)
	}
}

func TestCollector_ConfigurationSerialize(t *testing.T) {
	module.TestConfigurationSerialize(t, &Collector{}, dataConfigJSON, dataConfigYAML)
}

func TestCollector_Init(t *testing.T) {
	tests := map[string]struct {
		wantFail bool
		config   Config
	}{
		"success if url set": {
			config: Config{
				HTTPConfig: web.HTTPConfig{
					RequestConfig: web.RequestConfig{URL: "http://127.0.0.1:38001"},
				},
			},
		},
		"fail with default": {
			wantFail: true,
			config:   New().Config,
		},
		"fail if wrong response regex": {
			wantFail: true,
			config: Config{
				HTTPConfig: web.HTTPConfig{
					RequestConfig: web.RequestConfig{URL: "http://127.0.0.1:38001"},
				},
				ResponseMatch: "(?:qwe))",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr := New()
			collr.Config = test.config

			if test.wantFail {
				assert.Error(t, collr.Init(context.Background()))
			} else {
				assert.NoError(t, collr.Init(context.Background()))
			}
		})
	}
}

func TestCollector_Cleanup(t *testing.T) {
	collr := New()
	assert.NotPanics(t, func() { collr.Cleanup(context.Background()) })

	collr.URL = "http://127.0.0.1:38001"
	require.NoError(t, collr.Init(context.Background()))
	assert.NotPanics(t, func() { collr.Cleanup(context.Background()) })
}

func TestCollector_Collect(t *testing.T) {
	tests := map[string]struct {
		handler      http.HandlerFunc
		match        string
		timeout      time.Duration
		noServer     bool
		wantStatus   float64
		wantRespTime bool
		wantMeta     string
	}{
		"up": {
			handler:      func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("ok")) },
			wantStatus:   0,
			wantRespTime: true,
		},
		"up with matching body": {
			handler:      func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte(`{"status":"healthy"}`)) },
			match:        `"status":"healthy"`,
			wantStatus:   0,
			wantRespTime: true,
		},
		"down on bad status": {
			handler:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusServiceUnavailable) },
			wantStatus: 1,
			wantMeta:   "error code: 503",
		},
		"down on body mismatch": {
			handler:    func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("maintenance")) },
			match:      "healthy",
			wantStatus: 1,
			wantMeta:   "pattern 'healthy' not found",
		},
		"down on timeout": {
			handler: func(w http.ResponseWriter, r *http.Request) {
				select {
				case <-r.Context().Done():
				case <-time.After(2 * time.Second):
				}
			},
			timeout:    50 * time.Millisecond,
			wantStatus: 1,
			wantMeta:   "timed out|deadline exceeded",
		},
		"down on connection refused": {
			noServer:   true,
			wantStatus: 1,
			wantMeta:   "is DOWN",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr := New()
			if test.noServer {
				collr.URL = "http://127.0.0.1:1"
			} else {
				srv := httptest.NewServer(test.handler)
				defer srv.Close()
				collr.URL = srv.URL
			}
			collr.ResponseMatch = test.match
			if test.timeout > 0 {
				collr.Timeout = confopt.Duration(test.timeout)
			}
			require.NoError(t, collr.Init(context.Background()))
			defer collr.Cleanup(context.Background())

			h := module.NewHarness(t, collr)
			require.NoError(t, collr.Collect(context.Background()))
			batch := h.Aggregator.Flush()

			mx := module.SeriesValues(batch)
			statusKey := module.SeriesKey("http_status", map[string]string{"url": collr.URL})
			require.Contains(t, mx, statusKey)
			assert.Equal(t, test.wantStatus, mx[statusKey])

			_, hasRespTime := mx[module.SeriesKey("http_response_time", map[string]string{"url": collr.URL})]
			assert.Equal(t, test.wantRespTime, hasRespTime)

			for _, env := range batch {
				if env.Measurement.Name != "http_status" {
					continue
				}
				if test.wantMeta == "" {
					assert.Nil(t, env.Measurement.ValueMeta)
				} else {
					require.NotNil(t, env.Measurement.ValueMeta)
					assert.Regexp(t, test.wantMeta, env.Measurement.ValueMeta["error"])
				}
			}
		})
	}
}
