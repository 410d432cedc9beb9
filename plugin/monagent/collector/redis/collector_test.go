// SPDX-License-Identifier: GPL-3.0-or-later

package redis

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/pkg/tlscfg"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

var (
	dataConfigJSON, _ = os.ReadFile("testdata/config.json")
	dataConfigYAML, _ = os.ReadFile("testdata/config.yaml")

	dataInfoAll1, _ = os.ReadFile("testdata/info_all1.txt")
	dataInfoAll2, _ = os.ReadFile("testdata/info_all2.txt")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataConfigJSON": dataConfigJSON,
		"dataConfigYAML": dataConfigYAML,
		"dataInfoAll1":   dataInfoAll1,
		"dataInfoAll2":   dataInfoAll2,
	} {
		require.NotNil(t, data, name)
	}
}

func TestCollector_ConfigurationSerialize(t *testing.T) {
	module.TestConfigurationSerialize(t, &Collector{}, dataConfigJSON, dataConfigYAML)
}

func TestCollector_Init(t *testing.T) {
	tests := map[string]struct {
		config   Config
		wantFail bool
	}{
		"success with default config": {
			config: New().Config,
		},
		"fails with unset 'address'": {
			wantFail: true,
			config:   Config{Address: ""},
		},
		"fails with invalid 'address' format": {
			wantFail: true,
			config:   Config{Address: "127.0.0.1:6379"},
		},
		"fails with invalid TLSCA": {
			wantFail: true,
			config: Config{
				Address:   "redis://127.0.0.1:6379",
				TLSConfig: tlscfg.TLSConfig{TLSCA: "testdata/tls"},
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
				require.NoError(t, collr.Init(context.Background()))
				assert.Equal(t, "localhost:6379", collr.dims["redis_host"])
			}
		})
	}
}

func TestCollector_Cleanup(t *testing.T) {
	collr := New()
	m := &mockRedisClient{}
	collr.rdb = m

	collr.Cleanup(context.Background())

	assert.True(t, m.calledClose)
	assert.Nil(t, collr.rdb)
}

func TestCollector_Collect(t *testing.T) {
	tests := map[string]struct {
		client   *mockRedisClient
		wantFail bool
		want     map[string]float64
	}{
		"success on valid response": {
			client: &mockRedisClient{results: [][]byte{dataInfoAll1, dataInfoAll2}},
			want: map[string]float64{
				"redis.net.clients{redis_host=localhost:6379,service=redis}":                  7,
				"redis.net.blocked{redis_host=localhost:6379,service=redis}":                  0,
				"redis.net.slaves{redis_host=localhost:6379,service=redis}":                   0,
				"redis.net.commands{redis_host=localhost:6379,service=redis}":                 50,
				"redis.mem.used{redis_host=localhost:6379,service=redis}":                     1200000,
				"redis.mem.rss{redis_host=localhost:6379,service=redis}":                      2000000,
				"redis.mem.fragmentation_ratio{redis_host=localhost:6379,service=redis}":      1.5,
				"redis.rdb.changes_since_last{redis_host=localhost:6379,service=redis}":       10,
				"redis.rdb.last_bgsave_failed{redis_host=localhost:6379,service=redis}":       1,
				"redis.stats.keyspace_hits{redis_host=localhost:6379,service=redis}":          10,
				"redis.stats.keyspace_misses{redis_host=localhost:6379,service=redis}":        0,
				"redis.keys.expired{redis_host=localhost:6379,service=redis}":                 0,
				"redis.keys.evicted{redis_host=localhost:6379,service=redis}":                 0,
				"redis.replication.master_link_down{redis_host=localhost:6379,service=redis}": 1,
				"redis.cpu.sys{redis_host=localhost:6379,service=redis}":                      0.1,
				"redis.cpu.user{redis_host=localhost:6379,service=redis}":                     0,
				"redis.keys{redis_db=db0,redis_host=localhost:6379,service=redis}":            12,
				"redis.expires{redis_db=db0,redis_host=localhost:6379,service=redis}":         2,
				"redis.persist{redis_db=db0,redis_host=localhost:6379,service=redis}":         10,
			},
		},
		"fails on error on Info": {
			client:   &mockRedisClient{errOnInfo: true},
			wantFail: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr := New()
			require.NoError(t, collr.Init(context.Background()))
			collr.rdb = test.client

			h := module.NewHarness(t, collr)

			if test.wantFail {
				assert.Error(t, collr.Collect(context.Background()))
				return
			}

			got := h.CollectTwice(t, collr, time.Second*10)

			latencyKey := "redis.info.latency_ms{redis_host=localhost:6379,service=redis}"
			assert.Contains(t, got, latencyKey)
			delete(got, latencyKey)

			assert.InDeltaMapValues(t, test.want, got, 1e-9)
			assert.Len(t, got, len(test.want))
		})
	}
}

func TestCollector_Collect_PingFails(t *testing.T) {
	collr := New()
	require.NoError(t, collr.Init(context.Background()))
	collr.rdb = &mockRedisClient{results: [][]byte{dataInfoAll1}, errOnPing: true}

	h := module.NewHarness(t, collr)
	got := h.Collect(t, collr)

	assert.NotContains(t, got, "redis.info.latency_ms{redis_host=localhost:6379,service=redis}")
	assert.Equal(t, 5.0, got["redis.net.clients{redis_host=localhost:6379,service=redis}"])
}

type mockRedisClient struct {
	errOnInfo   bool
	errOnPing   bool
	results     [][]byte
	calls       int
	calledClose bool
}

func (m *mockRedisClient) Info(_ context.Context, _ ...string) (cmd *redis.StringCmd) {
	if m.errOnInfo {
		return redis.NewStringResult("", errors.New("error on Info"))
	}
	res := m.results[min(m.calls, len(m.results)-1)]
	m.calls++
	return redis.NewStringResult(string(res), nil)
}

func (m *mockRedisClient) Ping(_ context.Context) (cmd *redis.StatusCmd) {
	if m.errOnPing {
		return redis.NewStatusResult("", errors.New("error on Ping"))
	}
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockRedisClient) Close() error {
	m.calledClose = true
	return nil
}
