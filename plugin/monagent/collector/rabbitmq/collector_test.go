// SPDX-License-Identifier: GPL-3.0-or-later

package rabbitmq

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

var (
	dataConfigJSON, _ = os.ReadFile("testdata/config.json")
	dataConfigYAML, _ = os.ReadFile("testdata/config.yaml")

	dataOverview, _ = os.ReadFile("testdata/overview.json")
	dataNodes, _    = os.ReadFile("testdata/nodes.json")
	dataQueues, _   = os.ReadFile("testdata/queues.json")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataConfigJSON": dataConfigJSON,
		"dataConfigYAML": dataConfigYAML,
		"dataOverview":   dataOverview,
		"dataNodes":      dataNodes,
		"dataQueues":     dataQueues,
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
		prepare  func(c *Collector)
	}{
		"success with default": {
			prepare: func(*Collector) {},
		},
		"fail when URL not set": {
			wantFail: true,
			prepare:  func(c *Collector) { c.URL = "" },
		},
		"fail when queue regexp is invalid": {
			wantFail: true,
			prepare:  func(c *Collector) { c.Queues = []string{"orders["} },
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			collr := New()
			test.prepare(collr)

			if test.wantFail {
				assert.Error(t, collr.Init(context.Background()))
			} else {
				assert.NoError(t, collr.Init(context.Background()))
			}
		})
	}
}

func TestCollector_Collect(t *testing.T) {
	const base = "component=rabbitmq,rabbitmq_cluster=rabbit@main,service=rabbitmq"

	overview := map[string]float64{
		"rabbitmq.connections{" + base + "}":              6,
		"rabbitmq.channels{" + base + "}":                 12,
		"rabbitmq.consumers{" + base + "}":                4,
		"rabbitmq.exchanges{" + base + "}":                9,
		"rabbitmq.queues{" + base + "}":                   3,
		"rabbitmq.messages{" + base + "}":                 120,
		"rabbitmq.messages_ready{" + base + "}":           100,
		"rabbitmq.messages_unacknowledged{" + base + "}":  20,
		"rabbitmq.messages.published_sec{" + base + "}":   0,
		"rabbitmq.messages.delivered_sec{" + base + "}":   0,
		"rabbitmq.messages.acked_sec{" + base + "}":       0,
		"rabbitmq.messages.redelivered_sec{" + base + "}": 0,
	}
	nodes := map[string]float64{
		"rabbitmq.node.status{" + base + ",node=rabbit@node1}":       0,
		"rabbitmq.node.fd_used{" + base + ",node=rabbit@node1}":      80,
		"rabbitmq.node.sockets_used{" + base + ",node=rabbit@node1}": 6,
		"rabbitmq.node.proc_used{" + base + ",node=rabbit@node1}":    450,
		"rabbitmq.node.mem_used{" + base + ",node=rabbit@node1}":     150000000,
		"rabbitmq.node.disk_free{" + base + ",node=rabbit@node1}":    50000000000,
		"rabbitmq.node.run_queue{" + base + ",node=rabbit@node1}":    1,
		"rabbitmq.node.partitions{" + base + ",node=rabbit@node1}":   0,
		"rabbitmq.node.status{" + base + ",node=rabbit@node2}":       1,
	}
	queues := map[string]float64{
		"rabbitmq.queue.messages{" + base + ",queue=orders,vhost=/}":                100,
		"rabbitmq.queue.messages_ready{" + base + ",queue=orders,vhost=/}":          90,
		"rabbitmq.queue.messages_unacknowledged{" + base + ",queue=orders,vhost=/}": 10,
		"rabbitmq.queue.consumers{" + base + ",queue=orders,vhost=/}":               2,
		"rabbitmq.queue.memory{" + base + ",queue=orders,vhost=/}":                  55000,
		"rabbitmq.queue.messages.published_sec{" + base + ",queue=orders,vhost=/}":  0,
		"rabbitmq.queue.messages.delivered_sec{" + base + ",queue=orders,vhost=/}":  0,
		"rabbitmq.queue.messages.acked_sec{" + base + ",queue=orders,vhost=/}":      0,
	}
	replyQueue := map[string]float64{
		"rabbitmq.queue.messages{" + base + ",queue=amq.gen-reply,vhost=/}":                0,
		"rabbitmq.queue.messages_ready{" + base + ",queue=amq.gen-reply,vhost=/}":          0,
		"rabbitmq.queue.messages_unacknowledged{" + base + ",queue=amq.gen-reply,vhost=/}": 0,
		"rabbitmq.queue.consumers{" + base + ",queue=amq.gen-reply,vhost=/}":               1,
		"rabbitmq.queue.memory{" + base + ",queue=amq.gen-reply,vhost=/}":                  10000,
	}

	tests := map[string]struct {
		prepare func(c *Collector)
		want    []map[string]float64
	}{
		"overview and nodes": {
			prepare: func(*Collector) {},
			want:    []map[string]float64{overview, nodes},
		},
		"overview only": {
			prepare: func(c *Collector) { c.CollectNodes = false },
			want:    []map[string]float64{overview},
		},
		"all queues": {
			prepare: func(c *Collector) { c.CollectQueues = true },
			want:    []map[string]float64{overview, nodes, queues, replyQueue},
		},
		"selected queues": {
			prepare: func(c *Collector) {
				c.CollectQueues = true
				c.Queues = []string{"^orders$"}
			},
			want: []map[string]float64{overview, nodes, queues},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			srv := prepareRabbitMQEndpoint()
			defer srv.Close()

			collr := New()
			collr.URL = srv.URL
			test.prepare(collr)
			require.NoError(t, collr.Init(context.Background()))
			defer collr.Cleanup(context.Background())

			h := module.NewHarness(t, collr)

			want := make(map[string]float64)
			for _, mx := range test.want {
				for k, v := range mx {
					want[k] = v
				}
			}

			assert.Equal(t, want, h.CollectTwice(t, collr, time.Second*10))
		})
	}
}

func TestCollector_Collect_Fails(t *testing.T) {
	tests := map[string]func(w http.ResponseWriter, r *http.Request){
		"invalid data": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("hello and\n goodbye"))
		},
		"unexpected JSON": func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"hello": "goodbye"}`))
		},
		"404": func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		},
	}

	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(handler))
			defer srv.Close()

			collr := New()
			collr.URL = srv.URL
			require.NoError(t, collr.Init(context.Background()))

			assert.Error(t, collr.Collect(context.Background()))
		})
	}
}

func prepareRabbitMQEndpoint() *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case urlPathAPIOverview:
				_, _ = w.Write(dataOverview)
			case urlPathAPINodes:
				_, _ = w.Write(dataNodes)
			case urlPathAPIQueues:
				_, _ = w.Write(dataQueues)
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
}
