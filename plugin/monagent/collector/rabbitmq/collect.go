// SPDX-License-Identifier: GPL-3.0-or-later

package rabbitmq

import (
	"context"
	"fmt"
	"io"
	"maps"

	"github.com/tidwall/gjson"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/web"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

const (
	urlPathAPIOverview = "/api/overview"
	urlPathAPINodes    = "/api/nodes"
	urlPathAPIQueues   = "/api/queues"
)

type jsonMetric struct {
	path   string
	name   string
	isRate bool
}

var overviewMetrics = []jsonMetric{
	{"object_totals.connections", "rabbitmq.connections", false},
	{"object_totals.channels", "rabbitmq.channels", false},
	{"object_totals.consumers", "rabbitmq.consumers", false},
	{"object_totals.exchanges", "rabbitmq.exchanges", false},
	{"object_totals.queues", "rabbitmq.queues", false},
	{"queue_totals.messages", "rabbitmq.messages", false},
	{"queue_totals.messages_ready", "rabbitmq.messages_ready", false},
	{"queue_totals.messages_unacknowledged", "rabbitmq.messages_unacknowledged", false},
	{"message_stats.publish", "rabbitmq.messages.published_sec", true},
	{"message_stats.deliver_get", "rabbitmq.messages.delivered_sec", true},
	{"message_stats.ack", "rabbitmq.messages.acked_sec", true},
	{"message_stats.redeliver", "rabbitmq.messages.redelivered_sec", true},
}

var nodeMetrics = []jsonMetric{
	{"fd_used", "rabbitmq.node.fd_used", false},
	{"sockets_used", "rabbitmq.node.sockets_used", false},
	{"proc_used", "rabbitmq.node.proc_used", false},
	{"mem_used", "rabbitmq.node.mem_used", false},
	{"disk_free", "rabbitmq.node.disk_free", false},
	{"run_queue", "rabbitmq.node.run_queue", false},
	{"partitions.#", "rabbitmq.node.partitions", false},
}

var queueMetrics = []jsonMetric{
	{"messages", "rabbitmq.queue.messages", false},
	{"messages_ready", "rabbitmq.queue.messages_ready", false},
	{"messages_unacknowledged", "rabbitmq.queue.messages_unacknowledged", false},
	{"consumers", "rabbitmq.queue.consumers", false},
	{"memory", "rabbitmq.queue.memory", false},
	{"message_stats.publish", "rabbitmq.queue.messages.published_sec", true},
	{"message_stats.deliver_get", "rabbitmq.queue.messages.delivered_sec", true},
	{"message_stats.ack", "rabbitmq.queue.messages.acked_sec", true},
}

func (c *Collector) collect(ctx context.Context) error {
	if err := c.collectOverview(ctx); err != nil {
		return err
	}
	if c.CollectNodes {
		if err := c.collectNodes(ctx); err != nil {
			return err
		}
	}
	if c.CollectQueues {
		if err := c.collectQueues(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Collector) baseDims() map[string]string {
	dims := map[string]string{"service": "rabbitmq", "component": "rabbitmq"}
	if c.clusterName != "" {
		dims["rabbitmq_cluster"] = c.clusterName
	}
	return dims
}

func (c *Collector) collectOverview(ctx context.Context) error {
	res, err := c.doGetJSON(ctx, urlPathAPIOverview)
	if err != nil {
		return err
	}
	if !res.Get("rabbitmq_version").Exists() {
		return fmt.Errorf("unexpected response from '%s': rabbitmq version is missing", urlPathAPIOverview)
	}

	c.clusterName = res.Get("cluster_name").String()

	c.emit(res, overviewMetrics, c.baseDims())

	return nil
}

func (c *Collector) collectNodes(ctx context.Context) error {
	res, err := c.doGetJSON(ctx, urlPathAPINodes)
	if err != nil {
		return err
	}

	base := c.baseDims()
	for _, node := range res.Array() {
		dims := maps.Clone(base)
		dims["node"] = node.Get("name").String()

		var msg string
		status := servicecheck.StatusUp
		if !node.Get("running").Bool() {
			status, msg = servicecheck.StatusDown, "node is not running"
		}
		c.Gauge("rabbitmq.node.status", float64(status),
			aggregator.WithDimensions(dims), aggregator.WithValueMeta(servicecheck.ValueMeta(msg)))

		if status == servicecheck.StatusUp {
			c.emit(&node, nodeMetrics, dims)
		}
	}

	return nil
}

func (c *Collector) collectQueues(ctx context.Context) error {
	res, err := c.doGetJSON(ctx, urlPathAPIQueues)
	if err != nil {
		return err
	}

	base := c.baseDims()
	for _, q := range res.Array() {
		name := q.Get("name").String()
		if !c.queueSelected(name) {
			continue
		}
		dims := maps.Clone(base)
		dims["queue"] = name
		dims["vhost"] = q.Get("vhost").String()

		c.emit(&q, queueMetrics, dims)
	}

	return nil
}

func (c *Collector) emit(res *gjson.Result, metrics []jsonMetric, dims map[string]string) {
	opt := aggregator.WithDimensions(dims)
	for _, m := range metrics {
		v := res.Get(m.path)
		if !v.Exists() {
			continue
		}
		if m.isRate {
			c.Rate(m.name, v.Float(), opt)
		} else {
			c.Gauge(m.name, v.Float(), opt)
		}
	}
}

func (c *Collector) queueSelected(name string) bool {
	if len(c.reQueues) == 0 {
		return true
	}
	for _, re := range c.reQueues {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (c *Collector) doGetJSON(ctx context.Context, urlPath string) (*gjson.Result, error) {
	req, err := web.NewHTTPRequestWithPath(c.RequestConfig, urlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to create '%s' request: %w", urlPath, err)
	}

	var res gjson.Result
	err = web.Do(c.httpClient, req.WithContext(ctx), func(body io.Reader) error {
		bs, err := io.ReadAll(body)
		if err != nil {
			return err
		}
		if !gjson.ValidBytes(bs) {
			return fmt.Errorf("'%s' returned invalid JSON", req.URL)
		}
		res = gjson.ParseBytes(bs)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &res, nil
}
