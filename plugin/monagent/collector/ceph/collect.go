// SPDX-License-Identifier: GPL-3.0-or-later

package ceph

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

// health status -> metric value
var healthStatuses = map[string]float64{
	"HEALTH_OK":   0,
	"HEALTH_WARN": 1,
	"HEALTH_ERR":  2,
}

func (c *Collector) collect(ctx context.Context) error {
	status, err := c.exec.status(ctx)
	if err != nil {
		return err
	}
	if err := c.collectStatus(status); err != nil {
		return err
	}

	if !c.CollectPoolMetrics {
		return nil
	}

	df, err := c.exec.dfDetail(ctx)
	if err != nil {
		return err
	}
	c.collectDf(df)

	return nil
}

func (c *Collector) dims() map[string]string {
	return map[string]string{"service": "ceph", "ceph_cluster": c.ClusterName}
}

func (c *Collector) collectStatus(res *gjson.Result) error {
	health := res.Get("health.status").String()
	v, ok := healthStatuses[health]
	if !ok {
		return fmt.Errorf("unexpected ceph health status '%s'", health)
	}

	opt := aggregator.WithDimensions(c.dims())

	var msg string
	if health != "HEALTH_OK" {
		var checks []string
		res.Get("health.checks").ForEach(func(_, check gjson.Result) bool {
			checks = append(checks, check.Get("summary.message").String())
			return true
		})
		msg = strings.Join(checks, "; ")
		if msg == "" {
			msg = health
		}
	}
	c.Gauge("ceph.cluster.health_status", v, opt, aggregator.WithValueMeta(servicecheck.ValueMeta(msg)))

	// monmap and osdmap layouts differ between releases
	mons := float64(len(res.Get("monmap.mons").Array()))
	if v := res.Get("monmap.num_mons"); v.Exists() {
		mons = v.Float()
	}
	c.Gauge("ceph.monitors.count", mons, opt)
	c.Gauge("ceph.monitors.quorum_count", float64(len(res.Get("quorum_names").Array())), opt)

	osdmap := res.Get("osdmap")
	if nested := osdmap.Get("osdmap"); nested.Exists() {
		osdmap = nested
	}
	total := osdmap.Get("num_osds").Float()
	up := osdmap.Get("num_up_osds").Float()
	in := osdmap.Get("num_in_osds").Float()
	c.Gauge("ceph.osds.total_count", total, opt)
	c.Gauge("ceph.osds.up_count", up, opt)
	c.Gauge("ceph.osds.down_count", total-up, opt)
	c.Gauge("ceph.osds.in_count", in, opt)
	c.Gauge("ceph.osds.out_count", total-in, opt)

	pgmap := res.Get("pgmap")
	c.Gauge("ceph.cluster.total_bytes", pgmap.Get("bytes_total").Float(), opt)
	c.Gauge("ceph.cluster.used_bytes", pgmap.Get("bytes_used").Float(), opt)
	c.Gauge("ceph.cluster.avail_bytes", pgmap.Get("bytes_avail").Float(), opt)
	c.Gauge("ceph.cluster.objects.total_count", pgmap.Get("num_objects").Float(), opt)
	c.Gauge("ceph.cluster.pgs.total_count", pgmap.Get("num_pgs").Float(), opt)
	c.Gauge("ceph.cluster.read_bytes_sec", pgmap.Get("read_bytes_sec").Float(), opt)
	c.Gauge("ceph.cluster.write_bytes_sec", pgmap.Get("write_bytes_sec").Float(), opt)
	c.Gauge("ceph.cluster.read_ops_sec", pgmap.Get("read_op_per_sec").Float(), opt)
	c.Gauge("ceph.cluster.write_ops_sec", pgmap.Get("write_op_per_sec").Float(), opt)

	for _, st := range pgmap.Get("pgs_by_state").Array() {
		dims := c.dims()
		dims["state"] = st.Get("state_name").String()
		c.Gauge("ceph.cluster.pgs.state_count", st.Get("count").Float(), aggregator.WithDimensions(dims))
	}

	return nil
}

func (c *Collector) collectDf(res *gjson.Result) {
	base := c.dims()

	for _, pool := range res.Get("pools").Array() {
		dims := maps.Clone(base)
		dims["ceph_pool"] = pool.Get("name").String()
		opt := aggregator.WithDimensions(dims)

		stats := pool.Get("stats")
		c.Gauge("ceph.pool.used_bytes", stats.Get("bytes_used").Float(), opt)
		c.Gauge("ceph.pool.max_avail_bytes", stats.Get("max_avail").Float(), opt)
		c.Gauge("ceph.pool.objects_count", stats.Get("objects").Float(), opt)
		// percent_used is a ratio since luminous
		c.Gauge("ceph.pool.used_perc", stats.Get("percent_used").Float()*100, opt)
	}
}
