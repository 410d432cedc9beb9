// SPDX-License-Identifier: GPL-3.0-or-later

package redis

import (
	"bufio"
	"context"
	"maps"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/monagent/monagent/pkg/aggregator"
)

type infoMetric struct {
	name   string
	isRate bool
}

// INFO field -> metric
var infoMetrics = map[string]infoMetric{
	"connected_clients":           {"redis.net.clients", false},
	"blocked_clients":             {"redis.net.blocked", false},
	"connected_slaves":            {"redis.net.slaves", false},
	"rejected_connections":        {"redis.net.rejected", true},
	"total_commands_processed":    {"redis.net.commands", true},
	"used_memory":                 {"redis.mem.used", false},
	"used_memory_rss":             {"redis.mem.rss", false},
	"used_memory_peak":            {"redis.mem.peak", false},
	"used_memory_lua":             {"redis.mem.lua", false},
	"mem_fragmentation_ratio":     {"redis.mem.fragmentation_ratio", false},
	"keyspace_hits":               {"redis.stats.keyspace_hits", true},
	"keyspace_misses":             {"redis.stats.keyspace_misses", true},
	"expired_keys":                {"redis.keys.expired", true},
	"evicted_keys":                {"redis.keys.evicted", true},
	"rdb_changes_since_last_save": {"redis.rdb.changes_since_last", false},
	"rdb_last_bgsave_time_sec":    {"redis.rdb.bgsave", false},
	"aof_last_rewrite_time_sec":   {"redis.aof.last_rewrite_time", false},
	"pubsub_channels":             {"redis.pubsub.channels", false},
	"pubsub_patterns":             {"redis.pubsub.patterns", false},
	"used_cpu_sys":                {"redis.cpu.sys", true},
	"used_cpu_user":               {"redis.cpu.user", true},
	"master_last_io_seconds_ago":  {"redis.replication.last_io_seconds_ago", false},
	"master_repl_offset":          {"redis.replication.master_repl_offset", false},
}

var reKeyspaceValue = regexp.MustCompile(`^keys=(\d+),expires=(\d+)`)

func (c *Collector) collect(ctx context.Context) error {
	info, err := c.rdb.Info(ctx, "all").Result()
	if err != nil {
		return err
	}

	c.collectInfo(info)
	c.collectPingLatency(ctx)

	return nil
}

func (c *Collector) collectInfo(info string) {
	// https://redis.io/commands/info
	// Lines can contain a section name (starting with a # character) or a property.
	// All the properties are in the form of field:value terminated by \r\n.

	opt := aggregator.WithDimensions(c.dims)

	var curSection string
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if len(line) == 0 {
			curSection = ""
			continue
		}
		if strings.HasPrefix(line, "#") {
			curSection = line
			continue
		}

		field, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		switch {
		case curSection == "# Keyspace":
			c.collectKeyspace(field, value)
		case field == "master_link_status":
			c.Gauge("redis.replication.master_link_down", boolValue(value != "up"), opt)
		case field == "rdb_last_bgsave_status":
			c.Gauge("redis.rdb.last_bgsave_failed", boolValue(value != "ok"), opt)
		case field == "rdb_last_save_time":
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				c.Gauge("redis.rdb.last_save_age_sec", time.Since(time.Unix(v, 0)).Seconds(), opt)
			}
		default:
			m, ok := infoMetrics[field]
			if !ok {
				continue
			}
			v, err := strconv.ParseFloat(value, 64)
			if err != nil {
				continue
			}
			if m.isRate {
				c.Rate(m.name, v, opt)
			} else {
				c.Gauge(m.name, v, opt)
			}
		}
	}
}

// db0:keys=1,expires=0,avg_ttl=0
func (c *Collector) collectKeyspace(db, value string) {
	match := reKeyspaceValue.FindStringSubmatch(value)
	if match == nil {
		return
	}

	dims := maps.Clone(c.dims)
	dims["redis_db"] = db
	opt := aggregator.WithDimensions(dims)

	keys, _ := strconv.ParseFloat(match[1], 64)
	expires, _ := strconv.ParseFloat(match[2], 64)
	c.Gauge("redis.keys", keys, opt)
	c.Gauge("redis.expires", expires, opt)
	c.Gauge("redis.persist", keys-expires, opt)
}

func (c *Collector) collectPingLatency(ctx context.Context) {
	var total time.Duration
	var n int

	for i := 0; i < c.PingSamples; i++ {
		now := time.Now()
		_, err := c.rdb.Ping(ctx).Result()
		elapsed := time.Since(now)

		if err != nil {
			c.Debug(err)
			continue
		}
		total += elapsed
		n++
	}

	if n == 0 {
		return
	}
	c.Gauge("redis.info.latency_ms", float64(total.Microseconds())/float64(n)/1000, aggregator.WithDimensions(c.dims))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
