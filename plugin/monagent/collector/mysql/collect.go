// SPDX-License-Identifier: GPL-3.0-or-later

package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/monagent/monagent/pkg/aggregator"
)

const (
	queryShowGlobalStatus    = "SHOW GLOBAL STATUS;"
	queryShowGlobalVariables = `
SHOW GLOBAL VARIABLES 
WHERE 
  Variable_name LIKE 'max_connections';`
)

type metricKind int

const (
	gauge metricKind = iota
	rate
)

// global status variable -> emitted metric
var globalStatusMetrics = map[string]struct {
	name string
	kind metricKind
}{
	"connections":                    {"mysql.net.connections", rate},
	"max_used_connections":           {"mysql.net.max_connections", gauge},
	"aborted_connects":               {"mysql.net.aborted_connects", rate},
	"bytes_received":                 {"mysql.net.bytes_received", rate},
	"bytes_sent":                     {"mysql.net.bytes_sent", rate},
	"questions":                      {"mysql.performance.questions", rate},
	"queries":                        {"mysql.performance.queries", rate},
	"com_select":                     {"mysql.performance.com_select", rate},
	"com_insert":                     {"mysql.performance.com_insert", rate},
	"com_update":                     {"mysql.performance.com_update", rate},
	"com_delete":                     {"mysql.performance.com_delete", rate},
	"com_replace":                    {"mysql.performance.com_replace", rate},
	"slow_queries":                   {"mysql.performance.slow_queries", rate},
	"created_tmp_tables":             {"mysql.performance.created_tmp_tables", rate},
	"created_tmp_disk_tables":        {"mysql.performance.created_tmp_disk_tables", rate},
	"created_tmp_files":              {"mysql.performance.created_tmp_files", rate},
	"table_locks_waited":             {"mysql.performance.table_locks_waited", rate},
	"threads_connected":              {"mysql.performance.threads_connected", gauge},
	"threads_running":                {"mysql.performance.threads_running", gauge},
	"open_files":                     {"mysql.performance.open_files", gauge},
	"open_tables":                    {"mysql.performance.open_tables", gauge},
	"innodb_data_reads":              {"mysql.innodb.data_reads", rate},
	"innodb_data_writes":             {"mysql.innodb.data_writes", rate},
	"innodb_os_log_fsyncs":           {"mysql.innodb.os_log_fsyncs", rate},
	"innodb_row_lock_waits":          {"mysql.innodb.row_lock_waits", rate},
	"innodb_row_lock_time":           {"mysql.innodb.row_lock_time", rate},
	"innodb_mutex_spin_waits":        {"mysql.innodb.mutex_spin_waits", rate},
	"innodb_buffer_pool_pages_free":  {"mysql.innodb.buffer_pool_free", gauge},
	"innodb_buffer_pool_pages_total": {"mysql.innodb.buffer_pool_total", gauge},
	"innodb_buffer_pool_pages_data":  {"mysql.innodb.buffer_pool_used", gauge},
}

func (c *Collector) collect(ctx context.Context) error {
	if c.db == nil {
		if err := c.openConnection(ctx); err != nil {
			return err
		}
	}
	if c.version == nil {
		if err := c.collectVersion(ctx); err != nil {
			return fmt.Errorf("error on collecting version: %v", err)
		}
		if err := c.collectGlobalVariables(ctx); err != nil {
			return fmt.Errorf("error on collecting global variables: %v", err)
		}
	}

	mx := make(map[string]int64)

	if err := c.collectGlobalStatus(ctx, mx); err != nil {
		return fmt.Errorf("error on collecting global status: %v", err)
	}

	opt := aggregator.WithDimensions(c.dims)
	for key, value := range mx {
		m, ok := globalStatusMetrics[key]
		if !ok {
			continue
		}
		switch m.kind {
		case rate:
			c.Rate(m.name, float64(value), opt)
		default:
			c.Gauge(m.name, float64(value), opt)
		}
	}

	if c.varMaxConns > 0 {
		c.Gauge("mysql.performance.max_connections", float64(c.varMaxConns), opt)
		c.Gauge("mysql.performance.connections_perc", float64(mx["threads_connected"])*100/float64(c.varMaxConns), opt)
	}

	return nil
}

func (c *Collector) openConnection(ctx context.Context) error {
	db, err := sql.Open("mysql", c.DSN)
	if err != nil {
		return fmt.Errorf("error on opening a connection with the mysql database [%s]: %v", c.safeDSN, err)
	}

	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("error on pinging the mysql database [%s]: %v", c.safeDSN, err)
	}

	c.db = db
	return nil
}

func (c *Collector) collectGlobalStatus(ctx context.Context, mx map[string]int64) error {
	c.Debugf("executing query: '%s'", queryShowGlobalStatus)

	var name string
	return c.collectQuery(ctx, queryShowGlobalStatus, func(column, value string) {
		switch column {
		case "Variable_name":
			name = strings.ToLower(value)
		case "Value":
			if _, ok := globalStatusMetrics[name]; !ok {
				return
			}
			if v, err := strconv.ParseInt(value, 10, 64); err == nil {
				mx[name] = v
			}
		}
	})
}

func (c *Collector) collectGlobalVariables(ctx context.Context) error {
	c.Debugf("executing query: '%s'", queryShowGlobalVariables)

	var name string
	return c.collectQuery(ctx, queryShowGlobalVariables, func(column, value string) {
		switch column {
		case "Variable_name":
			name = value
		case "Value":
			if name == "max_connections" {
				c.varMaxConns, _ = strconv.ParseInt(value, 10, 64)
			}
		}
	})
}

func (c *Collector) collectQuery(ctx context.Context, query string, assign func(column, value string)) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	vs := makeValues(len(columns))
	for rows.Next() {
		if err := rows.Scan(vs...); err != nil {
			return err
		}
		for i := range vs {
			assign(columns[i], valueToString(vs[i]))
		}
	}
	return rows.Err()
}

func makeValues(size int) []any {
	vs := make([]any, size)
	for i := range vs {
		vs[i] = &sql.NullString{}
	}
	return vs
}

func valueToString(value any) string {
	v, ok := value.(*sql.NullString)
	if !ok || !v.Valid {
		return ""
	}
	return v.String
}
