// SPDX-License-Identifier: GPL-3.0-or-later

package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"github.com/monagent/monagent/pkg/aggregator"
)

const (
	queryServerVersion = "SHOW server_version_num;"
	queryDatabaseStats = `
SELECT stat.datname,
       numbackends,
       xact_commit,
       xact_rollback,
       blks_read,
       blks_hit,
       tup_returned,
       tup_fetched,
       tup_inserted,
       tup_updated,
       tup_deleted,
       deadlocks,
       pg_database_size(stat.datname) AS size
FROM pg_stat_database stat
         INNER JOIN pg_database db ON db.datname = stat.datname
WHERE db.datistemplate = false;
`
)

// pg_stat_database column -> metric. Counters since stats reset are emitted as rates.
var databaseColumns = map[string]struct {
	name   string
	isRate bool
}{
	"numbackends":   {"postgresql.connections", false},
	"xact_commit":   {"postgresql.commits", true},
	"xact_rollback": {"postgresql.rollbacks", true},
	"blks_read":     {"postgresql.disk_read", true},
	"blks_hit":      {"postgresql.buffer_hit", true},
	"tup_returned":  {"postgresql.rows_returned", true},
	"tup_fetched":   {"postgresql.rows_fetched", true},
	"tup_inserted":  {"postgresql.rows_inserted", true},
	"tup_updated":   {"postgresql.rows_updated", true},
	"tup_deleted":   {"postgresql.rows_deleted", true},
	"deadlocks":     {"postgresql.deadlocks", true},
	"size":          {"postgresql.database_size", false},
}

func (c *Collector) collect(ctx context.Context) error {
	if c.db == nil {
		db, err := c.openConnection(ctx)
		if err != nil {
			return err
		}
		c.db = db
	}

	if c.pgVersion == 0 {
		var s string
		if err := c.doQueryRow(ctx, queryServerVersion, &s); err != nil {
			return fmt.Errorf("querying server version error: %v", err)
		}
		v, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("parsing server version '%s': %v", s, err)
		}
		c.pgVersion = v
		c.Debugf("connected to PostgreSQL v%d", c.pgVersion)
	}

	return c.collectDatabaseStats(ctx)
}

func (c *Collector) collectDatabaseStats(ctx context.Context) error {
	var (
		dbname string
		skip   bool
	)
	numBackends := 0.0

	err := c.doQuery(ctx, queryDatabaseStats, func(column, value string, _ bool) {
		if column == "datname" {
			dbname = value
			skip = c.databases != nil && !c.databases[dbname]
			return
		}
		m, ok := databaseColumns[column]
		if !ok || skip {
			return
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return
		}
		if column == "numbackends" {
			numBackends += v
		}

		opt := aggregator.WithDimensions(map[string]string{
			"service":         "postgres",
			"db":              dbname,
			"postgres_target": c.target,
		})
		if m.isRate {
			c.Rate(m.name, v, opt)
		} else {
			c.Gauge(m.name, v, opt)
		}
	})
	if err != nil {
		return fmt.Errorf("querying database stats error: %v", err)
	}

	c.Gauge("postgresql.total_connections", numBackends,
		aggregator.WithDimensions(map[string]string{"service": "postgres", "postgres_target": c.target}))

	return nil
}

func (c *Collector) openConnection(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("pgx", c.DSN)
	if err != nil {
		return nil, fmt.Errorf("error on opening a connection with the Postgres database [%s]: %v", c.target, err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(10 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("error on pinging the Postgres database [%s]: %v", c.target, err)
	}

	return db, nil
}

func (c *Collector) doQueryRow(ctx context.Context, query string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	return c.db.QueryRowContext(ctx, query).Scan(v)
}

func (c *Collector) doQuery(ctx context.Context, query string, assign func(column, value string, rowEnd bool)) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()

	return readRows(rows, assign)
}

func readRows(rows *sql.Rows, assign func(column, value string, rowEnd bool)) error {
	columns, err := rows.Columns()
	if err != nil {
		return err
	}

	values := makeValues(len(columns))

	for rows.Next() {
		if err := rows.Scan(values...); err != nil {
			return err
		}
		for i, l := 0, len(values); i < l; i++ {
			assign(columns[i], valueToString(values[i]), i == l-1)
		}
	}
	return rows.Err()
}

func valueToString(value any) string {
	v, ok := value.(*sql.NullString)
	if !ok || !v.Valid {
		return ""
	}
	return v.String
}

func makeValues(size int) []any {
	vs := make([]any, size)
	for i := range vs {
		vs[i] = &sql.NullString{}
	}
	return vs
}
