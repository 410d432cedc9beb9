// SPDX-License-Identifier: GPL-3.0-or-later

package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/blang/semver/v4"
	"github.com/go-sql-driver/mysql"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("mysql", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			DSN:     "root@tcp(localhost:3306)/",
			Timeout: confopt.Duration(time.Second),
		},
	}
}

type Config struct {
	DSN     string           `yaml:"dsn" json:"dsn"`
	Timeout confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
}

type Collector struct {
	module.Base
	Config `yaml:",inline" json:""`

	db *sql.DB

	safeDSN string
	dims    map[string]string
	version *semver.Version

	varMaxConns int64
}

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if c.DSN == "" {
		return errors.New("config: dsn not set")
	}

	cfg, err := mysql.ParseDSN(c.DSN)
	if err != nil {
		return fmt.Errorf("error on parsing DSN: %v", err)
	}

	c.dims = map[string]string{"service": "mysql", "component": "mysql"}
	if cfg.Addr != "" {
		c.dims["hostname_port"] = cfg.Addr
	}

	cfg.Passwd = strings.Repeat("x", len(cfg.Passwd))
	c.safeDSN = cfg.FormatDSN()

	c.Debugf("using DSN [%s]", c.safeDSN)

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	return c.Collect(ctx)
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {
	if c.db == nil {
		return
	}
	if err := c.db.Close(); err != nil {
		c.Errorf("cleanup: error on closing the mysql database [%s]: %v", c.safeDSN, err)
	}
	c.db = nil
}
