// SPDX-License-Identifier: GPL-3.0-or-later

package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/pkg/tlscfg"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("redis", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Address:     "redis://@localhost:6379",
			Timeout:     confopt.Duration(time.Second),
			PingSamples: 5,
		},
	}
}

type Config struct {
	Address          string           `yaml:"address" json:"address"`
	Timeout          confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
	Username         string           `yaml:"username,omitempty" json:"username"`
	Password         string           `yaml:"password,omitempty" json:"password"`
	tlscfg.TLSConfig `yaml:",inline" json:""`
	PingSamples      int `yaml:"ping_samples" json:"ping_samples"`
}

type (
	Collector struct {
		module.Base
		Config `yaml:",inline" json:""`

		rdb  redisClient
		dims map[string]string
	}
	redisClient interface {
		Info(ctx context.Context, section ...string) *redis.StringCmd
		Ping(context.Context) *redis.StatusCmd
		Close() error
	}
)

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if c.Address == "" {
		return errors.New("config validation: 'address' not set")
	}

	rdb, addr, err := c.initRedisClient()
	if err != nil {
		return fmt.Errorf("init redis client: %v", err)
	}
	c.rdb = rdb
	c.dims = map[string]string{"service": "redis", "redis_host": addr}

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	return c.Collect(ctx)
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {
	if c.rdb == nil {
		return
	}
	if err := c.rdb.Close(); err != nil {
		c.Warningf("cleanup: error on closing redis client [%s]: %v", c.dims["redis_host"], err)
	}
	c.rdb = nil
}

func (c *Collector) initRedisClient() (*redis.Client, string, error) {
	opts, err := redis.ParseURL(c.Address)
	if err != nil {
		return nil, "", err
	}

	tlsConfig, err := tlscfg.NewTLSConfig(c.TLSConfig)
	if err != nil {
		return nil, "", err
	}

	if opts.TLSConfig != nil && tlsConfig != nil {
		tlsConfig.ServerName = opts.TLSConfig.ServerName
	}
	if opts.Username == "" && c.Username != "" {
		opts.Username = c.Username
	}
	if opts.Password == "" && c.Password != "" {
		opts.Password = c.Password
	}

	opts.PoolSize = 1
	opts.TLSConfig = tlsConfig
	opts.DialTimeout = c.Timeout.Duration()
	opts.ReadTimeout = c.Timeout.Duration()
	opts.WriteTimeout = c.Timeout.Duration()

	return redis.NewClient(opts), opts.Addr, nil
}
