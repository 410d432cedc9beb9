// SPDX-License-Identifier: GPL-3.0-or-later

package docker

import (
	"context"
	"fmt"
	"os"
	"path"
	"time"

	"github.com/docker/docker/api/types"
	typesContainer "github.com/docker/docker/api/types/container"
	typesImage "github.com/docker/docker/api/types/image"
	typesSystem "github.com/docker/docker/api/types/system"
	docker "github.com/docker/docker/client"

	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("docker", module.Creator{
		Create: func() module.Module { return New() },
		Config: func() any { return &Config{} },
	})
}

func New() *Collector {
	return &Collector{
		Config: Config{
			Address: docker.DefaultDockerHost,
			Timeout: confopt.Duration(time.Second * 2),
		},
		newClient: func(cfg Config) (dockerClient, error) {
			return docker.NewClientWithOpts(docker.WithHost(cfg.Address))
		},
	}
}

type Config struct {
	Address string           `yaml:"address" json:"address"`
	Timeout confopt.Duration `yaml:"timeout,omitempty" json:"timeout"`
	// ContainerSelector holds shell patterns matched against container names.
	// Per-container metrics are emitted only for matching containers. Empty means all.
	ContainerSelector    []string `yaml:"container_selector,omitempty" json:"container_selector"`
	CollectContainerSize bool     `yaml:"collect_container_size" json:"collect_container_size"`
}

type (
	Collector struct {
		module.Base
		Config `yaml:",inline" json:""`

		client    dockerClient
		newClient func(Config) (dockerClient, error)

		verNegotiated bool
	}
	dockerClient interface {
		NegotiateAPIVersion(context.Context)
		Info(context.Context) (typesSystem.Info, error)
		ImageList(context.Context, typesImage.ListOptions) ([]typesImage.Summary, error)
		ContainerList(context.Context, typesContainer.ListOptions) ([]types.Container, error)
		Close() error
	}
)

func (c *Collector) Configuration() any {
	return c.Config
}

func (c *Collector) Init(context.Context) error {
	if addr := os.Getenv("DOCKER_HOST"); addr != "" && c.Address == docker.DefaultDockerHost {
		c.Infof("using docker host from environment: %s ", addr)
		c.Address = addr
	}
	for _, pattern := range c.ContainerSelector {
		if _, err := path.Match(pattern, ""); err != nil {
			return fmt.Errorf("invalid container selector '%s': %v", pattern, err)
		}
	}

	return nil
}

func (c *Collector) Check(ctx context.Context) error {
	return c.Collect(ctx)
}

func (c *Collector) Collect(ctx context.Context) error {
	return c.collect(ctx)
}

func (c *Collector) Cleanup(context.Context) {
	if c.client == nil {
		return
	}
	if err := c.client.Close(); err != nil {
		c.Warningf("error on closing docker client: %v", err)
	}
	c.client = nil
}

func (c *Collector) containerSelected(name string) bool {
	if len(c.ContainerSelector) == 0 {
		return true
	}
	for _, pattern := range c.ContainerSelector {
		if ok, _ := path.Match(pattern, name); ok {
			return true
		}
	}
	return false
}
