// SPDX-License-Identifier: GPL-3.0-or-later

package docker

import (
	"context"
	"strings"

	"github.com/docker/docker/api/types"
	typesContainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	typesImage "github.com/docker/docker/api/types/image"

	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/servicecheck"
)

var containerHealthStatuses = []string{
	types.Healthy,
	types.Unhealthy,
	types.Starting,
	types.NoHealthcheck,
}

func (c *Collector) collect(ctx context.Context) error {
	if c.client == nil {
		client, err := c.newClient(c.Config)
		if err != nil {
			return err
		}
		c.client = client
	}

	if !c.verNegotiated {
		c.verNegotiated = true
		c.negotiateAPIVersion(ctx)
	}

	if err := c.collectInfo(ctx); err != nil {
		return err
	}
	if err := c.collectImages(ctx); err != nil {
		return err
	}
	return c.collectContainers(ctx)
}

func (c *Collector) collectInfo(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	info, err := c.client.Info(ctx)
	if err != nil {
		return err
	}

	for state, n := range map[string]int{
		"running": info.ContainersRunning,
		"paused":  info.ContainersPaused,
		"stopped": info.ContainersStopped,
	} {
		c.Gauge("docker.containers", float64(n), aggregator.WithDimensions(map[string]string{
			"service": "docker",
			"state":   state,
		}))
	}

	return nil
}

func (c *Collector) collectImages(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	images, err := c.client.ImageList(ctx, typesImage.ListOptions{})
	if err != nil {
		return err
	}

	var size, dangling, active float64
	for _, v := range images {
		size += float64(v.Size)
		if v.Containers == 0 {
			dangling++
		} else {
			active++
		}
	}

	opt := aggregator.WithDimensions(map[string]string{"service": "docker"})
	c.Gauge("docker.images.size_bytes", size, opt)
	c.Gauge("docker.images.dangling", dangling, opt)
	c.Gauge("docker.images.active", active, opt)

	return nil
}

func (c *Collector) collectContainers(ctx context.Context) error {
	containerSet := make(map[string][]types.Container)

	for _, status := range containerHealthStatuses {
		if err := func() error {
			ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
			defer cancel()

			v, err := c.client.ContainerList(ctx, typesContainer.ListOptions{
				All:     true,
				Filters: filters.NewArgs(filters.KeyValuePair{Key: "health", Value: status}),
				Size:    c.CollectContainerSize,
			})
			if err != nil {
				return err
			}
			containerSet[status] = v
			return nil
		}(); err != nil {
			return err
		}
	}

	for _, status := range containerHealthStatuses {
		c.Gauge("docker.containers.health", float64(len(containerSet[status])),
			aggregator.WithDimensions(map[string]string{"service": "docker", "health_status": status}))

		for _, cntr := range containerSet[status] {
			if len(cntr.Names) == 0 {
				continue
			}
			name := strings.TrimPrefix(cntr.Names[0], "/")
			if !c.containerSelected(name) {
				continue
			}
			c.collectContainer(name, status, cntr)
		}
	}

	return nil
}

func (c *Collector) collectContainer(name, health string, cntr types.Container) {
	dims := map[string]string{
		"service":        "docker",
		"container_name": name,
		"image":          cntr.Image,
	}
	opt := aggregator.WithDimensions(dims)

	var msg string
	status := servicecheck.StatusUp
	switch {
	case cntr.State != "running":
		status, msg = servicecheck.StatusDown, "container state is "+cntr.State
	case health == types.Unhealthy:
		status, msg = servicecheck.StatusDown, "container is unhealthy"
	}
	c.Gauge("container.status", float64(status), opt, aggregator.WithValueMeta(servicecheck.ValueMeta(msg)))

	if c.CollectContainerSize {
		c.Gauge("container.size_rw_bytes", float64(cntr.SizeRw), opt)
		c.Gauge("container.size_root_fs_bytes", float64(cntr.SizeRootFs), opt)
	}
}

func (c *Collector) negotiateAPIVersion(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout.Duration())
	defer cancel()

	c.client.NegotiateAPIVersion(ctx)
}
