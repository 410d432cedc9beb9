// SPDX-License-Identifier: GPL-3.0-or-later

// Package collector links every check into the agent binary.
package collector

import (
	_ "github.com/monagent/monagent/plugin/monagent/collector/ceph"
	_ "github.com/monagent/monagent/plugin/monagent/collector/dnsquery"
	_ "github.com/monagent/monagent/plugin/monagent/collector/docker"
	_ "github.com/monagent/monagent/plugin/monagent/collector/httpcheck"
	_ "github.com/monagent/monagent/plugin/monagent/collector/mysql"
	_ "github.com/monagent/monagent/plugin/monagent/collector/ping"
	_ "github.com/monagent/monagent/plugin/monagent/collector/postgres"
	_ "github.com/monagent/monagent/plugin/monagent/collector/rabbitmq"
	_ "github.com/monagent/monagent/plugin/monagent/collector/redis"
	_ "github.com/monagent/monagent/plugin/monagent/collector/system"
	_ "github.com/monagent/monagent/plugin/monagent/collector/tcpcheck"
)
