// SPDX-License-Identifier: GPL-3.0-or-later

package system

import (
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func init() {
	module.Register("cpu", module.Creator{
		Create: func() module.Module { return NewCPU() },
		Config: func() any { return &Config{} },
	})
	module.Register("load", module.Creator{
		Create: func() module.Module { return NewLoad() },
		Config: func() any { return &Config{} },
	})
	module.Register("memory", module.Creator{
		Create: func() module.Module { return NewMemory() },
		Config: func() any { return &Config{} },
	})
	module.Register("disk", module.Creator{
		Create: func() module.Module { return NewDisk() },
		Config: func() any { return &DiskConfig{} },
	})
	module.Register("network", module.Creator{
		Create: func() module.Module { return NewNetwork() },
		Config: func() any { return &NetworkConfig{} },
	})
}
