// SPDX-License-Identifier: GPL-3.0-or-later

package cli

import (
	"github.com/jessevdk/go-flags"
)

// Option defines command line options.
type Option struct {
	Config  string   `short:"c" long:"config" description:"agent configuration file" default:"/etc/monagent/agent.yaml"`
	ConfDir string   `short:"C" long:"conf-dir" description:"check configurations directory" default:"/etc/monagent/conf.d"`
	Modules []string `short:"m" long:"modules" description:"check name to run, can be repeated (default: all configured)"`
	Debug   bool     `short:"d" long:"debug" description:"debug mode"`
	Version bool     `short:"v" long:"version" description:"display the version and exit"`
	DryRun  bool     `long:"dry-run" description:"print measurements to stdout instead of posting them"`
	Once    bool     `long:"once" description:"run a single collection cycle, print the measurements and exit"`
}

// Parse returns parsed command-line flags in Option struct
func Parse(args []string) (*Option, error) {
	opt := &Option{}
	parser := flags.NewParser(opt, flags.Default)
	parser.Name = "monagent"
	parser.Usage = "[OPTIONS]"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	return opt, nil
}

func IsHelp(err error) bool {
	return flags.WroteHelp(err)
}
