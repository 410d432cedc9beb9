// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

type checkFile struct {
	InitConfig map[string]any `yaml:"init_config"`
	Instances  []Config       `yaml:"instances"`
}

// ReadDir parses every conf.d/<check>.yaml for a check known to the registry.
// Files of unknown checks are skipped.
func ReadDir(reg module.Registry, dir string) ([]*Group, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	more, _ := filepath.Glob(filepath.Join(dir, "*.yml"))
	paths = append(paths, more...)
	sort.Strings(paths)

	var groups []*Group
	for _, path := range paths {
		name := fileName(path)
		if _, ok := reg.Lookup(name); !ok {
			continue
		}
		g, err := ParseFile(reg, path)
		if err != nil {
			return nil, err
		}
		if g != nil {
			groups = append(groups, g)
		}
	}
	return groups, nil
}

// ParseFile reads a check configuration file. The check name is the file name.
func ParseFile(reg module.Registry, path string) (*Group, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(reg, fileName(path), path, bs)
}

// Parse builds a Group from a check file content. An empty file yields nil.
func Parse(reg module.Registry, name, source string, bs []byte) (*Group, error) {
	if len(strings.TrimSpace(string(bs))) == 0 {
		return nil, nil
	}

	var file checkFile
	if err := yaml.Unmarshal(bs, &file); err != nil {
		return nil, fmt.Errorf("parse '%s': %v", source, err)
	}

	creator, _ := reg.Lookup(name)

	seen := make(map[string]int)
	configs := make([]Config, 0, len(file.Instances))

	for i, cfg := range file.Instances {
		if cfg == nil {
			cfg = Config{}
		}
		cfg.ApplyDefaults(file.InitConfig)
		cfg.SetModule(name)
		if _, ok := cfg[keyAutoDetectionRetry]; !ok && creator.AutoDetectionRetry > 0 {
			cfg.Set(keyAutoDetectionRetry, creator.AutoDetectionRetry)
		}
		if cfg.Name() == "" {
			if i == 0 {
				cfg.SetName(name)
			} else {
				cfg.SetName(fmt.Sprintf("%s_%d", name, i))
			}
		}
		if seen[cfg.Name()]++; seen[cfg.Name()] > 1 {
			return nil, fmt.Errorf("parse '%s': duplicate instance name '%s'", source, cfg.Name())
		}
		configs = append(configs, cfg)
	}

	return &Group{Configs: configs, Source: source}, nil
}

func fileName(path string) string {
	_, file := filepath.Split(path)
	ext := filepath.Ext(path)
	return file[:len(file)-len(ext)]
}
