// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/cespare/xxhash/v2"
)

const (
	keyName               = "name"
	keyModule             = "module"
	keyDimensions         = "dimensions"
	keyAutoDetectionRetry = "autodetection_retry"
	keyTimeout            = "collect_timeout"
)

// Group is a set of check instances read from one source.
type Group struct {
	Configs []Config
	Source  string
}

// Config is a single check instance configuration.
type Config map[string]any

func (c Config) Name() string   { v, _ := c.Get(keyName).(string); return v }
func (c Config) Module() string { v, _ := c.Get(keyModule).(string); return v }

func (c Config) FullName() string {
	if c.Name() == c.Module() {
		return c.Name()
	}
	return c.Module() + "_" + c.Name()
}

func (c Config) AutoDetectionRetry() int { return int(toFloat(c.Get(keyAutoDetectionRetry))) }

// CollectTimeout returns the per-cycle timeout in seconds, or zero.
func (c Config) CollectTimeout() float64 { return toFloat(c.Get(keyTimeout)) }

// Dimensions returns the instance dimensions. Non-string values are formatted.
func (c Config) Dimensions() map[string]string {
	var dims map[string]string

	switch v := c.Get(keyDimensions).(type) {
	case map[string]string:
		dims = maps.Clone(v)
	case map[string]any:
		dims = make(map[string]string, len(v))
		for k, val := range v {
			dims[k] = fmt.Sprint(val)
		}
	case map[any]any:
		dims = make(map[string]string, len(v))
		for k, val := range v {
			dims[fmt.Sprint(k)] = fmt.Sprint(val)
		}
	}
	return dims
}

func (c Config) Get(key string) any { return c[key] }

func (c Config) Set(key string, value any) Config { c[key] = value; return c }

func (c Config) SetName(v string) Config   { return c.Set(keyName, v) }
func (c Config) SetModule(v string) Config { return c.Set(keyModule, v) }

// Hash identifies the configuration content, used to detect changes on reload.
func (c Config) Hash() uint64 {
	bs, err := json.Marshal(c)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(bs)
}

// ApplyDefaults sets keys that are missing in the instance.
func (c Config) ApplyDefaults(defaults map[string]any) {
	for k, v := range defaults {
		if _, ok := c[k]; !ok {
			c[k] = v
		}
	}
}

// toFloat converts the numeric types YAML and JSON decoders produce.
func toFloat(v any) float64 {
	switch v := v.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	case float64:
		return v
	default:
		return 0
	}
}
