// SPDX-License-Identifier: GPL-3.0-or-later

package confgroup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

func TestConfig_Name(t *testing.T) {
	tests := map[string]struct {
		cfg      Config
		expected any
	}{
		"string":       {cfg: Config{"name": "name"}, expected: "name"},
		"empty string": {cfg: Config{"name": ""}, expected: ""},
		"not string":   {cfg: Config{"name": 0}, expected: ""},
		"not set":      {cfg: Config{}, expected: ""},
		"nil cfg":      {expected: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.cfg.Name())
		})
	}
}

func TestConfig_FullName(t *testing.T) {
	tests := map[string]struct {
		cfg      Config
		expected any
	}{
		"name == module": {cfg: Config{"name": "name", "module": "name"}, expected: "name"},
		"name != module": {cfg: Config{"name": "name", "module": "module"}, expected: "module_name"},
		"nil cfg":        {expected: ""},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.cfg.FullName())
		})
	}
}

func TestConfig_AutoDetectionRetry(t *testing.T) {
	tests := map[string]struct {
		cfg      Config
		expected any
	}{
		"int":     {cfg: Config{"autodetection_retry": 1}, expected: 1},
		"uint64":  {cfg: Config{"autodetection_retry": uint64(3)}, expected: 3},
		"not int": {cfg: Config{"autodetection_retry": "1"}, expected: 0},
		"not set": {cfg: Config{}, expected: 0},
		"nil cfg": {expected: 0},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.cfg.AutoDetectionRetry())
		})
	}
}

func TestConfig_Dimensions(t *testing.T) {
	tests := map[string]struct {
		cfg      Config
		expected map[string]string
	}{
		"string map": {cfg: Config{"dimensions": map[string]string{"a": "1"}}, expected: map[string]string{"a": "1"}},
		"any map":    {cfg: Config{"dimensions": map[string]any{"a": 1}}, expected: map[string]string{"a": "1"}},
		"not a map":  {cfg: Config{"dimensions": "a=1"}, expected: nil},
		"not set":    {cfg: Config{}, expected: nil},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.expected, test.cfg.Dimensions())
		})
	}
}

func TestConfig_Hash(t *testing.T) {
	one := Config{"name": "name", "url": "http://127.0.0.1"}
	two := Config{"url": "http://127.0.0.1", "name": "name"}
	three := Config{"name": "name", "url": "http://127.0.0.2"}

	assert.Equal(t, one.Hash(), two.Hash())
	assert.NotEqual(t, one.Hash(), three.Hash())
}

func TestParse(t *testing.T) {
	reg := module.Registry{
		"http_check": module.Creator{Defaults: module.Defaults{AutoDetectionRetry: 60}},
	}

	tests := map[string]struct {
		name     string
		data     string
		wantNil  bool
		wantFail bool
		check    func(t *testing.T, g *Group)
	}{
		"empty file": {
			name:    "http_check",
			data:    "\n",
			wantNil: true,
		},
		"invalid yaml": {
			name:     "http_check",
			data:     "instances: [",
			wantFail: true,
		},
		"default names": {
			name: "http_check",
			data: "instances:\n  - url: a\n  - url: b\n",
			check: func(t *testing.T, g *Group) {
				require.Len(t, g.Configs, 2)
				assert.Equal(t, "http_check", g.Configs[0].Name())
				assert.Equal(t, "http_check_1", g.Configs[1].Name())
				assert.Equal(t, "http_check", g.Configs[1].Module())
				assert.Equal(t, 60, g.Configs[1].AutoDetectionRetry())
			},
		},
		"duplicate names": {
			name:     "http_check",
			data:     "instances:\n  - name: a\n  - name: a\n",
			wantFail: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			g, err := Parse(reg, test.name, "test", []byte(test.data))

			if test.wantFail {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if test.wantNil {
				assert.Nil(t, g)
				return
			}
			test.check(t, g)
		})
	}
}

func TestReadDir(t *testing.T) {
	reg := module.Registry{
		"http_check": module.Creator{},
		"cpu":        module.Creator{},
	}

	groups, err := ReadDir(reg, "testdata")
	require.NoError(t, err)

	require.Len(t, groups, 1, "empty and unknown check files are skipped")
	g := groups[0]
	assert.Equal(t, "testdata/http_check.yaml", g.Source)
	require.Len(t, g.Configs, 2)

	frontend, metrics := g.Configs[0], g.Configs[1]

	assert.Equal(t, "frontend", frontend.Name())
	assert.Equal(t, map[string]string{"service": "web"}, frontend.Dimensions())
	assert.EqualValues(t, 5, toFloat(frontend.Get("timeout")))

	assert.Equal(t, "http_check_1", metrics.Name())
	assert.Equal(t, map[string]string{"service": "metrics", "tier": "1"}, metrics.Dimensions())
	assert.EqualValues(t, 2, toFloat(metrics.Get("timeout")))
}
