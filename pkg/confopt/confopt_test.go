// SPDX-License-Identifier: GPL-3.0-or-later

package confopt

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuration_UnmarshalYAML(t *testing.T) {
	tests := map[string]struct {
		input string
		want  time.Duration
	}{
		"duration":     {input: "value: 300ms", want: time.Millisecond * 300},
		"int":          {input: "value: 30", want: time.Second * 30},
		"float":        {input: "value: 1.5", want: time.Millisecond * 1500},
		"string int":   {input: "value: '2'", want: time.Second * 2},
		"hour literal": {input: "value: 1h", want: time.Hour},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var s struct {
				Value Duration `yaml:"value"`
			}
			require.NoError(t, yaml.Unmarshal([]byte(test.input), &s))
			assert.Equal(t, test.want, s.Value.Duration())
		})
	}
}

func TestDuration_UnmarshalYAML_Invalid(t *testing.T) {
	var s struct {
		Value Duration `yaml:"value"`
	}
	assert.Error(t, yaml.Unmarshal([]byte("value: soon"), &s))
}

func TestDuration_JSON(t *testing.T) {
	d := Duration(time.Second + time.Millisecond*500)

	bs, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, "1.5", strings.TrimSpace(string(bs)))

	var got Duration
	require.NoError(t, json.Unmarshal(bs, &got))
	assert.Equal(t, d, got)

	require.NoError(t, json.Unmarshal([]byte(`"10s"`), &got))
	assert.Equal(t, Duration(time.Second*10), got)
}

func TestFlexBool_UnmarshalYAML(t *testing.T) {
	tests := map[string]struct {
		input     string
		want      FlexBool
		wantError bool
	}{
		"native_true":    {input: "value: true", want: true},
		"native_false":   {input: "value: false", want: false},
		"yes":            {input: "value: yes", want: true},
		"no_upper":       {input: "value: NO", want: false},
		"on":             {input: "value: on", want: true},
		"off":            {input: "value: Off", want: false},
		"number_1":       {input: "value: 1", want: true},
		"number_0":       {input: "value: 0", want: false},
		"quoted_true":    {input: "value: 'true'", want: true},
		"whitespace_yes": {input: "value: ' yes '", want: true},
		"invalid":        {input: "value: maybe", wantError: true},
		"invalid_number": {input: "value: 2", wantError: true},
		"empty":          {input: "value: ''", wantError: true},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var s struct {
				Value FlexBool `yaml:"value"`
			}

			err := yaml.Unmarshal([]byte(test.input), &s)

			if test.wantError {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, test.want, s.Value)
			}
		})
	}
}
