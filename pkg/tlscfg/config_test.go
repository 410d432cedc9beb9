// SPDX-License-Identifier: GPL-3.0-or-later

package tlscfg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTLSConfig(t *testing.T) {
	tests := map[string]struct {
		cfg      TLSConfig
		wantNil  bool
		wantFail bool
	}{
		"not configured": {
			wantNil: true,
		},
		"skip verify": {
			cfg: TLSConfig{InsecureSkipVerify: true, TLSServerName: "db.local"},
		},
		"missing ca file": {
			cfg:      TLSConfig{TLSCA: "testdata/missing.pem"},
			wantFail: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			conf, err := NewTLSConfig(test.cfg)

			if test.wantFail {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if test.wantNil {
				assert.Nil(t, conf)
				return
			}
			require.NotNil(t, conf)
			assert.Equal(t, test.cfg.InsecureSkipVerify, conf.InsecureSkipVerify)
			assert.Equal(t, test.cfg.TLSServerName, conf.ServerName)
		})
	}
}
