// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import "time"

// SuppressHostname as a hostname value keeps the hostname dimension out of the measurement.
const SuppressHostname = "SUPPRESS"

// SubmitOption tunes a single submission.
type SubmitOption interface {
	apply(*submitConfig)
}

type optionFunc func(*submitConfig)

func (f optionFunc) apply(cfg *submitConfig) { f(cfg) }

type submitConfig struct {
	dimensions         map[string]string
	instanceDimensions map[string]string

	tenantSet bool
	tenant    string

	hostnameSet bool
	hostname    string

	deviceName string
	valueMeta  map[string]string
	timestamp  time.Time
	sampleRate float64
}

func newSubmitConfig(opts []SubmitOption) submitConfig {
	cfg := submitConfig{sampleRate: 1}
	for _, opt := range opts {
		if opt != nil {
			opt.apply(&cfg)
		}
	}
	return cfg
}

// WithDimensions sets the call-site dimensions.
func WithDimensions(dims map[string]string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.dimensions = dims })
}

// WithInstanceDimensions sets the check instance dimensions. They take precedence over every other layer.
func WithInstanceDimensions(dims map[string]string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.instanceDimensions = dims })
}

// WithDelegatedTenant attributes the measurement to another tenant.
func WithDelegatedTenant(tenant string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) {
		cfg.tenantSet = true
		cfg.tenant = tenant
	})
}

// WithHostname overrides the agent hostname. Use SuppressHostname to drop the dimension.
func WithHostname(hostname string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) {
		cfg.hostnameSet = true
		cfg.hostname = hostname
	})
}

// WithDeviceName sets the "device" dimension, overwriting any call-site value.
func WithDeviceName(device string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.deviceName = device })
}

// WithValueMeta attaches auxiliary data to the next emitted point.
func WithValueMeta(meta map[string]string) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.valueMeta = meta })
}

// WithTimestamp sets the sample time. The zero time means now.
func WithTimestamp(ts time.Time) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.timestamp = ts })
}

// WithSampleRate scales a counter increment by 1/rate. Other kinds ignore it.
func WithSampleRate(rate float64) SubmitOption {
	return optionFunc(func(cfg *submitConfig) { cfg.sampleRate = rate })
}
