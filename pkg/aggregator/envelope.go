// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

// Measurement is a single emitted data point.
type Measurement struct {
	Name       string            `json:"name"`
	Dimensions map[string]string `json:"dimensions"`
	Value      float64           `json:"value"`
	// Timestamp is milliseconds since the Unix epoch.
	Timestamp int64             `json:"timestamp"`
	ValueMeta map[string]string `json:"value_meta"`
}

// Envelope wraps a measurement with its tenant attribution.
type Envelope struct {
	Measurement Measurement `json:"measurement"`
	TenantID    *string     `json:"tenant_id"`
}
