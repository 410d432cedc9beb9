// SPDX-License-Identifier: GPL-3.0-or-later

package aggregator

import (
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// MergeDimensions combines dimension layers into a new map.
// Later layers overwrite earlier ones key for key. Nil layers are skipped.
func MergeDimensions(layers ...map[string]string) map[string]string {
	var n int
	for _, l := range layers {
		n += len(l)
	}
	merged := make(map[string]string, n)
	for _, l := range layers {
		for k, v := range l {
			merged[k] = v
		}
	}
	return merged
}

// identity is the context key of a time series.
type identity struct {
	name     string
	dims     map[string]string
	tenant   string
	hostname string
	device   string
}

// key packs the identity into a canonical string: dimension order does not matter.
func (id identity) key() string {
	keys := make([]string, 0, len(id.dims))
	for k := range id.dims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(id.name)
	b.WriteByte('\xfe')
	b.WriteString(id.tenant)
	b.WriteByte('\xfe')
	b.WriteString(id.hostname)
	b.WriteByte('\xfe')
	b.WriteString(id.device)
	b.WriteByte('\xfe')
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('\xff')
		b.WriteString(id.dims[k])
		b.WriteByte('\xff')
	}
	return b.String()
}

func hashKey(key string) uint64 {
	return xxhash.Sum64String(key)
}
