// SPDX-License-Identifier: GPL-3.0-or-later

package statsd

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/monagent/monagent/pkg/aggregator"
)

// Sample is one decoded statsd line.
type Sample struct {
	Name       string
	Value      float64
	Kind       aggregator.Kind
	SampleRate float64
	Dimensions map[string]string
}

var errMalformed = errors.New("malformed statsd line")

// ParseLine decodes "name:value|type[|@rate][|#k:v,...]". Types are g (gauge),
// c (counter) and r (rate).
func ParseLine(line string) (Sample, error) {
	name, rest, ok := strings.Cut(strings.TrimSpace(line), ":")
	if !ok || name == "" {
		return Sample{}, fmt.Errorf("%w: '%s'", errMalformed, line)
	}

	parts := strings.Split(rest, "|")
	if len(parts) < 2 {
		return Sample{}, fmt.Errorf("%w: '%s': no type", errMalformed, line)
	}

	value, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return Sample{}, fmt.Errorf("%w: '%s': bad value: %v", errMalformed, line, err)
	}

	s := Sample{Name: name, Value: value, SampleRate: 1}

	switch parts[1] {
	case "g":
		s.Kind = aggregator.KindGauge
	case "c":
		s.Kind = aggregator.KindCounter
	case "r":
		s.Kind = aggregator.KindRate
	default:
		return Sample{}, fmt.Errorf("%w: '%s': unknown type '%s'", errMalformed, line, parts[1])
	}

	for _, p := range parts[2:] {
		switch {
		case strings.HasPrefix(p, "@"):
			rate, err := strconv.ParseFloat(p[1:], 64)
			if err != nil || rate <= 0 || rate > 1 {
				return Sample{}, fmt.Errorf("%w: '%s': bad sample rate '%s'", errMalformed, line, p)
			}
			s.SampleRate = rate
		case strings.HasPrefix(p, "#"):
			s.Dimensions = parseDimensions(p[1:])
		default:
			return Sample{}, fmt.Errorf("%w: '%s': unknown section '%s'", errMalformed, line, p)
		}
	}

	return s, nil
}

func parseDimensions(s string) map[string]string {
	dims := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, ":")
		dims[k] = v
	}
	return dims
}
