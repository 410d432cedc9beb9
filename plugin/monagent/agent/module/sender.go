// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"slices"
	"sync/atomic"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
)

// Submitter accepts samples. *aggregator.Aggregator implements it.
type Submitter interface {
	SubmitMetric(name string, value float64, kind aggregator.Kind, opts ...aggregator.SubmitOption) error
}

// Sender is the check-facing metrics API bound to one check instance.
// Instance dimensions take precedence over call-site dimensions.
// Rejected submissions are logged, they never abort the check. Safe for concurrent use.
type Sender struct {
	submitter    Submitter
	instanceDims map[string]string
	log          *logger.Logger
	rejected     atomic.Int64
}

func NewSender(s Submitter, instanceDims map[string]string, log *logger.Logger) *Sender {
	return &Sender{submitter: s, instanceDims: instanceDims, log: log}
}

func (s *Sender) Gauge(name string, value float64, opts ...aggregator.SubmitOption) {
	s.submit(name, value, aggregator.KindGauge, opts)
}

func (s *Sender) Increment(name string, value float64, opts ...aggregator.SubmitOption) {
	s.submit(name, value, aggregator.KindCounter, opts)
}

func (s *Sender) Decrement(name string, value float64, opts ...aggregator.SubmitOption) {
	s.submit(name, -value, aggregator.KindCounter, opts)
}

func (s *Sender) Rate(name string, value float64, opts ...aggregator.SubmitOption) {
	s.submit(name, value, aggregator.KindRate, opts)
}

// Rejected returns the number of submissions refused since the last call and resets it.
func (s *Sender) Rejected() int {
	if s == nil {
		return 0
	}
	return int(s.rejected.Swap(0))
}

func (s *Sender) submit(name string, value float64, kind aggregator.Kind, opts []aggregator.SubmitOption) {
	if s == nil || s.submitter == nil {
		return
	}
	if len(s.instanceDims) > 0 {
		opts = slices.Concat(opts, []aggregator.SubmitOption{aggregator.WithInstanceDimensions(s.instanceDims)})
	}
	if err := s.submitter.SubmitMetric(name, value, kind, opts...); err != nil {
		s.rejected.Add(1)
		s.log.Warningf("metric '%s' rejected: %v", name, err)
	}
}
