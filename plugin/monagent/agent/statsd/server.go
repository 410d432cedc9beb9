// SPDX-License-Identifier: GPL-3.0-or-later

package statsd

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"sync/atomic"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/plugin/monagent/agent/module"
)

const maxPacketSize = 65535

// Server reads statsd packets over UDP and submits them to the aggregator.
// It runs concurrently with the collection cycle flushing the same aggregator.
type Server struct {
	*logger.Logger

	Addr       string
	Submitter  module.Submitter
	Dimensions map[string]string

	conn     net.PacketConn
	ready    chan struct{}
	received atomic.Int64
	invalid  atomic.Int64
}

func NewServer(addr string, s module.Submitter) *Server {
	return &Server{
		Logger:    logger.New().With(slog.String("component", "statsd")),
		Addr:      addr,
		Submitter: s,
		ready:     make(chan struct{}),
	}
}

// Run listens until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	conn, err := net.ListenPacket("udp", s.Addr)
	if err != nil {
		return err
	}
	s.conn = conn
	close(s.ready)

	s.Infof("listening on %s", conn.LocalAddr())

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, maxPacketSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.Warningf("read: %v", err)
			continue
		}
		s.handlePacket(buf[:n])
	}
}

// LocalAddr waits for the listener and returns its address.
func (s *Server) LocalAddr(ctx context.Context) (net.Addr, error) {
	select {
	case <-s.ready:
		return s.conn.LocalAddr(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Received returns the number of accepted samples.
func (s *Server) Received() int64 { return s.received.Load() }

// Invalid returns the number of rejected lines.
func (s *Server) Invalid() int64 { return s.invalid.Load() }

func (s *Server) handlePacket(pkt []byte) {
	for _, line := range bytes.Split(pkt, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		s.handleLine(string(line))
	}
}

func (s *Server) handleLine(line string) {
	sample, err := ParseLine(line)
	if err != nil {
		s.invalid.Add(1)
		s.Debug(err)
		return
	}

	err = s.Submitter.SubmitMetric(sample.Name, sample.Value, sample.Kind,
		aggregator.WithDimensions(aggregator.MergeDimensions(s.Dimensions, sample.Dimensions)),
		aggregator.WithSampleRate(sample.SampleRate),
	)
	if err != nil {
		s.invalid.Add(1)
		s.Debugf("'%s': %v", line, err)
		return
	}
	s.received.Add(1)
}
