// SPDX-License-Identifier: GPL-3.0-or-later

package servicecheck

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/monagent/monagent/pkg/aggregator"
)

// Status is the outcome of a service probe, emitted as the metric value.
type Status int

const (
	StatusUp   Status = 0
	StatusDown Status = 1
)

// Result of one probe.
type Result struct {
	Status  Status
	Message string
	Elapsed time.Duration
}

// Probe is a blocking check of one service instance.
type Probe func(ctx context.Context) error

// Runner executes blocking probes with a timeout and a bounded number of concurrent probes.
// A probe that outlives its timeout keeps its slot until it returns, and further probes of
// the same key are reported down without being started.
type Runner struct {
	Timeout time.Duration

	sem      *semaphore.Weighted
	mu       sync.Mutex
	inFlight map[string]bool
}

func NewRunner(timeout time.Duration, maxInFlight int) *Runner {
	if maxInFlight <= 0 {
		maxInFlight = 1
	}
	return &Runner{
		Timeout:  timeout,
		sem:      semaphore.NewWeighted(int64(maxInFlight)),
		inFlight: make(map[string]bool),
	}
}

// Run executes probe for key and waits at most Timeout for it.
func (r *Runner) Run(ctx context.Context, key string, probe Probe) Result {
	if !r.acquireKey(key) {
		return Result{Status: StatusDown, Message: fmt.Sprintf("%s: previous check is still running", key)}
	}

	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	if err := r.sem.Acquire(ctx, 1); err != nil {
		r.releaseKey(key)
		return Result{Status: StatusDown, Message: fmt.Sprintf("%s: no free worker: %v", key, err)}
	}

	start := time.Now()
	done := make(chan error, 1)

	go func() {
		defer r.sem.Release(1)
		defer r.releaseKey(key)
		done <- probe(ctx)
	}()

	select {
	case err := <-done:
		res := Result{Status: StatusUp, Elapsed: time.Since(start)}
		if err != nil {
			res.Status = StatusDown
			res.Message = err.Error()
		}
		return res
	case <-ctx.Done():
		return Result{Status: StatusDown, Message: fmt.Sprintf("%s: check timed out after %s", key, r.Timeout), Elapsed: time.Since(start)}
	}
}

func (r *Runner) acquireKey(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.inFlight[key] {
		return false
	}
	r.inFlight[key] = true
	return true
}

func (r *Runner) releaseKey(key string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, key)
}

// ValueMeta wraps a diagnostic message so it fits the value_meta size cap. Empty msg yields nil.
func ValueMeta(msg string) map[string]string {
	if msg == "" {
		return nil
	}
	for {
		bs, _ := json.Marshal(map[string]string{"error": msg})
		excess := len(bs) - aggregator.MaxValueMetaSize
		if excess <= 0 {
			return map[string]string{"error": msg}
		}
		// escaped characters take up to 6 bytes
		msg = truncate(msg, len(msg)-excess/6-len(ellipsis)-1) + ellipsis
	}
}

const ellipsis = "..."

func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	// do not split a multi-byte rune
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n]
}
