// SPDX-License-Identifier: GPL-3.0-or-later

package emitter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/monagent/monagent/logger"
	"github.com/monagent/monagent/pkg/aggregator"
	"github.com/monagent/monagent/pkg/confopt"
	"github.com/monagent/monagent/pkg/web"
)

const (
	defaultMaxBatchSize  = 1000
	defaultMaxRetries    = 3
	defaultRetryInterval = time.Second
)

// HTTPConfig is the "api" section of agent.yaml.
type HTTPConfig struct {
	web.HTTPConfig `yaml:",inline" json:""`
	MaxBatchSize   int              `yaml:"max_batch_size,omitempty" json:"max_batch_size"`
	MaxRetries     int              `yaml:"max_retries,omitempty" json:"max_retries"`
	RetryInterval  confopt.Duration `yaml:"retry_interval,omitempty" json:"retry_interval"`
}

// HTTPStats counts post outcomes.
type HTTPStats struct {
	Posted  int64
	Failed  int64
	Retried int64
}

// HTTP posts batches as {"series": [...]} JSON documents.
type HTTP struct {
	*logger.Logger

	cfg        HTTPConfig
	httpClient *http.Client

	posted  atomic.Int64
	failed  atomic.Int64
	retried atomic.Int64
}

func NewHTTP(cfg HTTPConfig) (*HTTP, error) {
	if cfg.URL == "" {
		return nil, errors.New("'url' not set")
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = defaultMaxBatchSize
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = confopt.Duration(defaultRetryInterval)
	}
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}

	client, err := web.NewHTTPClient(cfg.ClientConfig)
	if err != nil {
		return nil, fmt.Errorf("create http client: %v", err)
	}

	return &HTTP{
		Logger:     logger.New().With(slog.String("component", "emitter")),
		cfg:        cfg,
		httpClient: client,
	}, nil
}

// Emit posts the batch in chunks of max_batch_size. It stops at the first chunk that
// could not be delivered after retries.
func (e *HTTP) Emit(ctx context.Context, batch []aggregator.Envelope) error {
	for len(batch) > 0 {
		n := min(len(batch), e.cfg.MaxBatchSize)
		chunk := batch[:n]
		batch = batch[n:]

		if err := e.postWithRetry(ctx, chunk); err != nil {
			e.failed.Add(1)
			return err
		}
		e.posted.Add(1)
	}
	return nil
}

func (e *HTTP) Stats() HTTPStats {
	return HTTPStats{
		Posted:  e.posted.Load(),
		Failed:  e.failed.Load(),
		Retried: e.retried.Load(),
	}
}

func (e *HTTP) postWithRetry(ctx context.Context, chunk []aggregator.Envelope) error {
	body, err := json.Marshal(Payload{Series: chunk})
	if err != nil {
		return backoff.Permanent(err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = e.cfg.RetryInterval.Duration()
	bo.MaxElapsedTime = 0

	var attempt int
	op := func() error {
		if attempt++; attempt > 1 {
			e.retried.Add(1)
		}
		return e.post(ctx, body)
	}
	notify := func(err error, d time.Duration) {
		e.Warningf("post of %d measurements failed, retrying in %s: %v", len(chunk), d.Round(time.Millisecond), err)
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, uint64(e.cfg.MaxRetries)), ctx)

	return backoff.RetryNotify(op, policy, notify)
}

func (e *HTTP) post(ctx context.Context, body []byte) error {
	req, err := web.NewHTTPRequest(e.cfg.RequestConfig)
	if err != nil {
		return backoff.Permanent(err)
	}
	req = req.WithContext(ctx)
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-Id", uuid.NewString())

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer web.CloseBody(resp)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests:
		return backoff.Permanent(&web.StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode})
	default:
		return &web.StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode}
	}
}
