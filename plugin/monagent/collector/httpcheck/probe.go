// SPDX-License-Identifier: GPL-3.0-or-later

package httpcheck

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/monagent/monagent/pkg/web"
)

const maxBodySize = 1 << 20

func (c *Collector) probe(ctx context.Context) error {
	req, err := web.NewHTTPRequest(c.RequestConfig)
	if err != nil {
		return fmt.Errorf("create request: %v", err)
	}

	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s is DOWN, error: %v", c.URL, err)
	}
	defer web.CloseBody(resp)

	if len(c.AcceptedStatuses) > 0 && !slices.Contains(c.AcceptedStatuses, resp.StatusCode) {
		return fmt.Errorf("%s is DOWN, error code: %d", c.URL, resp.StatusCode)
	}

	if c.reMatch == nil {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("%s is DOWN, reading body: %v", c.URL, err)
	}
	if !c.reMatch.Match(body) {
		return fmt.Errorf("%s is DOWN, pattern '%s' not found in the response", c.URL, c.ResponseMatch)
	}

	return nil
}
