// SPDX-License-Identifier: GPL-3.0-or-later

package web

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// HTTPConfig is a struct with embedded RequestConfig and ClientConfig.
// This structure intended to be part of the check configuration.
type HTTPConfig struct {
	RequestConfig `yaml:",inline" json:""`
	ClientConfig  `yaml:",inline" json:""`
}

// StatusError is returned by DoJSON when the server responds with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("'%s' returned HTTP status code: %d", e.URL, e.StatusCode)
}

// DoJSON performs the request and decodes a 2xx JSON response body into dst.
func DoJSON(client *http.Client, req *http.Request, dst any) error {
	return Do(client, req, func(body io.Reader) error {
		if err := json.NewDecoder(body).Decode(dst); err != nil {
			return fmt.Errorf("error decoding JSON response from '%s': %v", req.URL, err)
		}
		return nil
	})
}

// Do performs the request and hands a 2xx response body to parse.
func Do(client *http.Client, req *http.Request, parse func(body io.Reader) error) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("error on HTTP request '%s': %v", req.URL, err)
	}
	defer CloseBody(resp)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{URL: req.URL.String(), StatusCode: resp.StatusCode}
	}

	return parse(resp.Body)
}

// CloseBody drains and closes the response body so the connection can be reused.
func CloseBody(resp *http.Response) {
	if resp != nil && resp.Body != nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}
}
