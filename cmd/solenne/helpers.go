// Copyright (C) 2026 Solenne AI (dev@solenne.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/solenne-ai/solenne/cmd/solenne/config"
)

const (
	DefaultServicePort = 8600
	DefaultServiceHost = "localhost"
)

// getServiceBaseURL returns the standard address for the life service.
func getServiceBaseURL() string {
	// 1. Priority: Environment Variable (Used by Tests & overrides)
	if url := os.Getenv("SOLENNE_SERVICE_URL"); url != "" {
		return url
	}
	// 2. Explicit --endpoint flag
	if serviceEndpoint != "" {
		return serviceEndpoint
	}
	// 3. Config file
	if ep := config.Global.Service.Endpoint; ep != "" {
		return ep
	}
	// 4. Default: Standard Host/Port
	return fmt.Sprintf("http://%s:%d", DefaultServiceHost, DefaultServicePort)
}

// httpClient returns a client with the configured request timeout.
func httpClient() *http.Client {
	timeout := time.Duration(config.Global.Service.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}

// statusError carries a non-2xx service response.
type statusError struct {
	status int
	msg    string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("service returned %d: %s", e.status, e.msg)
}

// isNotFound reports whether err is a 404 from the service, which for
// the pending-suggestion and callback-candidate endpoints just means
// nothing is there.
func isNotFound(err error) bool {
	var se *statusError
	return errors.As(err, &se) && se.status == http.StatusNotFound
}

// getJSON fetches path from the life service and decodes into out.
func getJSON(path string, out interface{}) error {
	url := getServiceBaseURL() + path
	resp, err := httpClient().Get(url)
	if err != nil {
		return fmt.Errorf("life service unreachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// postJSON sends payload to path and decodes the response into out.
// A nil payload sends an empty body.
func postJSON(path string, payload, out interface{}) error {
	var body io.Reader
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonBody)
	}

	url := getServiceBaseURL() + path
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("life service unreachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

// deleteJSON issues a DELETE to path and decodes the response into out.
func deleteJSON(path string, out interface{}) error {
	url := getServiceBaseURL() + path
	req, err := http.NewRequest(http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := httpClient().Do(req)
	if err != nil {
		return fmt.Errorf("life service unreachable at %s: %w", url, err)
	}
	defer resp.Body.Close()

	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out interface{}) error {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var e struct {
			Error string `json:"error"`
		}
		if err := json.Unmarshal(body, &e); err == nil && e.Error != "" {
			return &statusError{status: resp.StatusCode, msg: e.Error}
		}
		return &statusError{status: resp.StatusCode, msg: strings.TrimSpace(string(body))}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

// shortID trims a uuid for display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTime renders timestamps for human output.
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04")
}
