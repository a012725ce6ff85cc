/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Nothing leaves the machine unless the user opted in and an endpoint is set.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "herixworkbench/internal/log"
	"herixworkbench/internal/version"
)

// Event names.
const (
	EventFileOpened   = "file_opened"
	EventPlotRendered = "plot_rendered"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
// - HWB_TELEMETRY_OPT_IN: "1", "true", "yes" to enable
// - HWB_TELEMETRY_URL: endpoint for JSON events
// - HWB_CRASH_UPLOAD_URL: endpoint for crash reports
// - HWB_TELEMETRY_TIMEOUT_MS: request timeout, default 1500ms
// - HWB_TELEMETRY_DEBUG: log send attempts
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("HWB_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("HWB_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("HWB_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("HWB_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("HWB_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil && v > 0 {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// Client queues events and posts them from one background goroutine.
// Events are dropped when the queue is full or a send fails.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan map[string]any
	once   sync.Once
	closed chan struct{}
	sent   sync.WaitGroup
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the package client, creating it from the environment on first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault replaces the package client, closing the previous one.
func SetDefault(cfg Config) {
	c := New(cfg)
	defaultMu.Lock()
	old := defaultClient
	defaultClient = c
	defaultMu.Unlock()
	old.Close()
}

// New constructs a client.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan map[string]any, 64),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a JSON event. props must not carry paths or user data.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.String(),
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	c.sent.Add(1)
	select {
	case c.q <- payload:
	default:
		c.sent.Done()
	}
}

// FileOpened reports the size of a freshly loaded catalog.
func (c *Client) FileOpened(scans, types int) {
	c.Event(EventFileOpened, map[string]any{"scans": scans, "types": types})
}

// PlotRendered reports a plot dispatch.
func (c *Client) PlotRendered(mode string, series int) {
	c.Event(EventPlotRendered, map[string]any{"mode": mode, "series": series})
}

// Flush waits until queued events are sent, ctx is done, or 500ms pass.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	done := make(chan struct{})
	go func() {
		c.sent.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	case <-time.After(500 * time.Millisecond):
	}
}

// Close stops the background goroutine. Queued events are dropped.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.closed) })
}

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case item := <-c.q:
			if err := c.post(c.cfg.EventsURL, "application/json", item); err != nil && c.cfg.DebugLogging {
				c.log.Debug("telemetry send failed", slog.Any("err", err))
			}
			c.sent.Done()
		}
	}
}

func (c *Client) post(url, contentType string, item any) error {
	var body []byte
	switch v := item.(type) {
	case []byte:
		body = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		body = b
	}
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", applog.AppName+"/"+version.Version)
	resp, err := c.cli.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("telemetry endpoint: %s", resp.Status)
	}
	if c.cfg.DebugLogging {
		c.log.Debug("telemetry sent", slog.String("url", url))
	}
	return nil
}

// UploadCrash posts a crash report text if the user opted in. It blocks
// until the endpoint answers or the configured timeout passes, so callers
// about to exit can rely on the upload having finished.
func (c *Client) UploadCrash(report []byte) error {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return nil
	}
	if err := c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", report); err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("crash upload failed", slog.Any("err", err))
		}
		return fmt.Errorf("crash upload: %w", err)
	}
	return nil
}

// Enabled reports whether the default client sends events.
func Enabled() bool { return Default().Enabled() }

// Event queues an event on the default client.
func Event(name string, props map[string]any) { Default().Event(name, props) }

// UploadCrash uploads through the default client.
func UploadCrash(report []byte) error { return Default().UploadCrash(report) }
