/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

// Package telemetry sends anonymous usage metrics and crash reports for the
// dialogue toolkit. Everything is strictly opt-in and disabled by default;
// events carry counts describing script shape (items, bookmarks, choices),
// never authored text.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	applog "storymark/internal/log"
	"storymark/internal/version"
)

// Config holds runtime configuration for telemetry and crash uploads.
//
// Environment variables (read by FromEnv):
// - SMK_TELEMETRY_OPT_IN: "1", "true", "yes" to enable metrics
// - SMK_TELEMETRY_URL: base URL to POST JSON events to
// - SMK_CRASH_UPLOAD_URL: URL to POST crash reports to
// - SMK_TELEMETRY_TIMEOUT_MS: optional request timeout, default 1500ms
// - SMK_TELEMETRY_DEBUG: if set, logs send attempts
//
// If no URLs are set, events are dropped (no-ops), even if opt-in is true.
// The CLI additionally honors general.telemetry_opt_in from the user config.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	DebugLogging bool
}

func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("SMK_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("SMK_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("SMK_CRASH_UPLOAD_URL")),
		Timeout:      1500 * time.Millisecond,
		DebugLogging: os.Getenv("SMK_TELEMETRY_DEBUG") != "",
	}
	if ms := strings.TrimSpace(os.Getenv("SMK_TELEMETRY_TIMEOUT_MS")); ms != "" {
		if v, err := time.ParseDuration(ms + "ms"); err == nil {
			cfg.Timeout = v
		}
	}
	return cfg
}

func parseBool(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}

// event is the wire format for one usage metric. The fixed fields identify
// the build; Props carries event-specific dimensions and must stay free of
// script text and file paths.
type event struct {
	Name    string         `json:"name"`
	TS      string         `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

// ScriptStats are the shape dimensions of one parsed script. Counts only.
type ScriptStats struct {
	Bytes     int
	Items     int
	Bookmarks int
	Choices   int
}

// queueDepth bounds the in-flight event queue; overflow is dropped.
const queueDepth = 64

// Client is a minimal async sender; it never blocks callers and drops
// events silently on errors.
type Client struct {
	cfg    Config
	log    *slog.Logger
	cli    *http.Client
	q      chan event
	once   sync.Once
	closed chan struct{}
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// InitDefault lazily installs the package-level default client from env.
func InitDefault() {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
}

// NewDefault installs the default client with cfg, replacing any prior one.
func NewDefault(cfg Config) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient != nil {
		defaultClient.Close()
	}
	defaultClient = New(cfg)
}

// New constructs a client.
func New(cfg Config) *Client {
	c := &Client{
		cfg:    cfg,
		log:    applog.WithComponent("telemetry"),
		cli:    &http.Client{Timeout: cfg.Timeout},
		q:      make(chan event, queueDepth),
		closed: make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether metrics are enabled and an endpoint is configured.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Enabled reports whether metrics are enabled using the default client.
func Enabled() bool {
	InitDefault()
	return defaultClient.Enabled()
}

// Event posts a small JSON event if enabled. Safe to call from anywhere.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := event{
		Name:    name,
		TS:      time.Now().UTC().Format(time.RFC3339Nano),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Props:   props,
	}
	select {
	case c.q <- ev:
	default:
		// drop if queue full
	}
}

// ScriptEvent reports a parse outcome carrying the script's shape.
func (c *Client) ScriptEvent(name string, st ScriptStats) {
	c.Event(name, map[string]any{
		"script_bytes": st.Bytes,
		"items":        st.Items,
		"bookmarks":    st.Bookmarks,
		"choices":      st.Choices,
	})
}

// Event using default client.
func Event(name string, props map[string]any) { InitDefault(); defaultClient.Event(name, props) }

// ScriptEvent using default client.
func ScriptEvent(name string, st ScriptStats) { InitDefault(); defaultClient.ScriptEvent(name, st) }

// Flush waits briefly for the queue to drain.
func (c *Client) Flush(ctx context.Context) {
	deadline := time.After(500 * time.Millisecond)
	tick := time.NewTicker(25 * time.Millisecond)
	defer tick.Stop()
	for len(c.q) > 0 {
		select {
		case <-ctx.Done():
			return
		case <-deadline:
			return
		case <-tick.C:
		}
	}
}

// Close stops the background goroutine.
func (c *Client) Close() { c.once.Do(func() { close(c.closed) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.closed:
			return
		case ev := <-c.q:
			buf, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			c.post(c.cfg.EventsURL, "application/json", buf, "event")
		}
	}
}

// post is the single send path for events and crash reports.
func (c *Client) post(url, contentType string, body []byte, what string) {
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", contentType)
	resp, err := c.cli.Do(req)
	if err != nil {
		if c.cfg.DebugLogging {
			c.log.Debug("send failed", slog.String("what", what), slog.Any("err", err))
		}
		return
	}
	_ = resp.Body.Close()
	if c.cfg.DebugLogging {
		c.log.Debug("sent", slog.String("what", what))
	}
}

// UploadCrash posts an already-serialized crash report to the configured
// crash URL if opt-in. Reports are plain text, anonymized by construction.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	go func(b []byte) {
		c.post(c.cfg.CrashURL, "text/plain; charset=utf-8", b, "crash report")
	}(append([]byte(nil), report...))
}

// UploadCrash using default client.
func UploadCrash(report []byte) { InitDefault(); defaultClient.UploadCrash(report) }
