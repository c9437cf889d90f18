/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal HTTP client for the archive API, used by the CLI
// scripts subcommands when a backend is configured.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a new backend client. baseURL may include a trailing slash; it will be normalized.
func NewClient(baseURL string, token string) *Client {
	b := strings.TrimRight(baseURL, "/")
	return &Client{
		BaseURL: b,
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// AllowInsecureTLS disables certificate verification. Only for self-hosted
// archives behind self-signed certificates.
func (c *Client) AllowInsecureTLS() {
	c.client.Transport = &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// Script is a minimal projection for listing archived scripts.
type Script struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

// ListScripts returns archived scripts (read-only).
func (c *Client) ListScripts(ctx context.Context) ([]Script, error) {
	var list []Script
	if err := c.doJSON(ctx, http.MethodGet, "/api/scripts", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// GraphBookmark is one node of an archived dialogue graph.
type GraphBookmark struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
}

// GraphEdge is one choice edge of an archived dialogue graph.
// From "" denotes the implicit root context.
type GraphEdge struct {
	From   string `json:"from"`
	To     string `json:"to"`
	Offset int    `json:"offset"`
}

// GraphEnvelope matches the server response for a script's dialogue graph.
type GraphEnvelope struct {
	ScriptID  int64           `json:"script_id"`
	Name      string          `json:"name"`
	Bookmarks []GraphBookmark `json:"bookmarks"`
	Choices   []GraphEdge     `json:"choices"`
}

// GetGraph fetches the archived dialogue graph for a script.
func (c *Client) GetGraph(ctx context.Context, scriptID int64) (*GraphEnvelope, error) {
	var env GraphEnvelope
	path := fmt.Sprintf("/api/scripts/%d/graph", scriptID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &env); err != nil {
		return nil, err
	}
	return &env, nil
}

// UploadScript submits a script's source for parsing and archival.
func (c *Client) UploadScript(ctx context.Context, name, source string) (int64, error) {
	var resp struct {
		ID json.Number `json:"id"`
	}
	body := map[string]string{"name": name, "source": source}
	if err := c.doJSON(ctx, http.MethodPost, "/api/scripts", body, &resp); err != nil {
		return 0, err
	}
	id, _ := resp.ID.Int64()
	return id, nil
}
