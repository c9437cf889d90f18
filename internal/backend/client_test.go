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
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newArchiveStub(t *testing.T) (*httptest.Server, *[]string) {
	t.Helper()
	var auths []string
	mux := http.NewServeMux()
	// Method-based mux patterns ("GET /api/scripts") need go1.22+; dispatch on
	// r.Method here so the stub also works on a go1.21 toolchain.
	mux.HandleFunc("/api/scripts", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			auths = append(auths, r.Header.Get("Authorization"))
			writeJSON(w, http.StatusOK, []map[string]any{
				{"id": 1, "name": "intro.smk", "updated_at": "2026-08-28T10:00:00Z", "version": 3},
			})
		case http.MethodPost:
			auths = append(auths, r.Header.Get("Authorization"))
			var body struct {
				Name   string `json:"name"`
				Source string `json:"source"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Name == "" || body.Source == "" {
				writeError(w, http.StatusBadRequest, errors.New("bad upload body"))
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"id": 7, "version": 1})
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	})
	mux.HandleFunc("/api/scripts/7/graph", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		auths = append(auths, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, GraphEnvelope{
			ScriptID:  7,
			Name:      "intro.smk",
			Bookmarks: []GraphBookmark{{Name: "greet", Offset: 12}},
			Choices:   []GraphEdge{{From: "", To: "greet", Offset: 3}},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &auths
}

func TestClientListUploadGraph(t *testing.T) {
	srv, auths := newArchiveStub(t)
	c := NewClient(srv.URL+"/", "sekrit")
	if c.BaseURL != srv.URL {
		t.Fatalf("trailing slash not normalized: %s", c.BaseURL)
	}
	ctx := context.Background()

	list, err := c.ListScripts(ctx)
	if err != nil {
		t.Fatalf("ListScripts: %v", err)
	}
	if len(list) != 1 || list[0].Name != "intro.smk" || list[0].Version != 3 {
		t.Fatalf("unexpected list: %+v", list)
	}

	id, err := c.UploadScript(ctx, "intro.smk", "Hello. @bookmark{greet}Hi!")
	if err != nil {
		t.Fatalf("UploadScript: %v", err)
	}
	if id != 7 {
		t.Fatalf("upload id = %d, want 7", id)
	}

	env, err := c.GetGraph(ctx, 7)
	if err != nil {
		t.Fatalf("GetGraph: %v", err)
	}
	if env.ScriptID != 7 || len(env.Bookmarks) != 1 || env.Bookmarks[0].Name != "greet" {
		t.Fatalf("unexpected graph: %+v", env)
	}
	if len(env.Choices) != 1 || env.Choices[0].From != "" || env.Choices[0].To != "greet" {
		t.Fatalf("unexpected choices: %+v", env.Choices)
	}

	for _, a := range *auths {
		if a != "Bearer sekrit" {
			t.Fatalf("missing bearer token, got %q", a)
		}
	}
	if len(*auths) != 3 {
		t.Fatalf("expected 3 authenticated requests, got %d", len(*auths))
	}
}

func TestClientSurfacesServerErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusUnprocessableEntity, errors.New("script rejected"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	if _, err := c.UploadScript(context.Background(), "bad.smk", "@choice{nowhere}"); err == nil {
		t.Fatalf("expected error for rejected upload")
	}
}
