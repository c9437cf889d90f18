/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package config

import (
	"os"
	"path/filepath"
	"testing"
)

// memStore stubs the OS keyring for tests.
type memStore struct{ m map[string]string }

func (s *memStore) Get(service, key string) (string, error)  { return s.m[service+"/"+key], nil }
func (s *memStore) Set(service, key, value string) error     { s.m[service+"/"+key] = value; return nil }
func (s *memStore) Delete(service, key string) error         { delete(s.m, service+"/"+key); return nil }

func useMemStore(t *testing.T) *memStore {
	t.Helper()
	old := tokenStore
	st := &memStore{m: map[string]string{}}
	tokenStore = st
	t.Cleanup(func() { tokenStore = old })
	return st
}

func TestEnvOverridesBackendURL(t *testing.T) {
	useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvBackendURL, "https://example.test:8443")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if got, want := cfg.Backend.BaseURL, "https://example.test:8443"; got != want {
		t.Fatalf("Backend.BaseURL = %q, want %q", got, want)
	}
}

func TestEnvOverridesParserLimit(t *testing.T) {
	useMemStore(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvMaxScriptBytes, "1024")
	cfg, _, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Parser.MaxScriptBytes != 1024 {
		t.Fatalf("Parser.MaxScriptBytes = %d, want 1024", cfg.Parser.MaxScriptBytes)
	}
}

func TestMergeIncludesLogging(t *testing.T) {
	dst := Defaults()
	src := Defaults()
	src.Logging.Level = "debug"
	src.Logging.Format = "json"
	src.Logging.Source = true
	src.Logging.File = "/tmp/smk.log"
	mergeInto(&dst, &src)
	if dst.Logging.Level != "debug" || dst.Logging.Format != "json" || !dst.Logging.Source || dst.Logging.File != "/tmp/smk.log" {
		t.Fatalf("logging fields not merged correctly: %#v", dst.Logging)
	}
}

func TestMergeKeepsParserDefaultWhenUnset(t *testing.T) {
	dst := Defaults()
	src := AppConfig{}
	mergeInto(&dst, &src)
	if dst.Parser.MaxScriptBytes != Defaults().Parser.MaxScriptBytes {
		t.Fatalf("parser limit lost in merge: %#v", dst.Parser)
	}
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	st := useMemStore(t)
	t.Setenv("HOME", t.TempDir())

	cfg := Defaults()
	cfg.General.EnableServer = true
	cfg.Logging.Level = "debug"
	if err := Save(cfg, "secret-token"); err != nil {
		t.Fatalf("Save() error: %v", err)
	}
	path, err := ConfigPath()
	if err != nil {
		t.Fatalf("ConfigPath() error: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file missing: %v", err)
	}
	if filepath.Base(path) != "config.yaml" {
		t.Fatalf("unexpected config file name: %s", path)
	}

	back, tok, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !back.General.EnableServer || back.Logging.Level != "debug" {
		t.Fatalf("file config not merged: %#v", back)
	}
	if tok != "secret-token" {
		t.Fatalf("token = %q, want secret-token", tok)
	}
	if st.m[keyringService+"/"+keyringToken] != "secret-token" {
		t.Fatalf("token not persisted to keyring store")
	}
}
