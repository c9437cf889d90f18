/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a crash report that says what the process
// was doing: which script was being parsed, the last structural parse error,
// and the state of the project's embedded index.
package crash

import (
	"bytes"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	applog "storymark/internal/log"
	"storymark/internal/storage"
	"storymark/internal/telemetry"
	"storymark/internal/version"
)

// exitFn is used to allow testing of Recover without terminating the test process.
var exitFn = os.Exit

// The CLI records what it is working on so the report can name it. Both
// fields are best-effort and may be empty.
var (
	ctxMu        sync.Mutex
	activeScript string
	lastParseErr string
)

// SetActiveScript records the script currently being parsed or indexed.
func SetActiveScript(name string) {
	ctxMu.Lock()
	activeScript = name
	ctxMu.Unlock()
}

// NoteParseError records the most recent structural parse error.
func NoteParseError(err error) {
	if err == nil {
		return
	}
	ctxMu.Lock()
	lastParseErr = err.Error()
	ctxMu.Unlock()
}

// Recover captures a panic, logs an error with stacktrace, writes a crash
// report, and attempts a crash-safe autosave of the project manifest (if
// provided).
//
// Usage: defer func(){ crash.Recover(ph) }()
func Recover(ph *storage.ProjectHandle) {
	if r := recover(); r != nil {
		l := applog.WithComponent("crash")
		stack := debug.Stack()
		l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

		reportPath, _ := writeReport(ph, r, stack)
		if ph != nil {
			if path, err := storage.AutosaveCrashSnapshot(ph); err != nil {
				l.Error("autosave crash snapshot failed", slog.Any("err", err))
			} else {
				l.Info("autosave crash snapshot written", slog.String("path", path))
			}
		}

		if _, err := fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", reportPath); err != nil {
			l.Error("failed to write crash message to stderr", slog.Any("err", err))
		}
		if _, err := fmt.Fprintf(os.Stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH); err != nil {
			l.Error("failed to write version info to stderr", slog.Any("err", err))
		}
		// Exit with a non-zero code to indicate failure in CLI context.
		exitFn(2)
	}
}

// report is everything a crash report captures, gathered before rendering so
// a failing probe (e.g. the index stat) cannot abort the write.
type report struct {
	when       time.Time
	panicVal   any
	stack      []byte
	root       string
	manifest   string
	script     string
	parseErr   string
	indexState string
}

func gather(ph *storage.ProjectHandle, panicVal any, stack []byte) report {
	r := report{when: time.Now(), panicVal: panicVal, stack: stack}
	ctxMu.Lock()
	r.script = activeScript
	r.parseErr = lastParseErr
	ctxMu.Unlock()
	if ph != nil {
		r.root = ph.Root
		r.manifest = ph.ManifestPath
		ip := storage.IndexPath(ph.Root)
		if st, err := os.Stat(ip); err == nil {
			r.indexState = fmt.Sprintf("%s (%d bytes)", ip, st.Size())
		} else {
			r.indexState = "absent"
		}
	}
	return r
}

func (r report) render() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "StoryMark Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", r.when.Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if r.root != "" {
		fmt.Fprintf(&buf, "ProjectRoot: %s\n", r.root)
		fmt.Fprintf(&buf, "Manifest: %s\n", r.manifest)
		fmt.Fprintf(&buf, "Index: %s\n", r.indexState)
	}
	if r.script != "" {
		fmt.Fprintf(&buf, "Script: %s\n", r.script)
	}
	if r.parseErr != "" {
		fmt.Fprintf(&buf, "LastParseError: %s\n", r.parseErr)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", r.panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", string(r.stack))
	return buf.Bytes()
}

func writeReport(ph *storage.ProjectHandle, panicVal any, stack []byte) (string, error) {
	dir := os.TempDir()
	if ph != nil && ph.Root != "" {
		dir = filepath.Join(ph.Root, storage.BackupsDirName)
		_ = os.MkdirAll(dir, 0o755)
	}
	stamp := time.Now().Format("20060102-150405")
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", stamp))

	body := gather(ph, panicVal, stack).render()
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return path, err
	}

	// optionally upload anonymized crash report (opt-in via env)
	telemetry.UploadCrash(body)
	return path, nil
}
