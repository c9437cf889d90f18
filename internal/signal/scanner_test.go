/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package signal

import (
	"errors"
	"strings"
	"testing"
)

func TestScanJustText(t *testing.T) {
	const sample = "Hello, world!"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	if evs[0].Kind != KindText || evs[0].Raw.In(sample) != sample {
		t.Fatalf("unexpected event: %+v", evs[0])
	}
}

func TestScanBareSignals(t *testing.T) {
	const sample = "Hello, @ world! @"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	if evs[0].Raw.In(sample) != "Hello, " {
		t.Fatalf("unexpected first text: %q", evs[0].Raw.In(sample))
	}
	if !evs[1].IsBare() {
		t.Fatalf("expected bare signal, got %+v", evs[1])
	}
	if evs[2].Raw.In(sample) != " world! " {
		t.Fatalf("unexpected second text: %q", evs[2].Raw.In(sample))
	}
	if !evs[3].IsBare() {
		t.Fatalf("expected trailing bare signal at EOF, got %+v", evs[3])
	}
}

func TestScanPromptOnlySignals(t *testing.T) {
	const sample = "@first_signal Hello, @second-signal world!"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	if !evs[0].HasPrompt || evs[0].Prompt.In(sample) != "first_signal" || evs[0].HasParam {
		t.Fatalf("unexpected first signal: %+v", evs[0])
	}
	if evs[1].Raw.In(sample) != " Hello, " {
		t.Fatalf("unexpected text: %q", evs[1].Raw.In(sample))
	}
	if !evs[2].HasPrompt || evs[2].Prompt.In(sample) != "second-signal" {
		t.Fatalf("unexpected second signal: %+v", evs[2])
	}
	if evs[3].Raw.In(sample) != " world!" {
		t.Fatalf("unexpected trailing text: %q", evs[3].Raw.In(sample))
	}
}

func TestScanFullSignals(t *testing.T) {
	const sample = "Hello, @first{ 20 84 }@second{ #e13f3f } world!"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 4 {
		t.Fatalf("expected 4 events, got %d", len(evs))
	}
	if evs[1].Prompt.In(sample) != "first" || evs[1].Param.In(sample) != " 20 84 " {
		t.Fatalf("unexpected first signal: %+v", evs[1])
	}
	if evs[2].Prompt.In(sample) != "second" || evs[2].Param.In(sample) != " #e13f3f " {
		t.Fatalf("unexpected second signal: %+v", evs[2])
	}
}

func TestScanPromptlessParameter(t *testing.T) {
	const sample = "@{i<4}- Hi!"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if evs[0].HasPrompt || !evs[0].HasParam || evs[0].Param.In(sample) != "i<4" {
		t.Fatalf("unexpected signal: %+v", evs[0])
	}
	if evs[1].Raw.In(sample) != "- Hi!" {
		t.Fatalf("unexpected text: %q", evs[1].Raw.In(sample))
	}
}

func TestScanSignalBeforePunctuation(t *testing.T) {
	// '!' cannot start an identifier, so the '@' stays bare and the rest is text.
	const sample = "@!?"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 2 || !evs[0].IsBare() || evs[1].Raw.In(sample) != "!?" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestScanAdjacentSignals(t *testing.T) {
	const sample = "@@c{1}"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("expected 2 events, got %d", len(evs))
	}
	if !evs[0].IsBare() {
		t.Fatalf("expected bare signal first, got %+v", evs[0])
	}
	if evs[1].Prompt.In(sample) != "c" || evs[1].Param.In(sample) != "1" {
		t.Fatalf("unexpected call signal: %+v", evs[1])
	}
}

func TestScanParameterStopsAtFirstCloser(t *testing.T) {
	// No nesting: the parameter ends at the first '}'.
	const sample = "@note{outer {inner} rest"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if evs[0].Param.In(sample) != "outer {inner" {
		t.Fatalf("unexpected parameter: %q", evs[0].Param.In(sample))
	}
	if evs[1].Raw.In(sample) != " rest" {
		t.Fatalf("unexpected trailing text: %q", evs[1].Raw.In(sample))
	}
}

func TestScanUnterminatedParameter(t *testing.T) {
	for _, sample := range []string{"@{never closed", "text @style{qb", "@{"} {
		sc := NewScanner(sample)
		for sc.Scan() {
		}
		var serr *SyntaxError
		if !errors.As(sc.Err(), &serr) {
			t.Fatalf("%q: expected SyntaxError, got %v", sample, sc.Err())
		}
		if sample[serr.Offset] != '{' {
			t.Fatalf("%q: error offset %d does not point at the opener", sample, serr.Offset)
		}
	}
}

func TestScanTotalCoverage(t *testing.T) {
	samples := []string{
		"",
		"plain text only",
		"- Hello! @wave\n@c{1}@{i<4}- Hi!\n@c{2}@{s>7}- Howdy!@\n",
		"@bookmark{greet}\n– Hello, you!\n@choice{greet}– Come again?\n@choice{bye}– Hi!\n\n@bookmark{bye}\n– Well, farewell..\n",
		"Pay attention! @",
		"@style{qbp}@{- Hello, you!}",
		"@@@",
		"ünïcödé @prömpt{pärâm} tail",
	}
	for _, sample := range samples {
		evs, err := ScanAll(sample)
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", sample, err)
		}
		var b strings.Builder
		prevEnd := 0
		for i, ev := range evs {
			if ev.Raw.Start != prevEnd {
				t.Fatalf("%q: event %d starts at %d, want %d", sample, i, ev.Raw.Start, prevEnd)
			}
			prevEnd = ev.Raw.End
			b.WriteString(ev.Raw.In(sample))
		}
		if prevEnd != len(sample) {
			t.Fatalf("%q: events end at %d, want %d", sample, prevEnd, len(sample))
		}
		if b.String() != sample {
			t.Fatalf("%q: concatenated spans do not reconstruct the input: %q", sample, b.String())
		}
	}
}

func TestScanIsDeterministic(t *testing.T) {
	const sample = "- Hello! @wave\n@c{1}@{i<4}- Hi!\n@c{2}@{s>7}- Howdy!@\n"
	first, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("event counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("event %d differs: %+v vs %+v", i, first[i], second[i])
		}
	}
}

func TestScanEventOrderMatchesInput(t *testing.T) {
	const sample = "- Hello! @wave\n@c{1}@{i<4}- Hi!"
	evs, err := ScanAll(sample)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []struct {
		kind   EventKind
		prompt string
		param  string
		text   string
	}{
		{KindText, "", "", "- Hello! "},
		{KindSignal, "wave", "", ""},
		{KindText, "", "", "\n"},
		{KindSignal, "c", "1", ""},
		{KindSignal, "", "i<4", ""},
		{KindText, "", "", "- Hi!"},
	}
	if len(evs) != len(want) {
		t.Fatalf("expected %d events, got %d", len(want), len(evs))
	}
	for i, w := range want {
		ev := evs[i]
		if ev.Kind != w.kind {
			t.Fatalf("event %d: kind %v, want %v", i, ev.Kind, w.kind)
		}
		if w.kind == KindText {
			if ev.Raw.In(sample) != w.text {
				t.Fatalf("event %d: text %q, want %q", i, ev.Raw.In(sample), w.text)
			}
			continue
		}
		gotPrompt := ""
		if ev.HasPrompt {
			gotPrompt = ev.Prompt.In(sample)
		}
		gotParam := ""
		if ev.HasParam {
			gotParam = ev.Param.In(sample)
		}
		if gotPrompt != w.prompt || gotParam != w.param {
			t.Fatalf("event %d: prompt %q param %q, want %q %q", i, gotPrompt, gotParam, w.prompt, w.param)
		}
	}
}
