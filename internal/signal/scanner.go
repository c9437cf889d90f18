/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package signal

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

const signalChar = '@'

// SyntaxError reports a structural lexing failure at a byte offset.
// The only lexing failure is an unterminated parameter: a '{' opened with no
// matching '}' before the end of input.
type SyntaxError struct {
	Offset int
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("unterminated parameter at byte %d", e.Offset)
}

// Scanner lexes a script buffer into Events, one per Scan call, in strict
// input order. The buffer is borrowed read-only; no scanner state survives it,
// so scanning the same buffer twice yields identical event sequences.
//
// Usage follows bufio.Scanner:
//
//	sc := signal.NewScanner(text)
//	for sc.Scan() {
//		ev := sc.Event()
//		...
//	}
//	if err := sc.Err(); err != nil { ... }
type Scanner struct {
	input string
	pos   int
	ev    Event
	err   error
}

// NewScanner returns a scanner positioned at the start of input.
func NewScanner(input string) *Scanner {
	return &Scanner{input: input}
}

// Scan advances to the next event. It returns false at end of input or on a
// syntax error; the two cases are distinguished by Err.
func (s *Scanner) Scan() bool {
	if s.err != nil || s.pos >= len(s.input) {
		return false
	}
	if s.input[s.pos] != signalChar {
		s.ev = s.scanText()
		return true
	}
	ev, err := s.scanSignal()
	if err != nil {
		s.err = err
		return false
	}
	s.ev = ev
	return true
}

// Event returns the event produced by the last successful Scan.
func (s *Scanner) Event() Event { return s.ev }

// Err returns the syntax error that stopped scanning, if any.
func (s *Scanner) Err() error { return s.err }

func (s *Scanner) scanText() Event {
	start := s.pos
	end := len(s.input)
	if i := strings.IndexByte(s.input[s.pos:], signalChar); i >= 0 {
		end = s.pos + i
	}
	s.pos = end
	return Event{Kind: KindText, Raw: Span{Start: start, End: end}}
}

func (s *Scanner) scanSignal() (Event, error) {
	start := s.pos
	s.pos++ // consume '@'
	ev := Event{Kind: KindSignal}

	// Optional prompt: a run of identifier characters. A first character that
	// cannot start an identifier leaves the signal bare; the character is
	// re-examined as a potential parameter opener below.
	if s.pos < len(s.input) {
		if r, _ := utf8.DecodeRuneInString(s.input[s.pos:]); isIdentRune(r) {
			idStart := s.pos
			for s.pos < len(s.input) {
				r, size := utf8.DecodeRuneInString(s.input[s.pos:])
				if !isIdentRune(r) {
					break
				}
				s.pos += size
			}
			ev.Prompt = Span{Start: idStart, End: s.pos}
			ev.HasPrompt = true
		}
	}

	// Optional parameter: '{' up to the first '}'. Single-level scan, braces
	// do not nest.
	if s.pos < len(s.input) && s.input[s.pos] == '{' {
		open := s.pos
		s.pos++
		i := strings.IndexByte(s.input[s.pos:], '}')
		if i < 0 {
			return Event{}, &SyntaxError{Offset: open}
		}
		ev.Param = Span{Start: s.pos, End: s.pos + i}
		ev.HasParam = true
		s.pos += i + 1
	}

	ev.Raw = Span{Start: start, End: s.pos}
	return ev, nil
}

// isIdentRune reports whether r may appear in a prompt or bookmark name.
func isIdentRune(r rune) bool {
	return r == '-' || r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ScanAll collects every event of input, or returns the syntax error that
// interrupted lexing.
func ScanAll(input string) ([]Event, error) {
	sc := NewScanner(input)
	var evs []Event
	for sc.Scan() {
		evs = append(evs, sc.Event())
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return evs, nil
}
