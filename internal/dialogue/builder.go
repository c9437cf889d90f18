/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package dialogue resolves a lexed StoryMark script into a Document of
// content items and a Graph of bookmarks connected by choice edges.
//
// Three reserved prompts drive the resolution. `@bookmark{name}` registers a
// graph node and makes it the active context. `@choice{target}` adds a
// directed edge from the active context to the named bookmark; targets may be
// defined later in the script, validation is deferred until the whole script
// has been consumed. `@style{pcqbis}` arms a style flag set that attaches to
// the next promptless-parameter signal, e.g. `@style{qb}@{- Hello!}`.
//
// A pending style that is not immediately followed by a promptless-parameter
// signal is discarded silently; the interrupting event is processed as usual.
// Parsing is all-or-nothing: any structural error aborts the whole parse and
// no partial document or graph is returned.
package dialogue

import (
	"errors"

	"storymark/internal/signal"
)

// Reserved prompt names.
const (
	promptBookmark = "bookmark"
	promptChoice   = "choice"
	promptStyle    = "style"
)

// Parse consumes the script in a single forward pass and returns its resolved
// document and dialogue graph, or the first structural error (*Error).
// Re-parsing the same input yields an equivalent result; the input buffer is
// borrowed read-only and never retained beyond Document.Source.
func Parse(input string) (*Document, *Graph, error) {
	doc := &Document{Source: input}
	g := &Graph{Bookmarks: make(map[string]Bookmark)}

	current := Root
	var pending Style
	armed := false

	sc := signal.NewScanner(input)
	for sc.Scan() {
		ev := sc.Event()

		if armed {
			if ev.Kind == signal.KindSignal && !ev.HasPrompt && ev.HasParam {
				doc.Items = append(doc.Items, ContentItem{Kind: ItemStyledText, Style: pending, Span: ev.Param})
				armed = false
				continue
			}
			// Interrupted pairing: drop the pending style, handle the event
			// under the normal rules.
			armed = false
		}

		if ev.Kind == signal.KindText {
			doc.Items = append(doc.Items, ContentItem{Kind: ItemText, Span: ev.Raw})
			continue
		}

		switch {
		case !ev.HasPrompt && ev.HasParam:
			// Promptless parameter with no style pending reads as plain text.
			doc.Items = append(doc.Items, ContentItem{Kind: ItemText, Span: ev.Param})

		case !ev.HasPrompt:
			// Bare '@': a marker with no content of its own.

		default:
			switch name := ev.Prompt.In(input); name {
			case promptBookmark:
				if !ev.HasParam || ev.Param.IsEmpty() {
					return nil, nil, &Error{Kind: ErrMissingBookmarkName, Offset: ev.Raw.Start}
				}
				id := ev.Param.In(input)
				if _, dup := g.Bookmarks[id]; dup {
					return nil, nil, &Error{Kind: ErrDuplicateBookmark, Offset: ev.Raw.Start, Name: id}
				}
				g.Bookmarks[id] = Bookmark{Name: id, Offset: ev.Raw.Start}
				g.Order = append(g.Order, id)
				current = id

			case promptChoice:
				if !ev.HasParam || ev.Param.IsEmpty() {
					return nil, nil, &Error{Kind: ErrMissingChoiceTarget, Offset: ev.Raw.Start}
				}
				g.Edges = append(g.Edges, Edge{From: current, To: ev.Param.In(input), Offset: ev.Raw.Start})

			case promptStyle:
				if !ev.HasParam {
					return nil, nil, &Error{Kind: ErrMissingStyleFlags, Offset: ev.Raw.Start}
				}
				flags, err := parseStyleParam(input, ev.Param)
				if err != nil {
					return nil, nil, err
				}
				pending = flags
				armed = true

			default:
				doc.Items = append(doc.Items, ContentItem{Kind: ItemSignal, Prompt: name, Span: ev.Param, HasParam: ev.HasParam})
			}
		}
	}
	if err := sc.Err(); err != nil {
		var serr *signal.SyntaxError
		if errors.As(err, &serr) {
			return nil, nil, &Error{Kind: ErrUnterminatedParameter, Offset: serr.Offset}
		}
		return nil, nil, err
	}

	// Deferred target resolution: forward references are legal, so edges can
	// only be checked once every bookmark has been seen.
	for _, e := range g.Edges {
		if _, ok := g.Bookmarks[e.To]; !ok {
			return nil, nil, &Error{Kind: ErrUnknownBookmarkTarget, Offset: e.Offset, Name: e.To}
		}
	}
	return doc, g, nil
}

// parseStyleParam folds the characters of a style parameter into a flag set.
// The parameter is a set, not a sequence: character order and repetition do
// not matter, but every character must be a recognized style name.
func parseStyleParam(input string, param signal.Span) (Style, error) {
	var flags Style
	for i, r := range param.In(input) {
		f, ok := styleFor(r)
		if !ok {
			return 0, &Error{Kind: ErrUnknownStyleChar, Offset: param.Start + i, Char: r}
		}
		flags |= f
	}
	return flags, nil
}
