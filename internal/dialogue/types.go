/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialogue

import "storymark/internal/signal"

// ItemKind discriminates the resolved content item variants.
type ItemKind int

const (
	// ItemText is a run of regular text.
	ItemText ItemKind = iota
	// ItemStyledText is text with one or more style flags attached.
	ItemStyledText
	// ItemSignal is a signal whose prompt is not reserved, preserved verbatim
	// for downstream interpretation.
	ItemSignal
)

// ContentItem is one resolved unit of a parsed script, in document order.
// Span points back into Document.Source for text items; for ItemSignal it is
// the parameter span when HasParam is set.
type ContentItem struct {
	Kind  ItemKind
	Span  signal.Span
	Style Style

	// ItemSignal only.
	Prompt   string
	HasParam bool
}

// Document is the ordered content of one parsed script. It retains the source
// buffer so consumers can re-extract the text an item's span refers to.
// Documents are built once by Parse and never mutated afterwards.
type Document struct {
	Source string
	Items  []ContentItem
}

// TextOf returns the source text an item's span covers.
func (d *Document) TextOf(it ContentItem) string { return it.Span.In(d.Source) }

// Root names the implicit bookmark context active before any @bookmark has
// been registered. Choices appearing there produce edges from Root.
const Root = ""

// Bookmark is a named node of the dialogue graph, declared once per name.
type Bookmark struct {
	Name   string
	Offset int // byte offset of the declaring signal
}

// Edge is a directed choice edge between bookmark contexts.
type Edge struct {
	From   string
	To     string
	Offset int // byte offset of the declaring signal
}

// Graph is the branching structure of one parsed script: bookmark nodes plus
// choice edges in document order, so each node's choices keep a deterministic
// ordering. The implicit Root node is always part of the graph even though it
// never appears in Bookmarks.
type Graph struct {
	Bookmarks map[string]Bookmark
	Order     []string // bookmark names in declaration order
	Edges     []Edge
}

// Has reports whether name is a node of the graph.
func (g *Graph) Has(name string) bool {
	if name == Root {
		return true
	}
	_, ok := g.Bookmarks[name]
	return ok
}

// ChoicesFrom returns the edges leaving the given bookmark context, in
// document order.
func (g *Graph) ChoicesFrom(name string) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if e.From == name {
			out = append(out, e)
		}
	}
	return out
}
