/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */
package storage

import (
	"context"
	"testing"

	"storymark/internal/dialogue"
)

func indexSampleScripts(t *testing.T) *ProjectHandle {
	t.Helper()
	ph := newTestProject(t)
	ctx := context.Background()
	doc, graph, err := dialogue.Parse("The lantern flickers. @bookmark{alley}A dark alley. @style{b}@{Turn back now!}")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := IndexScript(ctx, ph.Root, "chapter1", doc, graph); err != nil {
		t.Fatalf("IndexScript error: %v", err)
	}
	doc2, graph2, err := dialogue.Parse("Morning at the harbor.")
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if err := IndexScript(ctx, ph.Root, "chapter2", doc2, graph2); err != nil {
		t.Fatalf("IndexScript error: %v", err)
	}
	return ph
}

func TestSearchFullText(t *testing.T) {
	ph := indexSampleScripts(t)
	res, err := Search(context.Background(), ph.Root, SearchQuery{Text: "lantern"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("results = %d, want 1: %#v", len(res), res)
	}
	if res[0].Script != "chapter1" || res[0].Kind != "text" {
		t.Fatalf("unexpected result: %#v", res[0])
	}
	if res[0].Snippet == "" {
		t.Fatalf("expected highlighted snippet")
	}
}

func TestSearchScriptFilter(t *testing.T) {
	ph := indexSampleScripts(t)
	res, err := Search(context.Background(), ph.Root, SearchQuery{Script: "chapter2"})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) == 0 {
		t.Fatalf("no results for chapter2")
	}
	for _, r := range res {
		if r.Script != "chapter2" {
			t.Fatalf("script filter leaked: %#v", r)
		}
	}
}

func TestSearchKindFilterStyledText(t *testing.T) {
	ph := indexSampleScripts(t)
	res, err := Search(context.Background(), ph.Root, SearchQuery{Kinds: []string{"styled_text"}})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(res) != 1 {
		t.Fatalf("styled_text results = %d, want 1: %#v", len(res), res)
	}
	if res[0].Style != "b" {
		t.Fatalf("Style = %q, want b", res[0].Style)
	}
}

func TestSearchPagination(t *testing.T) {
	ph := indexSampleScripts(t)
	all, err := Search(context.Background(), ph.Root, SearchQuery{Kinds: []string{"text"}})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(all) < 2 {
		t.Fatalf("need at least 2 text rows, got %d", len(all))
	}
	page, err := Search(context.Background(), ph.Root, SearchQuery{Kinds: []string{"text"}, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("Search error: %v", err)
	}
	if len(page) != 1 {
		t.Fatalf("paged results = %d, want 1", len(page))
	}
	if page[0].DocID != all[1].DocID {
		t.Fatalf("pagination order mismatch: %v vs %v", page[0].DocID, all[1].DocID)
	}
}
