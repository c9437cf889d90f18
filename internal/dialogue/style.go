/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package dialogue

import "strings"

// Style is a set of text emphasis flags. Flags are combined with bitwise or;
// the zero value means regular, unstyled text.
//
// How a mix of flags is displayed is the consumer's decision; this package
// only records which flags a `@style{...}` signal selected.
type Style uint8

const (
	StylePanel Style = 1 << iota
	StyleCode
	StyleQuote
	StyleBold
	StyleItalic
	StyleScratch
)

// styleChars maps the recognized one-character style names, in canonical order.
var styleChars = []struct {
	ch   byte
	flag Style
}{
	{'p', StylePanel},
	{'c', StyleCode},
	{'q', StyleQuote},
	{'b', StyleBold},
	{'i', StyleItalic},
	{'s', StyleScratch},
}

// styleFor resolves a single style character to its flag.
func styleFor(r rune) (Style, bool) {
	for _, sc := range styleChars {
		if rune(sc.ch) == r {
			return sc.flag, true
		}
	}
	return 0, false
}

// Has reports whether every flag in f is set in s.
func (s Style) Has(f Style) bool { return s&f == f }

// String returns the style characters of the set in canonical order, e.g.
// "pqb", or "" for regular text.
func (s Style) String() string {
	var b strings.Builder
	for _, sc := range styleChars {
		if s.Has(sc.flag) {
			b.WriteByte(sc.ch)
		}
	}
	return b.String()
}
