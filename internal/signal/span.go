/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package signal

// Span is a half-open byte range [Start, End) into the original input buffer.
// Invariant: 0 <= Start <= End <= len(input).
type Span struct {
	Start int
	End   int
}

// Len returns the byte length of the span.
func (s Span) Len() int { return s.End - s.Start }

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool { return s.End <= s.Start }

// In re-extracts the spanned slice from the input the span was produced for.
func (s Span) In(input string) string { return input[s.Start:s.End] }
