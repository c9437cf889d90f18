/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package signal

// EventKind discriminates the two event variants produced by the scanner.
type EventKind int

const (
	// KindText is a run of plain text between signals.
	KindText EventKind = iota
	// KindSignal is an '@'-introduced signal with optional prompt and parameter.
	KindSignal
)

// Event is one unit of the lexed input.
//
// Raw always covers the full extent of the event in the input: for text runs
// the text itself, for signals the '@' plus any prompt and brace-delimited
// parameter syntax. Prompt and Param are only meaningful when the matching
// Has flag is set; both unset means a bare '@'.
type Event struct {
	Kind EventKind

	Raw Span

	Prompt    Span
	HasPrompt bool

	Param    Span
	HasParam bool
}

// IsBare reports whether the event is a signal with neither prompt nor
// parameter, i.e. a lone '@'.
func (e Event) IsBare() bool {
	return e.Kind == KindSignal && !e.HasPrompt && !e.HasParam
}
