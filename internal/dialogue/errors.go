/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package dialogue

import "fmt"

// ErrorKind enumerates the structural parse failures.
type ErrorKind int

const (
	// ErrUnterminatedParameter: '{' opened without a matching '}' before input end.
	ErrUnterminatedParameter ErrorKind = iota + 1
	// ErrMissingBookmarkName: @bookmark used without a name parameter.
	ErrMissingBookmarkName
	// ErrMissingChoiceTarget: @choice used without a target parameter.
	ErrMissingChoiceTarget
	// ErrMissingStyleFlags: @style used without a parameter.
	ErrMissingStyleFlags
	// ErrDuplicateBookmark: the same bookmark name registered twice.
	ErrDuplicateBookmark
	// ErrUnknownStyleChar: a style parameter character outside p,c,q,b,i,s.
	ErrUnknownStyleChar
	// ErrUnknownBookmarkTarget: a choice targets a bookmark never defined.
	ErrUnknownBookmarkTarget
)

// Error is a structural parse error with the byte offset it was detected at.
// Name carries the offending bookmark name for duplicate/unknown-target
// errors; Char carries the offending rune for unknown style characters.
type Error struct {
	Kind   ErrorKind
	Offset int
	Name   string
	Char   rune
}

func (e *Error) Error() string {
	switch e.Kind {
	case ErrUnterminatedParameter:
		return fmt.Sprintf("unterminated parameter at byte %d", e.Offset)
	case ErrMissingBookmarkName:
		return fmt.Sprintf("missing bookmark name at byte %d", e.Offset)
	case ErrMissingChoiceTarget:
		return fmt.Sprintf("missing choice target at byte %d", e.Offset)
	case ErrMissingStyleFlags:
		return fmt.Sprintf("missing style flags at byte %d", e.Offset)
	case ErrDuplicateBookmark:
		return fmt.Sprintf("duplicate bookmark %q at byte %d", e.Name, e.Offset)
	case ErrUnknownStyleChar:
		return fmt.Sprintf("unknown style character %q at byte %d", e.Char, e.Offset)
	case ErrUnknownBookmarkTarget:
		return fmt.Sprintf("choice targets unknown bookmark %q at byte %d", e.Name, e.Offset)
	default:
		return fmt.Sprintf("parse error at byte %d", e.Offset)
	}
}
