/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

// Package version exposes the application version string.
package version

// Version is the semantic version of the build. It can be overridden at link
// time via -ldflags "-X storymark/internal/version.Version=...".
var Version = "0.3.0-dev"

// String returns the version string.
func String() string { return Version }
