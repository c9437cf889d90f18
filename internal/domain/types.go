/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

// This file defines the project-level data model for StoryMark.
// The manifest serializes to a human-readable JSON file (story.json) at the
// project root; the parsed per-script structures live in internal/dialogue.

// Project represents a dialogue project and its metadata.
type Project struct {
	Name     string      `json:"name"`
	Metadata Metadata    `json:"metadata,omitempty"`
	Scripts  []ScriptRef `json:"scripts"`
}

// Metadata contains optional descriptive metadata for a project.
type Metadata struct {
	Series  string `json:"series,omitempty"`
	Writers string `json:"writers,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// ScriptRef points at one script file belonging to the project.
// Path is relative to the project root.
type ScriptRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}
