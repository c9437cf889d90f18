/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package signal tokenizes StoryMark script text into a lazy sequence of events.
//
// A script is plain text interleaved with signals. Every signal starts with an
// '@' character and may carry
//   - just a prompt (e.g. `@wave`),
//   - just a parameter (e.g. `@{ My important param }`),
//   - both prompt and parameter (e.g. `@bookmark{intro}`),
//   - or neither (e.g. `Pay attention! @`).
//
// The scanner performs pure tokenization: it attaches no meaning to prompts.
// Prompt names are runs of letters, digits, '-' and '_'. Parameters are
// delimited by a single level of braces; the parameter text runs up to the
// first '}' with no nesting rule. A '{' without a matching '}' before the end
// of input is a syntax error.
//
// Events reference the original input through byte-range spans and never copy
// text. The raw spans of the emitted events cover the whole input with no gaps
// and no overlaps, so concatenating them reconstructs the input exactly.
package signal
