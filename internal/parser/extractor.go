// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package parser

import (
	"strings"
	"unicode/utf8"
)

// separators in priority order. The first separator that yields a valid
// pair wins; a line yields at most one pair.
var separators = []string{":", "=", "-"}

// maxLabelLen rejects sentence-like left sides ("call me when you can - ok").
const maxLabelLen = 30

// pair is one raw label/value extracted from a message line, before any
// vocabulary matching.
type pair struct {
	label string
	value string
}

// extractPairs splits a message into candidate label/value pairs, one per
// line at most, in line order. A line produces a pair when splitting at the
// first occurrence of a separator leaves a trimmed label of 1–30 characters
// and a non-empty trimmed value; an invalid split falls through to the next
// separator. Duplicate labels are kept; later matching keeps the last
// value seen per canonical field.
func extractPairs(message string) []pair {
	var pairs []pair

	for _, line := range strings.Split(strings.TrimSpace(message), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		for _, sep := range separators {
			before, after, found := strings.Cut(line, sep)
			if !found {
				continue
			}

			label := strings.TrimSpace(before)
			value := strings.TrimSpace(after)
			if n := utf8.RuneCountInString(label); n >= 1 && n <= maxLabelLen && value != "" {
				pairs = append(pairs, pair{label: label, value: value})
				break
			}
		}
	}

	return pairs
}
