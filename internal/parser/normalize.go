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
	"regexp"
	"strings"
	"unicode"
)

var (
	emailPattern        = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	phoneCleanupPattern = regexp.MustCompile(`[\s\-.()]+`)
)

// normalizeName trims and title-cases a person or institution name.
func normalizeName(value string) string {
	return titleCase(strings.TrimSpace(value))
}

// normalizePhone strips spacing, hyphens, dots and parentheses from a phone
// number, preserving a leading + for the country code. When the extracted
// value is empty the sender's WhatsApp number is used as fallback.
func normalizePhone(value, fallback string) string {
	phone := strings.TrimSpace(value)
	if phone == "" {
		phone = strings.TrimSpace(fallback)
	}
	if phone == "" {
		return ""
	}

	hasPlus := strings.HasPrefix(phone, "+")
	phone = phoneCleanupPattern.ReplaceAllString(phone, "")
	if hasPlus && !strings.HasPrefix(phone, "+") {
		phone = "+" + phone
	}
	return phone
}

// normalizeEmail lowercases an email address and discards it (to empty, not
// an error; a bad email never rejects the whole form) when it does not look
// like local@domain.tld.
func normalizeEmail(value string) string {
	email := strings.ToLower(strings.TrimSpace(value))
	if email != "" && !emailPattern.MatchString(email) {
		return ""
	}
	return email
}

// titleCase upper-cases the first letter of each space-separated word and
// lower-cases the rest, e.g. "jane SMITH" → "Jane Smith".
func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		runes := []rune(strings.ToLower(word))
		for j, r := range runes {
			if unicode.IsLetter(r) {
				runes[j] = unicode.ToUpper(r)
				break
			}
		}
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
