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
	"unicode/utf8"
)

// chatIndicators match messages that are obviously ordinary chat: greetings,
// acknowledgments, a bare number, emoji-only, or a bare link. Anchored
// patterns match the full trimmed message; the URL pattern matches a prefix.
var chatIndicators = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(hi|hello|hey|bonjour|salut|good morning|good afternoon)\s*[!.,]?\s*$`),
	regexp.MustCompile(`(?i)^(ok|okay|yes|no|sure|thanks|thank you|merci)\s*[!.,]?\s*$`),
	regexp.MustCompile(`^\d{1,3}\s*$`),
	regexp.MustCompile(`^[👍👎❤️😀😊🙏]+$`),
	regexp.MustCompile(`(?i)^https?://`),
}

// isLikelyChat is the fast-rejection pre-filter: it returns true when a
// message is obviously not a form, so the extractor never runs for the
// high-volume ordinary-chat case. Rules short-circuit in order:
// very short text, a chat-indicator pattern, or no key/value separator
// anywhere in the text.
func isLikelyChat(message string) bool {
	message = strings.TrimSpace(message)

	if utf8.RuneCountInString(message) < 10 {
		return true
	}

	for _, pattern := range chatIndicators {
		if pattern.MatchString(message) {
			return true
		}
	}

	// A message without any separator cannot yield key/value pairs.
	if !strings.ContainsAny(message, ":=-") {
		return true
	}

	return false
}
