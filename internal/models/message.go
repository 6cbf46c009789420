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

// Package models defines the data structures shared across the intake service.
package models

import "time"

// ContentKind is the closed set of inbound content categories the pipeline
// understands. Provider type strings are mapped onto this set by an
// exhaustive switch in the webhook package; anything unrecognised becomes
// KindUnsupported.
type ContentKind string

const (
	KindText        ContentKind = "text"
	KindButton      ContentKind = "button"
	KindInteractive ContentKind = "interactive"
	KindMedia       ContentKind = "media"
	KindReaction    ContentKind = "reaction"
	KindUnsupported ContentKind = "unsupported"
)

// Message is one inbound WhatsApp message, decoded from the webhook payload
// and resolved to plain text. Created once per delivered event and never
// mutated.
type Message struct {
	// ID is the provider's globally unique message identifier, and the
	// dedup key for the whole pipeline.
	ID string

	// From is the sender's WhatsApp number.
	From string

	// FromName is the sender's display name from the payload contacts,
	// empty when absent.
	FromName string

	// Timestamp is the provider receipt time.
	Timestamp time.Time

	// GroupID and GroupName identify the group the message came from,
	// empty for direct messages.
	GroupID   string
	GroupName string

	// Kind is the resolved content category.
	Kind ContentKind

	// Content is the plain text resolved from the type-specific payload:
	// body text, selected button title, media caption or placeholder tag.
	// Empty when the message carries nothing the pipeline can read.
	Content string
}

// IsGroup reports whether the message arrived via a group chat.
func (m *Message) IsGroup() bool {
	return m.GroupID != ""
}
