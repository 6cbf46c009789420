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

package store

import (
	"context"
	"time"
	"unicode/utf8"
)

// maxLogContent caps stored message content.
const maxLogContent = 5000

// LogEntry is one audit record: every delivered message gets exactly one,
// whatever the pipeline decided about it.
type LogEntry struct {
	MessageID      string
	Sender         string
	SenderName     string
	ReceivedAt     time.Time
	IsGroup        bool
	GroupID        string
	GroupName      string
	Classification string
	Content        string
	Processed      bool
}

// InsertLogEntry writes an audit entry if none exists for the message ID.
// Returns false when an entry is already present; the existing entry is
// left untouched.
func (s *Store) InsertLogEntry(ctx context.Context, e *LogEntry) (bool, error) {
	content := e.Content
	if len(content) > maxLogContent {
		// Cut on a rune boundary; Postgres rejects broken UTF-8.
		cut := maxLogContent
		for cut > 0 && !utf8.RuneStart(content[cut]) {
			cut--
		}
		content = content[:cut]
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO message_log
			(message_id, sender, sender_name, received_at,
			 is_group, group_id, group_name,
			 classification, content, processed)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (message_id) DO NOTHING
	`,
		e.MessageID, e.Sender, e.SenderName, e.ReceivedAt,
		e.IsGroup, e.GroupID, e.GroupName,
		e.Classification, content, e.Processed,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
