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

	"github.com/google/uuid"
)

// Submission is one stored intake form: the parser's projection plus the
// channel metadata of the message that carried it.
type Submission struct {
	Reference  string
	MessageID  string
	Sender     string
	SenderName string
	ReceivedAt time.Time
	GroupID    string
	GroupName  string

	Name             string
	Phone            string
	Email            string
	Project          string
	Notes            string
	School           string
	Teacher          string
	Grade            string
	Subject          string
	LessonTitles     string
	LessonReferences string

	RawMessage string
	Confidence float64
}

// InsertSubmission stores a submission if its message ID has not been stored
// before. Returns false when a row with the same message ID already exists;
// the caller treats that as a duplicate delivery, not an error. A fresh
// reference ID is minted per stored row and returned on the Submission.
func (s *Store) InsertSubmission(ctx context.Context, sub *Submission) (bool, error) {
	if sub.Reference == "" {
		sub.Reference = uuid.New().String()
	}

	tag, err := s.pool.Exec(ctx, `
		INSERT INTO submissions
			(reference, message_id, sender, sender_name, received_at,
			 group_id, group_name,
			 name, phone, email, project, notes,
			 school, teacher, grade, subject, lesson_titles, lesson_references,
			 raw_message, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
		        $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)
		ON CONFLICT (message_id) DO NOTHING
	`,
		sub.Reference, sub.MessageID, sub.Sender, sub.SenderName, sub.ReceivedAt,
		sub.GroupID, sub.GroupName,
		sub.Name, sub.Phone, sub.Email, sub.Project, sub.Notes,
		sub.School, sub.Teacher, sub.Grade, sub.Subject, sub.LessonTitles, sub.LessonReferences,
		sub.RawMessage, sub.Confidence,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
