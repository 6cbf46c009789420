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

	"github.com/jackc/pgx/v5"
)

// Group is a registered WhatsApp group the bot is allowed to process
// submissions from. Messages from groups without an active registration are
// dropped by the pipeline.
type Group struct {
	ID               int64
	GroupID          string
	GroupName        string
	Active           bool
	AutoReply        bool
	TotalSubmissions int64
	LastMessageAt    *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// GetActiveGroup returns the active registration for a group ID, or
// (nil, nil) when the group is unregistered or inactive.
func (s *Store) GetActiveGroup(ctx context.Context, groupID string) (*Group, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, group_id, group_name, active, auto_reply,
		       total_submissions, last_message_at, created_at, updated_at
		FROM groups
		WHERE group_id = $1 AND active
	`, groupID)

	var g Group
	err := row.Scan(
		&g.ID, &g.GroupID, &g.GroupName, &g.Active, &g.AutoReply,
		&g.TotalSubmissions, &g.LastMessageAt, &g.CreatedAt, &g.UpdatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// RecordGroupSubmission bumps a group's submission counter and last-activity
// timestamp in one atomic statement.
func (s *Store) RecordGroupSubmission(ctx context.Context, groupID string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE groups
		SET total_submissions = total_submissions + 1,
		    last_message_at = NOW(),
		    updated_at = NOW()
		WHERE group_id = $1
	`, groupID)
	return err
}
