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

	"github.com/jackc/pgx/v5"
)

// Template is a configurable reply text keyed by trigger name. The body may
// carry {name}-style placeholders filled in by the pipeline.
type Template struct {
	Trigger string
	Body    string
}

// GetActiveTemplate returns the active template for a trigger, or (nil, nil)
// when none is configured; the pipeline then falls back to its built-in
// default text.
func (s *Store) GetActiveTemplate(ctx context.Context, trigger string) (*Template, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT trigger, body
		FROM reply_templates
		WHERE trigger = $1 AND active
	`, trigger)

	var t Template
	err := row.Scan(&t.Trigger, &t.Body)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}
