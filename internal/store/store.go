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

// Package store provides the Postgres-backed record store for the intake
// service: parsed submissions, the per-message audit log, registered group
// authorizations, and configurable reply templates.
//
// Both submissions and audit entries are written with
// INSERT ... ON CONFLICT DO NOTHING against a unique constraint on the
// provider message ID. That single atomic statement is the dedup guard;
// there is deliberately no separate existence check, which would race under
// concurrent re-delivery of the same message.
package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides record operations backed by a Postgres pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store and ensures the schema exists.
func New(ctx context.Context, pool *pgxpool.Pool) (*Store, error) {
	s := &Store{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure intake schema: %w", err)
	}
	slog.Info("intake store initialised")
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS submissions (
			id                BIGSERIAL PRIMARY KEY,
			reference         TEXT NOT NULL,
			message_id        TEXT NOT NULL UNIQUE,
			sender            TEXT NOT NULL,
			sender_name       TEXT DEFAULT '',
			received_at       TIMESTAMPTZ NOT NULL,
			group_id          TEXT DEFAULT '',
			group_name        TEXT DEFAULT '',
			name              TEXT NOT NULL,
			phone             TEXT NOT NULL,
			email             TEXT DEFAULT '',
			project           TEXT NOT NULL,
			notes             TEXT DEFAULT '',
			school            TEXT DEFAULT '',
			teacher           TEXT DEFAULT '',
			grade             TEXT DEFAULT '',
			subject           TEXT DEFAULT '',
			lesson_titles     TEXT DEFAULT '',
			lesson_references TEXT DEFAULT '',
			raw_message       TEXT NOT NULL,
			confidence        DOUBLE PRECISION NOT NULL,
			status            TEXT DEFAULT 'new',
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			updated_at        TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(status);
		CREATE INDEX IF NOT EXISTS idx_submissions_sender ON submissions(sender);
		CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
		CREATE INDEX IF NOT EXISTS idx_submissions_school ON submissions(school);
		CREATE INDEX IF NOT EXISTS idx_submissions_project ON submissions(project);

		CREATE TABLE IF NOT EXISTS message_log (
			id             BIGSERIAL PRIMARY KEY,
			message_id     TEXT NOT NULL UNIQUE,
			sender         TEXT NOT NULL,
			sender_name    TEXT DEFAULT '',
			received_at    TIMESTAMPTZ NOT NULL,
			is_group       BOOLEAN DEFAULT FALSE,
			group_id       TEXT DEFAULT '',
			group_name     TEXT DEFAULT '',
			classification TEXT NOT NULL,
			content        TEXT DEFAULT '',
			processed      BOOLEAN DEFAULT FALSE,
			created_at     TIMESTAMPTZ DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_log_classification ON message_log(classification);
		CREATE INDEX IF NOT EXISTS idx_log_sender ON message_log(sender);
		CREATE INDEX IF NOT EXISTS idx_log_received ON message_log(received_at);

		CREATE TABLE IF NOT EXISTS groups (
			id                BIGSERIAL PRIMARY KEY,
			group_id          TEXT NOT NULL UNIQUE,
			group_name        TEXT DEFAULT '',
			active            BOOLEAN DEFAULT TRUE,
			auto_reply        BOOLEAN DEFAULT TRUE,
			total_submissions BIGINT DEFAULT 0,
			last_message_at   TIMESTAMPTZ,
			created_at        TIMESTAMPTZ DEFAULT NOW(),
			updated_at        TIMESTAMPTZ DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS reply_templates (
			id         BIGSERIAL PRIMARY KEY,
			trigger    TEXT NOT NULL UNIQUE,
			body       TEXT NOT NULL,
			active     BOOLEAN DEFAULT TRUE,
			created_at TIMESTAMPTZ DEFAULT NOW(),
			updated_at TIMESTAMPTZ DEFAULT NOW()
		);
	`)
	return err
}

// Ping checks the Postgres connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
