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

// Package pipeline drives one inbound message from classification through
// persistence and reply dispatch.
//
// Ordering per message: classify → group authorization → validation → dedup
// → persist → reply, with an audit entry written for every message
// whatever branch it took. Store and transport failures are caught and
// logged at the call site and never abort the remaining steps: once the
// webhook acknowledged the delivery, aborting here would only lose work:
// Meta already considers the payload delivered.
package pipeline

import (
	"context"
	"log/slog"

	"github.com/formbot/intake/internal/models"
	"github.com/formbot/intake/internal/parser"
	"github.com/formbot/intake/internal/store"
)

// Outcome is the terminal state reached for one inbound message.
type Outcome string

const (
	OutcomeStored             Outcome = "stored"
	OutcomeRejectedIncomplete Outcome = "rejected-incomplete"
	OutcomeUnauthorizedGroup  Outcome = "rejected-unauthorized-group"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeIgnoredNonForm     Outcome = "ignored-non-form"
	OutcomeIgnoredNonText     Outcome = "ignored-non-text"
)

// Audit classification tags, one per message_log row.
const (
	classIntakeForm = "intake_form"
	classChat       = "chat"
	classMedia      = "media"
	classReaction   = "reaction"
	classUnknown    = "unknown"
)

// RecordStore is the persistence surface the pipeline needs. Implemented by
// the Postgres store; mocked in tests.
type RecordStore interface {
	InsertSubmission(ctx context.Context, sub *store.Submission) (bool, error)
	InsertLogEntry(ctx context.Context, e *store.LogEntry) (bool, error)
	GetActiveGroup(ctx context.Context, groupID string) (*store.Group, error)
	RecordGroupSubmission(ctx context.Context, groupID string) error
	GetActiveTemplate(ctx context.Context, trigger string) (*store.Template, error)
}

// Sender is the outbound transport surface.
type Sender interface {
	Configured() bool
	SendText(ctx context.Context, to, text string) (string, error)
	MarkRead(ctx context.Context, messageID string) error
}

// DuplicateFilter is the advisory fast-path dedup check. May be nil, in
// which case only the store's unique constraint guards against duplicates.
type DuplicateFilter interface {
	IsNew(ctx context.Context, messageID string) (bool, error)
}

// Pipeline processes decoded inbound messages. Stateless apart from its
// collaborators; safe for concurrent use.
type Pipeline struct {
	parser  *parser.Parser
	records RecordStore
	sender  Sender
	filter  DuplicateFilter
}

// New creates a pipeline. filter may be nil.
func New(p *parser.Parser, records RecordStore, sender Sender, filter DuplicateFilter) *Pipeline {
	return &Pipeline{
		parser:  p,
		records: records,
		sender:  sender,
		filter:  filter,
	}
}

// Process runs one message through the pipeline and logs its terminal
// outcome. Satisfies the webhook's Processor interface.
func (p *Pipeline) Process(ctx context.Context, msg *models.Message) {
	outcome := p.Handle(ctx, msg)
	slog.Info("message processed",
		"message_id", msg.ID,
		"from", msg.From,
		"kind", msg.Kind,
		"outcome", outcome,
	)
}

// Handle runs the state machine for one message and returns the terminal
// outcome.
func (p *Pipeline) Handle(ctx context.Context, msg *models.Message) Outcome {
	var (
		outcome        Outcome
		classification string
		processed      bool
	)

	switch {
	case msg.Content == "":
		// Nothing readable: audit with classification unknown, no parse.
		outcome, classification = OutcomeIgnoredNonText, classUnknown

	case msg.Kind == models.KindText:
		result := p.parser.Parse(msg.Content, msg.From)
		if !result.IsForm {
			outcome, classification = OutcomeIgnoredNonForm, classChat
		} else {
			classification = classIntakeForm
			outcome = p.handleForm(ctx, msg, result)
			processed = outcome == OutcomeStored
		}

	case msg.Kind == models.KindMedia:
		outcome, classification = OutcomeIgnoredNonText, classMedia

	case msg.Kind == models.KindReaction:
		outcome, classification = OutcomeIgnoredNonText, classReaction

	default:
		// Button, interactive and unsupported content carries no form.
		outcome, classification = OutcomeIgnoredNonText, classUnknown
	}

	p.audit(ctx, msg, classification, processed)

	return outcome
}

// handleForm handles a message the parser classified as an intake form:
// group authorization, validation, dedup, persistence, counters, replies.
func (p *Pipeline) handleForm(ctx context.Context, msg *models.Message, result parser.Result) Outcome {
	slog.Info("intake form detected",
		"message_id", msg.ID,
		"from", msg.From,
		"name", result.Field(parser.FieldName),
		"project", result.Field(parser.FieldProject),
		"confidence", result.Confidence,
	)

	// Group authorization: messages from unregistered or inactive groups
	// are dropped silently: audit only, no record, no reply.
	var group *store.Group
	if msg.IsGroup() {
		g, err := p.records.GetActiveGroup(ctx, msg.GroupID)
		if err != nil {
			slog.Error("group lookup failed", "group_id", msg.GroupID, "error", err)
			return OutcomeUnauthorizedGroup
		}
		if g == nil {
			slog.Info("message from unregistered group, skipping",
				"message_id", msg.ID,
				"group_id", msg.GroupID,
			)
			return OutcomeUnauthorizedGroup
		}
		group = g
	}

	// Incomplete forms get a reply listing what is missing but are never
	// stored; an incomplete submission is not a submission.
	if !result.Valid {
		slog.Warn("intake form incomplete",
			"message_id", msg.ID,
			"missing", result.Missing,
		)
		p.sendIncompleteReply(ctx, msg.From, result)
		return OutcomeRejectedIncomplete
	}

	// Advisory fast-path dedup. On Redis error we proceed: the insert
	// below is the authority.
	if p.filter != nil {
		isNew, err := p.filter.IsNew(ctx, msg.ID)
		if err != nil {
			slog.Warn("dedup check failed, proceeding", "error", err)
		} else if !isNew {
			slog.Debug("duplicate delivery (fast path)", "message_id", msg.ID)
			return OutcomeDuplicate
		}
	}

	sub := buildSubmission(msg, result)
	created, err := p.records.InsertSubmission(ctx, sub)
	if err != nil {
		// The delivery is already acknowledged upstream; carry on with the
		// remaining steps rather than lose the reply.
		slog.Error("submission insert failed", "message_id", msg.ID, "error", err)
	} else if !created {
		slog.Debug("duplicate delivery", "message_id", msg.ID)
		return OutcomeDuplicate
	}

	slog.Info("submission stored",
		"message_id", msg.ID,
		"reference", sub.Reference,
		"name", sub.Name,
		"project", sub.Project,
	)

	if group != nil {
		if err := p.records.RecordGroupSubmission(ctx, group.GroupID); err != nil {
			slog.Error("group counter update failed", "group_id", group.GroupID, "error", err)
		}
	}

	// Read receipt and confirmation are both best-effort.
	if p.sender.Configured() {
		if err := p.sender.MarkRead(ctx, msg.ID); err != nil {
			slog.Warn("mark read failed", "message_id", msg.ID, "error", err)
		}
	}

	if group == nil || group.AutoReply {
		p.sendReceivedReply(ctx, msg.From, result, sub.Reference)
	}

	return OutcomeStored
}

// buildSubmission projects a parse result plus channel metadata into a
// store record.
func buildSubmission(msg *models.Message, result parser.Result) *store.Submission {
	return &store.Submission{
		MessageID:  msg.ID,
		Sender:     msg.From,
		SenderName: msg.FromName,
		ReceivedAt: msg.Timestamp,
		GroupID:    msg.GroupID,
		GroupName:  msg.GroupName,

		Name:             result.Field(parser.FieldName),
		Phone:            result.Field(parser.FieldPhone),
		Email:            result.Field(parser.FieldEmail),
		Project:          result.Field(parser.FieldProject),
		Notes:            result.Field(parser.FieldNotes),
		School:           result.Field(parser.FieldSchool),
		Teacher:          result.Field(parser.FieldTeacher),
		Grade:            result.Field(parser.FieldGrade),
		Subject:          result.Field(parser.FieldSubject),
		LessonTitles:     result.Field(parser.FieldLessonTitles),
		LessonReferences: result.Field(parser.FieldLessonReferences),

		RawMessage: msg.Content,
		Confidence: result.Confidence,
	}
}

// audit writes the per-message log entry. Insert-if-absent: a re-delivered
// message leaves the original entry untouched. Failures are logged only.
func (p *Pipeline) audit(ctx context.Context, msg *models.Message, classification string, processed bool) {
	entry := &store.LogEntry{
		MessageID:      msg.ID,
		Sender:         msg.From,
		SenderName:     msg.FromName,
		ReceivedAt:     msg.Timestamp,
		IsGroup:        msg.IsGroup(),
		GroupID:        msg.GroupID,
		GroupName:      msg.GroupName,
		Classification: classification,
		Content:        msg.Content,
		Processed:      processed,
	}

	if _, err := p.records.InsertLogEntry(ctx, entry); err != nil {
		slog.Error("audit log insert failed", "message_id", msg.ID, "error", err)
	}
}
