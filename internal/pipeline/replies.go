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

package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/formbot/intake/internal/parser"
)

// Reply trigger names, matching the reply_templates table.
const (
	TriggerFormReceived   = "form_received"
	TriggerFormIncomplete = "form_incomplete"
)

// sendReceivedReply confirms a stored submission to the sender. Uses the
// configured template for the trigger when one is active, else a fixed
// default. One attempt; failures are logged and swallowed.
func (p *Pipeline) sendReceivedReply(ctx context.Context, to string, result parser.Result, reference string) {
	vars := map[string]string{
		"name":      result.Field(parser.FieldName),
		"project":   result.Field(parser.FieldProject),
		"school":    orNA(result.Field(parser.FieldSchool)),
		"teacher":   orNA(result.Field(parser.FieldTeacher)),
		"reference": reference,
	}

	text := p.resolveTemplate(ctx, TriggerFormReceived, vars)
	if text == "" {
		text = fmt.Sprintf(
			"✅ *Form Received!*\n\n"+
				"Thank you, %s!\n"+
				"Your request for *%s* has been recorded.\n\n"+
				"We will process it shortly.",
			vars["name"], vars["project"],
		)
	}

	p.send(ctx, to, text)
}

// sendIncompleteReply tells the sender which required fields were missing.
func (p *Pipeline) sendIncompleteReply(ctx context.Context, to string, result parser.Result) {
	missing := make([]string, len(result.Missing))
	for i, f := range result.Missing {
		missing[i] = string(f)
	}
	joined := strings.Join(missing, ", ")

	text := p.resolveTemplate(ctx, TriggerFormIncomplete, map[string]string{
		"missing_fields": joined,
	})
	if text == "" {
		text = fmt.Sprintf(
			"⚠️ *Form Incomplete*\n\n"+
				"Your form is missing required fields:\n"+
				"• %s\n\n"+
				"Please resend with all required information.",
			joined,
		)
	}

	p.send(ctx, to, text)
}

// resolveTemplate loads the active template for a trigger and renders it.
// Returns "" when no template is configured or the lookup fails, so the
// caller falls back to its default text.
func (p *Pipeline) resolveTemplate(ctx context.Context, trigger string, vars map[string]string) string {
	tpl, err := p.records.GetActiveTemplate(ctx, trigger)
	if err != nil {
		slog.Warn("template lookup failed", "trigger", trigger, "error", err)
		return ""
	}
	if tpl == nil {
		return ""
	}
	return renderTemplate(tpl.Body, vars)
}

// renderTemplate substitutes {name}-style placeholders. Placeholders without
// a value are left as written.
func renderTemplate(body string, vars map[string]string) string {
	oldnew := make([]string, 0, len(vars)*2)
	for key, value := range vars {
		oldnew = append(oldnew, "{"+key+"}", value)
	}
	return strings.NewReplacer(oldnew...).Replace(body)
}

// send dispatches one text message: single attempt, bounded by the client's
// timeout, never escalated.
func (p *Pipeline) send(ctx context.Context, to, text string) {
	if !p.sender.Configured() {
		slog.Warn("whatsapp transport not configured, reply skipped", "to", to)
		return
	}

	if _, err := p.sender.SendText(ctx, to, text); err != nil {
		slog.Error("reply dispatch failed", "to", to, "error", err)
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
