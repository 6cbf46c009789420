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
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/formbot/intake/internal/models"
	"github.com/formbot/intake/internal/parser"
	"github.com/formbot/intake/internal/store"
)

// --- Mock record store ---

type mockStore struct {
	mu        sync.Mutex
	subs      map[string]*store.Submission
	logs      map[string]*store.LogEntry
	groups    map[string]*store.Group
	templates map[string]*store.Template
	counters  map[string]int

	subErr   error
	groupErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		subs:      make(map[string]*store.Submission),
		logs:      make(map[string]*store.LogEntry),
		groups:    make(map[string]*store.Group),
		templates: make(map[string]*store.Template),
		counters:  make(map[string]int),
	}
}

func (m *mockStore) InsertSubmission(_ context.Context, sub *store.Submission) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.subErr != nil {
		return false, m.subErr
	}
	if _, exists := m.subs[sub.MessageID]; exists {
		return false, nil
	}
	if sub.Reference == "" {
		sub.Reference = fmt.Sprintf("ref-%d", len(m.subs)+1)
	}
	m.subs[sub.MessageID] = sub
	return true, nil
}

func (m *mockStore) InsertLogEntry(_ context.Context, e *store.LogEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.logs[e.MessageID]; exists {
		return false, nil
	}
	m.logs[e.MessageID] = e
	return true, nil
}

func (m *mockStore) GetActiveGroup(_ context.Context, groupID string) (*store.Group, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.groupErr != nil {
		return nil, m.groupErr
	}
	return m.groups[groupID], nil
}

func (m *mockStore) RecordGroupSubmission(_ context.Context, groupID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[groupID]++
	return nil
}

func (m *mockStore) GetActiveTemplate(_ context.Context, trigger string) (*store.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.templates[trigger], nil
}

// --- Mock transport ---

type sentMessage struct {
	To   string
	Text string
}

type mockSender struct {
	mu         sync.Mutex
	configured bool
	sent       []sentMessage
	read       []string
	sendErr    error
}

func (m *mockSender) Configured() bool { return m.configured }

func (m *mockSender) SendText(_ context.Context, to, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return "", m.sendErr
	}
	m.sent = append(m.sent, sentMessage{To: to, Text: text})
	return fmt.Sprintf("wamid.out.%d", len(m.sent)), nil
}

func (m *mockSender) MarkRead(_ context.Context, messageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.read = append(m.read, messageID)
	return nil
}

// --- Mock dedup filter ---

type mockFilter struct {
	mu   sync.Mutex
	seen map[string]bool
	err  error
}

func newMockFilter() *mockFilter {
	return &mockFilter{seen: make(map[string]bool)}
}

func (m *mockFilter) IsNew(_ context.Context, messageID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	if m.seen[messageID] {
		return false, nil
	}
	m.seen[messageID] = true
	return true, nil
}

// --- Helpers ---

func newTestPipeline(records RecordStore, sender Sender, filter DuplicateFilter) *Pipeline {
	return New(parser.New(parser.DefaultVocabulary()), records, sender, filter)
}

func textMessage(id, from, content string) *models.Message {
	return &models.Message{
		ID:        id,
		From:      from,
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Kind:      models.KindText,
		Content:   content,
	}
}

const validForm = "Name: Jane Smith\nProject: Science Fair"

// TestHandle_ValidFormStored verifies the happy path: record created,
// confirmation sent, read receipt issued, audit entry written.
func TestHandle_ValidFormStored(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	msg := textMessage("wamid.1", "237600000000", validForm)
	outcome := pipe.Handle(context.Background(), msg)

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}

	sub, ok := records.subs["wamid.1"]
	if !ok {
		t.Fatal("submission not stored")
	}
	if sub.Name != "Jane Smith" || sub.Project != "Science Fair" {
		t.Errorf("stored name/project = %q/%q", sub.Name, sub.Project)
	}
	if sub.Phone != "237600000000" {
		t.Errorf("stored phone = %q, want sender fallback", sub.Phone)
	}
	if sub.Confidence <= 0 {
		t.Errorf("stored confidence = %v", sub.Confidence)
	}

	if len(sender.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sender.sent))
	}
	if sender.sent[0].To != "237600000000" {
		t.Errorf("reply to = %q", sender.sent[0].To)
	}
	if !strings.Contains(sender.sent[0].Text, "Jane Smith") {
		t.Errorf("reply does not mention the name: %q", sender.sent[0].Text)
	}
	if len(sender.read) != 1 || sender.read[0] != "wamid.1" {
		t.Errorf("read receipts = %v", sender.read)
	}

	entry, ok := records.logs["wamid.1"]
	if !ok {
		t.Fatal("audit entry not written")
	}
	if entry.Classification != "intake_form" || !entry.Processed {
		t.Errorf("audit = %q/processed=%v", entry.Classification, entry.Processed)
	}
}

// TestHandle_DuplicateDelivery verifies re-delivery of a stored message ID
// is a no-op: one record, no second reply.
func TestHandle_DuplicateDelivery(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	// No fast-path filter: the store constraint must be enough on its own.
	pipe := newTestPipeline(records, sender, nil)

	first := pipe.Handle(context.Background(), textMessage("wamid.dup", "237600000000", validForm))
	if first != OutcomeStored {
		t.Fatalf("first outcome = %q, want %q", first, OutcomeStored)
	}

	// Same provider ID, different body.
	second := pipe.Handle(context.Background(), textMessage("wamid.dup", "237600000000",
		"Name: Someone Else\nProject: Different"))
	if second != OutcomeDuplicate {
		t.Fatalf("second outcome = %q, want %q", second, OutcomeDuplicate)
	}

	if len(records.subs) != 1 {
		t.Errorf("stored %d submissions, want 1", len(records.subs))
	}
	if got := records.subs["wamid.dup"].Name; got != "Jane Smith" {
		t.Errorf("surviving record name = %q, want first delivery's", got)
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(sender.sent))
	}
}

// TestHandle_FastPathDuplicate verifies the advisory filter short-circuits
// before the store is touched.
func TestHandle_FastPathDuplicate(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	filter := newMockFilter()
	filter.seen["wamid.fast"] = true
	pipe := newTestPipeline(records, sender, filter)

	outcome := pipe.Handle(context.Background(), textMessage("wamid.fast", "237600000000", validForm))

	if outcome != OutcomeDuplicate {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeDuplicate)
	}
	if len(records.subs) != 0 {
		t.Error("store should not be written on fast-path duplicate")
	}
	if len(sender.sent) != 0 {
		t.Error("no reply expected on duplicate")
	}
}

// TestHandle_FilterErrorProceeds verifies a Redis failure never drops a
// message; the store constraint is the authority.
func TestHandle_FilterErrorProceeds(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	filter := newMockFilter()
	filter.err = fmt.Errorf("redis down")
	pipe := newTestPipeline(records, sender, filter)

	outcome := pipe.Handle(context.Background(), textMessage("wamid.2", "237600000000", validForm))

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if len(records.subs) != 1 {
		t.Error("submission should be stored despite filter error")
	}
}

// TestHandle_IncompleteForm verifies missing required fields produce a
// reply and no record.
func TestHandle_IncompleteForm(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	msg := textMessage("wamid.3", "237600000000", "Name: Bob Stone\nPhone: 650 555 0100\nGrade: 3rd")
	outcome := pipe.Handle(context.Background(), msg)

	if outcome != OutcomeRejectedIncomplete {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeRejectedIncomplete)
	}
	if len(records.subs) != 0 {
		t.Error("incomplete form must not be stored")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sender.sent))
	}
	if !strings.Contains(sender.sent[0].Text, "project") {
		t.Errorf("incomplete reply does not list the missing field: %q", sender.sent[0].Text)
	}

	entry := records.logs["wamid.3"]
	if entry == nil || entry.Processed {
		t.Errorf("audit entry = %+v, want unprocessed", entry)
	}
}

// TestHandle_UnauthorizedGroup verifies messages from unregistered groups
// are dropped silently: no record, no reply, audit only.
func TestHandle_UnauthorizedGroup(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	msg := textMessage("wamid.4", "237600000000", validForm)
	msg.GroupID = "group-unknown"
	msg.GroupName = "Random Group"

	outcome := pipe.Handle(context.Background(), msg)

	if outcome != OutcomeUnauthorizedGroup {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeUnauthorizedGroup)
	}
	if len(records.subs) != 0 {
		t.Error("no record expected for unauthorized group")
	}
	if len(sender.sent) != 0 {
		t.Error("sender-facing silence expected for unauthorized group")
	}

	entry := records.logs["wamid.4"]
	if entry == nil {
		t.Fatal("audit entry must still be written")
	}
	if entry.Classification != "intake_form" || entry.Processed {
		t.Errorf("audit = %q/processed=%v, want intake_form/false", entry.Classification, entry.Processed)
	}
}

// TestHandle_AuthorizedGroup verifies the group counter bump and reply for
// registered groups.
func TestHandle_AuthorizedGroup(t *testing.T) {
	records := newMockStore()
	records.groups["group-1"] = &store.Group{GroupID: "group-1", Active: true, AutoReply: true}
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	msg := textMessage("wamid.5", "237600000000", validForm)
	msg.GroupID = "group-1"

	outcome := pipe.Handle(context.Background(), msg)

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if records.counters["group-1"] != 1 {
		t.Errorf("group counter = %d, want 1", records.counters["group-1"])
	}
	if len(sender.sent) != 1 {
		t.Errorf("sent %d replies, want 1", len(sender.sent))
	}
}

// TestHandle_GroupAutoReplyOff verifies auto_reply=false suppresses the
// confirmation but still stores the record.
func TestHandle_GroupAutoReplyOff(t *testing.T) {
	records := newMockStore()
	records.groups["group-2"] = &store.Group{GroupID: "group-2", Active: true, AutoReply: false}
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	msg := textMessage("wamid.6", "237600000000", validForm)
	msg.GroupID = "group-2"

	outcome := pipe.Handle(context.Background(), msg)

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if len(records.subs) != 1 {
		t.Error("submission should be stored")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent %d replies, want 0 with auto_reply off", len(sender.sent))
	}
}

// TestHandle_ChatLoggedOnly verifies ordinary chat is audited and nothing
// else.
func TestHandle_ChatLoggedOnly(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	outcome := pipe.Handle(context.Background(), textMessage("wamid.7", "237600000000",
		"hey, are we still meeting tomorrow at the school?"))

	if outcome != OutcomeIgnoredNonForm {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeIgnoredNonForm)
	}
	if len(records.subs) != 0 || len(sender.sent) != 0 {
		t.Error("chat must not store records or send replies")
	}
	if entry := records.logs["wamid.7"]; entry == nil || entry.Classification != "chat" {
		t.Errorf("audit entry = %+v, want chat", entry)
	}
}

// TestHandle_NonTextKinds verifies media, reactions, and empty content are
// audited with the right classification and never parsed.
func TestHandle_NonTextKinds(t *testing.T) {
	tests := []struct {
		name    string
		kind    models.ContentKind
		content string
		wantTag string
	}{
		{"media with caption", models.KindMedia, "here is our form photo", "media"},
		{"media placeholder", models.KindMedia, "[image]", "media"},
		{"reaction", models.KindReaction, "👍", "reaction"},
		{"empty text", models.KindText, "", "unknown"},
		{"unsupported", models.KindUnsupported, "", "unknown"},
		{"button title", models.KindButton, "Confirm", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := newMockStore()
			sender := &mockSender{configured: true}
			pipe := newTestPipeline(records, sender, newMockFilter())

			msg := textMessage("wamid.k", "237600000000", tt.content)
			msg.Kind = tt.kind

			outcome := pipe.Handle(context.Background(), msg)

			if outcome != OutcomeIgnoredNonText {
				t.Fatalf("outcome = %q, want %q", outcome, OutcomeIgnoredNonText)
			}
			entry := records.logs["wamid.k"]
			if entry == nil || entry.Classification != tt.wantTag {
				t.Errorf("audit entry = %+v, want classification %q", entry, tt.wantTag)
			}
		})
	}
}

// TestHandle_TemplateOverride verifies a configured template replaces the
// default confirmation text.
func TestHandle_TemplateOverride(t *testing.T) {
	records := newMockStore()
	records.templates[TriggerFormReceived] = &store.Template{
		Trigger: TriggerFormReceived,
		Body:    "Merci {name}! Dossier {reference} ouvert pour {project}.",
	}
	sender := &mockSender{configured: true}
	pipe := newTestPipeline(records, sender, newMockFilter())

	outcome := pipe.Handle(context.Background(), textMessage("wamid.8", "237600000000", validForm))

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d replies, want 1", len(sender.sent))
	}

	text := sender.sent[0].Text
	if !strings.Contains(text, "Merci Jane Smith!") {
		t.Errorf("template not rendered: %q", text)
	}
	if !strings.Contains(text, records.subs["wamid.8"].Reference) {
		t.Errorf("reference placeholder not filled: %q", text)
	}
}

// TestHandle_TransportNotConfigured verifies replies are skipped, not
// failed, without credentials.
func TestHandle_TransportNotConfigured(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: false}
	pipe := newTestPipeline(records, sender, newMockFilter())

	outcome := pipe.Handle(context.Background(), textMessage("wamid.9", "237600000000", validForm))

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if len(records.subs) != 1 {
		t.Error("submission should be stored regardless of transport")
	}
	if len(sender.sent) != 0 || len(sender.read) != 0 {
		t.Error("unconfigured transport must not be used")
	}
}

// TestHandle_SendFailureDoesNotChangeOutcome verifies a transport error is
// swallowed after the record is stored.
func TestHandle_SendFailureDoesNotChangeOutcome(t *testing.T) {
	records := newMockStore()
	sender := &mockSender{configured: true, sendErr: fmt.Errorf("network down")}
	pipe := newTestPipeline(records, sender, newMockFilter())

	outcome := pipe.Handle(context.Background(), textMessage("wamid.10", "237600000000", validForm))

	if outcome != OutcomeStored {
		t.Fatalf("outcome = %q, want %q", outcome, OutcomeStored)
	}
	if len(records.subs) != 1 {
		t.Error("submission should remain stored despite reply failure")
	}
}
