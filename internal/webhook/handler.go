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

// Package webhook handles incoming WhatsApp Cloud API events. Meta verifies
// the endpoint with a GET challenge handshake, then POSTs delivery payloads
// containing batched messages. The handler acknowledges deliveries
// immediately and hands each decoded message to the ingestion pipeline in
// the background; a slow acknowledgment makes Meta re-deliver the whole
// payload, which risks duplicate side effects downstream.
package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/formbot/intake/internal/models"
)

// Payload is the Cloud API delivery envelope.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

// Entry groups changes for one WhatsApp Business account.
type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

// Change is one field change notification.
type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value carries the delivered messages plus sender contact info.
type Value struct {
	MessagingProduct string       `json:"messaging_product"`
	Metadata         Metadata     `json:"metadata"`
	Contacts         []Contact    `json:"contacts"`
	Messages         []RawMessage `json:"messages"`
}

// Metadata identifies the receiving business number.
type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

// Contact maps a sender's WhatsApp ID to their profile name.
type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

// RawMessage is one message object as delivered, with the type-specific
// payload fields it may carry.
type RawMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Timestamp string `json:"timestamp"` // epoch seconds as string
	Type      string `json:"type"`

	Text *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`

	Button *struct {
		Text    string `json:"text"`
		Payload string `json:"payload"`
	} `json:"button,omitempty"`

	Interactive *struct {
		Type        string `json:"type"`
		ButtonReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"button_reply,omitempty"`
		ListReply *struct {
			ID    string `json:"id"`
			Title string `json:"title"`
		} `json:"list_reply,omitempty"`
	} `json:"interactive,omitempty"`

	Image    *Media `json:"image,omitempty"`
	Video    *Media `json:"video,omitempty"`
	Audio    *Media `json:"audio,omitempty"`
	Document *Media `json:"document,omitempty"`
	Sticker  *Media `json:"sticker,omitempty"`

	Reaction *struct {
		MessageID string `json:"message_id"`
		Emoji     string `json:"emoji"`
	} `json:"reaction,omitempty"`

	// Group context, present when the message arrived via a group chat.
	GroupID string `json:"group_id,omitempty"`
	Group   *struct {
		ID      string `json:"id"`
		Subject string `json:"subject"`
	} `json:"group,omitempty"`
}

// Media is the shared shape of image/video/audio/document/sticker payloads.
type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type"`
	Caption  string `json:"caption,omitempty"`
}

// Processor consumes one decoded inbound message. Implemented by the
// ingestion pipeline.
type Processor interface {
	Process(ctx context.Context, msg *models.Message)
}

// Handler serves the verification handshake and delivery payloads.
type Handler struct {
	verifyToken string
	processor   Processor
	now         func() time.Time
}

// NewHandler creates a webhook handler that validates the handshake against
// verifyToken and forwards decoded messages to processor.
func NewHandler(verifyToken string, processor Processor) *Handler {
	return &Handler{
		verifyToken: verifyToken,
		processor:   processor,
		now:         time.Now,
	}
}

// ServeWebhook dispatches on method: GET is Meta's verification handshake,
// POST is message delivery.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.serveVerification(w, r)
	case http.MethodPost:
		h.serveDelivery(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// serveVerification echoes hub.challenge when the shared verify token
// matches; anything else is refused.
func (h *Handler) serveVerification(w http.ResponseWriter, r *http.Request) {
	mode := r.URL.Query().Get("hub.mode")
	token := r.URL.Query().Get("hub.verify_token")
	challenge := r.URL.Query().Get("hub.challenge")

	if mode == "subscribe" && token != "" && token == h.verifyToken {
		slog.Info("webhook verified")
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(challenge))
		return
	}

	slog.Warn("webhook verification refused", "mode", mode)
	http.Error(w, "Forbidden", http.StatusForbidden)
}

// serveDelivery acknowledges a delivery payload and processes it in the
// background. A malformed body is the only client error; every parseable
// payload gets a 200 regardless of what processing later decides, so Meta
// never retries over internal outcomes.
func (h *Handler) serveDelivery(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		slog.Error("failed to read delivery body", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		slog.Error("delivery body not valid JSON", "error", err, "body_len", len(body))
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	// Acknowledge immediately; Meta re-delivers on slow responses.
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))

	go h.processPayload(context.Background(), &payload)
}

// processPayload walks entries → changes → messages and hands each decoded
// message to the pipeline. Messages are independent: one bad message never
// blocks the rest of the batch.
func (h *Handler) processPayload(ctx context.Context, payload *Payload) {
	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			contacts := make(map[string]string, len(change.Value.Contacts))
			for _, c := range change.Value.Contacts {
				contacts[c.WaID] = c.Profile.Name
			}

			for i := range change.Value.Messages {
				msg := h.decodeMessage(&change.Value.Messages[i], contacts)
				h.processor.Process(ctx, msg)
			}
		}
	}
}

// decodeMessage resolves one raw message into the pipeline's model:
// timestamp parsing, group context, and content-type dispatch.
func (h *Handler) decodeMessage(raw *RawMessage, contacts map[string]string) *models.Message {
	ts := h.now().UTC()
	if secs, err := strconv.ParseInt(raw.Timestamp, 10, 64); err == nil {
		ts = time.Unix(secs, 0).UTC()
	}

	groupID := raw.GroupID
	groupName := ""
	if raw.Group != nil {
		if groupID == "" {
			groupID = raw.Group.ID
		}
		groupName = raw.Group.Subject
	}

	kind, content := resolveContent(raw)

	return &models.Message{
		ID:        raw.ID,
		From:      raw.From,
		FromName:  contacts[raw.From],
		Timestamp: ts,
		GroupID:   groupID,
		GroupName: groupName,
		Kind:      kind,
		Content:   content,
	}
}

// resolveContent maps the provider's open-ended type tag onto the closed
// ContentKind set and pulls out the plain text the pipeline can work with.
// Every supported type has an explicit case; anything else is unsupported.
func resolveContent(raw *RawMessage) (models.ContentKind, string) {
	switch raw.Type {
	case "text":
		if raw.Text != nil {
			return models.KindText, raw.Text.Body
		}
		return models.KindText, ""

	case "button":
		if raw.Button != nil {
			return models.KindButton, raw.Button.Text
		}
		return models.KindButton, ""

	case "interactive":
		if raw.Interactive != nil {
			switch raw.Interactive.Type {
			case "button_reply":
				if raw.Interactive.ButtonReply != nil {
					return models.KindInteractive, raw.Interactive.ButtonReply.Title
				}
			case "list_reply":
				if raw.Interactive.ListReply != nil {
					return models.KindInteractive, raw.Interactive.ListReply.Title
				}
			}
		}
		return models.KindInteractive, ""

	case "image":
		return models.KindMedia, mediaContent(raw.Image, "image")
	case "video":
		return models.KindMedia, mediaContent(raw.Video, "video")
	case "audio":
		return models.KindMedia, mediaContent(raw.Audio, "audio")
	case "document":
		return models.KindMedia, mediaContent(raw.Document, "document")
	case "sticker":
		return models.KindMedia, "[sticker]"

	case "reaction":
		if raw.Reaction != nil {
			return models.KindReaction, raw.Reaction.Emoji
		}
		return models.KindReaction, ""

	default:
		return models.KindUnsupported, ""
	}
}

// mediaContent returns the caption when present, else a placeholder tag.
func mediaContent(m *Media, tag string) string {
	if m != nil && m.Caption != "" {
		return m.Caption
	}
	return fmt.Sprintf("[%s]", tag)
}

// Serve starts the webhook HTTP server on the given port. It binds the port
// immediately and signals readiness via the returned channel before
// accepting connections.
func Serve(ctx context.Context, port int, handler *Handler) (<-chan struct{}, error) {
	mux := http.NewServeMux()
	mux.HandleFunc("/webhook", handler.ServeWebhook)
	mux.HandleFunc("/webhook/", handler.ServeWebhook)

	server := &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return nil, fmt.Errorf("bind webhook port %d: %w", port, err)
	}

	ready := make(chan struct{})

	go func() {
		<-ctx.Done()
		slog.Info("webhook server shutting down")
		server.Close()
	}()

	go func() {
		slog.Info("webhook server listening", "port", port)
		close(ready)
		if err := server.Serve(ln); err != http.ErrServerClosed {
			slog.Error("webhook server error", "error", err)
		}
	}()

	return ready, nil
}
