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

// Package whatsapp is the outbound WhatsApp Cloud API client: it sends text
// replies and read receipts through Meta's Graph endpoint on behalf of the
// configured business number. Sends are single-attempt with a bounded
// timeout; retry policy belongs to the caller's provider, not here.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is Meta's Graph API root.
const DefaultBaseURL = "https://graph.facebook.com"

// sendTimeout bounds one outbound API call. Replies are best-effort and must
// never hold up inbound processing.
const sendTimeout = 10 * time.Second

// Client talks to the WhatsApp Cloud API for one business phone number.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	apiVersion    string
	phoneNumberID string
}

// Config holds the Cloud API credentials.
type Config struct {
	AccessToken   string
	PhoneNumberID string
	APIVersion    string
	BaseURL       string // defaults to DefaultBaseURL
}

// NewClient creates a Cloud API client. The access token is a long-lived
// bearer token, carried by an oauth2 static token source on the underlying
// HTTP transport.
func NewClient(cfg Config) *Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})
	httpClient := oauth2.NewClient(context.Background(), src)
	httpClient.Timeout = sendTimeout

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &Client{
		httpClient:    httpClient,
		baseURL:       strings.TrimSuffix(baseURL, "/"),
		apiVersion:    cfg.APIVersion,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

// Configured reports whether the client has credentials to send with. An
// unconfigured client skips sends with a log line instead of failing the
// pipeline.
func (c *Client) Configured() bool {
	return c.phoneNumberID != ""
}

// sendRequest is the common POST to the /messages endpoint.
func (c *Client) sendRequest(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.baseURL, c.apiVersion, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cloud API request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read cloud API response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("cloud API returned HTTP %d: %s", resp.StatusCode, respBody)
	}

	return respBody, nil
}

// SendText sends a plain text message and returns the provider-assigned
// message ID.
func (c *Client) SendText(ctx context.Context, to, text string) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("whatsapp client not configured")
	}

	// Cloud API wants the recipient number without a leading +.
	to = strings.TrimPrefix(to, "+")

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    "individual",
		"to":                to,
		"type":              "text",
		"text": map[string]any{
			"preview_url": false,
			"body":        text,
		},
	}

	respBody, err := c.sendRequest(ctx, payload)
	if err != nil {
		return "", err
	}

	var result struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("decode cloud API response: %w", err)
	}

	id := ""
	if len(result.Messages) > 0 {
		id = result.Messages[0].ID
	}

	slog.Info("whatsapp message sent", "to", to, "provider_id", id)
	return id, nil
}

// MarkRead marks an inbound message as read (blue ticks on the sender's
// side). Best-effort.
func (c *Client) MarkRead(ctx context.Context, messageID string) error {
	if !c.Configured() {
		return fmt.Errorf("whatsapp client not configured")
	}

	payload := map[string]any{
		"messaging_product": "whatsapp",
		"status":            "read",
		"message_id":        messageID,
	}

	if _, err := c.sendRequest(ctx, payload); err != nil {
		return err
	}
	return nil
}
