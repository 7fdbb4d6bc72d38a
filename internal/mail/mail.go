// Package mail sends transactional email through an HTTP email API
// (Resend-compatible). Delivery is best-effort: callers hand messages to a
// Dispatcher and never wait for, or fail on, the outcome.
package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/jborcher/vegfuel/internal/config"
)

// Message is one outbound email.
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

// Sender delivers a message synchronously.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// NewSender returns the HTTP API sender, or a LogSender when no API key is
// configured.
func NewSender(cfg config.MailConfig, logger *slog.Logger) Sender {
	if cfg.APIKey == "" {
		return &LogSender{logger: logger}
	}
	return NewHTTPSender(cfg, &http.Client{Timeout: cfg.Timeout})
}

// HTTPSender posts messages to the email API.
type HTTPSender struct {
	client *http.Client
	apiURL string
	apiKey string
	from   string
}

func NewHTTPSender(cfg config.MailConfig, client *http.Client) *HTTPSender {
	return &HTTPSender{
		client: client,
		apiURL: cfg.APIURL,
		apiKey: cfg.APIKey,
		from:   cfg.From,
	}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text,omitempty"`
	HTML    string   `json:"html,omitempty"`
}

// Send implements Sender.
func (s *HTTPSender) Send(ctx context.Context, msg Message) error {
	body, err := json.Marshal(sendRequest{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Text,
		HTML:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("mail: encoding message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("mail: building request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("mail: calling email API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("mail: email API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	return nil
}

// LogSender drops messages, logging only the recipient and subject.
// Bodies may carry secrets (reset links) and are never logged.
type LogSender struct {
	logger *slog.Logger
}

func (s *LogSender) Send(_ context.Context, msg Message) error {
	s.logger.Warn("email delivery disabled, dropping message",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
	)
	return nil
}
