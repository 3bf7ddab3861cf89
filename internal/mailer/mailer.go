// Package mailer sends lead notification emails. Delivery is best-effort:
// callers log a failed Send and carry on.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// DefaultEndpoint is the Resend send-email API.
const DefaultEndpoint = "https://api.resend.com/emails"

// Message is one outbound email.
type Message struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
}

// Notifier delivers a Message and returns the provider's message id.
type Notifier interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// Resend delivers mail through the Resend HTTP API.
type Resend struct {
	apiKey   string
	endpoint string
	client   *http.Client
	log      *zap.Logger
}

// NewResend creates a Resend client. An empty endpoint uses
// DefaultEndpoint.
func NewResend(apiKey, endpoint string, log *zap.Logger) *Resend {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Resend{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		log:      log.Named("mailer"),
	}
}

func (r *Resend) Send(ctx context.Context, msg Message) (string, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("mailer: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("mailer: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("mailer: POST %s: %w", r.endpoint, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return "", fmt.Errorf("mailer: resend returned %d: %s", resp.StatusCode, apiErr.Message)
		}
		return "", fmt.Errorf("mailer: resend returned %d: %s", resp.StatusCode, string(respBody))
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return "", fmt.Errorf("mailer: decode response: %w", err)
	}
	r.log.Debug("email sent", zap.String("id", out.ID), zap.Strings("to", msg.To))
	return out.ID, nil
}

// Log is a Notifier that only logs. Used when no API key is configured.
type Log struct {
	log *zap.Logger
}

// NewLog creates a log-only notifier.
func NewLog(log *zap.Logger) *Log {
	return &Log{log: log.Named("mailer")}
}

func (l *Log) Send(_ context.Context, msg Message) (string, error) {
	l.log.Info("email not configured, dropping notification",
		zap.String("subject", msg.Subject), zap.String("replyTo", msg.ReplyTo))
	return "", nil
}

// Lead is the content of a new-lead notification.
type Lead struct {
	Name    string
	Email   string
	Phone   string
	Company string
	Message string
	At      time.Time
}

var leadTemplate = template.Must(template.New("lead").Parse(`<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <h2 style="color: #0ea5e9; border-bottom: 2px solid #0ea5e9; padding-bottom: 10px;">New Contact Form Submission</h2>
  <div style="background-color: #f9fafb; padding: 20px; border-radius: 8px; margin: 20px 0;">
    <p style="margin: 10px 0;"><strong>Name:</strong> {{.Name}}</p>
    <p style="margin: 10px 0;"><strong>Email:</strong> {{.Email}}</p>
    {{- if .Phone}}
    <p style="margin: 10px 0;"><strong>Phone:</strong> {{.Phone}}</p>
    {{- end}}
    {{- if .Company}}
    <p style="margin: 10px 0;"><strong>Company:</strong> {{.Company}}</p>
    {{- end}}
  </div>
  <div style="margin: 20px 0;">
    <h3 style="color: #374151;">Message:</h3>
    <p style="background-color: #f9fafb; padding: 15px; border-radius: 8px; border-left: 4px solid #0ea5e9;">{{.Message}}</p>
  </div>
  <div style="margin-top: 30px; padding-top: 20px; border-top: 1px solid #e5e7eb; font-size: 12px; color: #6b7280;">
    <p>This email was sent from your website contact form at {{.At.Format "2 Jan 2006 15:04 MST"}}.</p>
  </div>
</div>
`))

// LeadMessage builds the notification for a lead. Replies go straight to
// the lead's address.
func LeadMessage(from string, to []string, lead Lead) (Message, error) {
	var buf bytes.Buffer
	if err := leadTemplate.Execute(&buf, lead); err != nil {
		return Message{}, fmt.Errorf("mailer: render lead: %w", err)
	}
	return Message{
		From:    from,
		To:      to,
		ReplyTo: lead.Email,
		Subject: "New Contact Form Submission from " + lead.Name,
		HTML:    buf.String(),
	}, nil
}
