// Package sheets forwards leads to a spreadsheet webhook such as a Google
// Apps Script web app.
package sheets

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

var tracer = otel.Tracer("leadchat.internal.sheets")

// Config configures the webhook client.
type Config struct {
	URL        string
	Secret     string
	MaxElapsed time.Duration
	HTTPClient *http.Client
}

// Client posts lead rows to the webhook.
type Client struct {
	url        string
	secret     string
	maxElapsed time.Duration
	initial    time.Duration
	http       *http.Client
	logger     *logging.Logger
}

func NewClient(cfg Config, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if cfg.MaxElapsed <= 0 {
		cfg.MaxElapsed = 30 * time.Second
	}
	return &Client{
		url:        strings.TrimSpace(cfg.URL),
		secret:     cfg.Secret,
		maxElapsed: cfg.MaxElapsed,
		initial:    500 * time.Millisecond,
		http:       cfg.HTTPClient,
		logger:     logger,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.url != ""
}

// Row is the flat record posted to the webhook.
type Row struct {
	Secret       string `json:"secret,omitempty"`
	SubmittedAt  string `json:"submitted_at"`
	LeadID       string `json:"lead_id"`
	Source       string `json:"source"`
	FacilityType string `json:"facility_type"`
	Location     string `json:"location"`
	City         string `json:"city"`
	ZIP          string `json:"zip"`
	Frequency    string `json:"frequency"`
	Name         string `json:"name"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Message      string `json:"message,omitempty"`
	PageURL      string `json:"page_url,omitempty"`
}

// RowFromLead flattens a lead.
func RowFromLead(lead *leads.Lead) Row {
	return Row{
		SubmittedAt:  lead.CreatedAt.UTC().Format(time.RFC3339),
		LeadID:       lead.ID,
		Source:       lead.Source,
		FacilityType: lead.FacilityType,
		Location:     lead.Location,
		City:         lead.City,
		ZIP:          lead.ZIP,
		Frequency:    lead.Frequency,
		Name:         lead.Name,
		Email:        lead.Email,
		Phone:        lead.Phone,
		Message:      lead.Message,
		PageURL:      lead.PageURL,
	}
}

// Forward posts the lead. 4xx responses other than 429 fail immediately;
// 5xx, 429 and transport errors retry with exponential backoff.
func (c *Client) Forward(ctx context.Context, lead *leads.Lead) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if lead == nil {
		return fmt.Errorf("sheets: lead required")
	}

	row := RowFromLead(lead)
	row.Secret = c.secret
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("sheets: marshal row: %w", err)
	}

	ctx, span := tracer.Start(ctx, "sheets.forward")
	defer span.End()
	span.SetAttributes(attribute.String("leadchat.lead_id", lead.ID))

	attempts := 0
	op := func() (struct{}, error) {
		attempts++
		return struct{}{}, c.post(ctx, body)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.initial
	_, err = backoff.Retry(ctx, op,
		backoff.WithBackOff(policy),
		backoff.WithMaxElapsedTime(c.maxElapsed),
		backoff.WithNotify(func(err error, wait time.Duration) {
			c.logger.Warn("sheets webhook retry", "lead_id", lead.ID, "error", err, "wait_ms", wait.Milliseconds())
		}),
	)
	span.SetAttributes(attribute.Int("leadchat.attempts", attempts))
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("sheets: forward lead %s: %w", lead.ID, err)
	}
	c.logger.Info("lead forwarded to sheet", "lead_id", lead.ID, "attempts", attempts)
	return nil
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set("X-Webhook-Secret", c.secret)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		if secs, convErr := strconv.Atoi(resp.Header.Get("Retry-After")); convErr == nil && secs > 0 {
			return backoff.RetryAfter(secs)
		}
		return fmt.Errorf("status %d", resp.StatusCode)
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return backoff.Permanent(fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet))))
	default:
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
}
