package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// DefaultPushAPIURL is the Pushover messages endpoint.
const DefaultPushAPIURL = "https://api.pushover.net/1/messages.json"

var pushTracer = otel.Tracer("leadchat.internal.notify.push")

// PushMessage is one push notification.
type PushMessage struct {
	Title    string
	Message  string
	URL      string
	URLTitle string
}

// PushSender delivers push notifications to the business owner's devices.
type PushSender interface {
	Push(ctx context.Context, msg PushMessage) error
}

// PushoverConfig configures PushoverSender.
type PushoverConfig struct {
	APIURL     string
	Token      string
	User       string
	HTTPClient *http.Client
}

// PushoverSender posts to a Pushover-compatible API.
type PushoverSender struct {
	apiURL string
	token  string
	user   string
	http   *http.Client
	logger *logging.Logger
}

// NewPushoverSender returns nil unless both token and user are set.
func NewPushoverSender(cfg PushoverConfig, logger *logging.Logger) *PushoverSender {
	if cfg.Token == "" || cfg.User == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultPushAPIURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &PushoverSender{
		apiURL: cfg.APIURL,
		token:  cfg.Token,
		user:   cfg.User,
		http:   cfg.HTTPClient,
		logger: logger,
	}
}

func (p *PushoverSender) Push(ctx context.Context, msg PushMessage) error {
	if strings.TrimSpace(msg.Message) == "" {
		return fmt.Errorf("notify: push message required")
	}
	ctx, span := pushTracer.Start(ctx, "notify.push.send")
	defer span.End()

	form := url.Values{}
	form.Set("token", p.token)
	form.Set("user", p.user)
	form.Set("message", msg.Message)
	if msg.Title != "" {
		form.Set("title", msg.Title)
	}
	if msg.URL != "" {
		form.Set("url", msg.URL)
		if msg.URLTitle != "" {
			form.Set("url_title", msg.URLTitle)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("notify: build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.http.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("notify: push request failed: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		err := fmt.Errorf("notify: push returned %s", formatPushError(resp.StatusCode, body))
		span.RecordError(err)
		return err
	}
	p.logger.Info("push notification sent", "title", msg.Title)
	return nil
}

func formatPushError(status int, body []byte) string {
	var parsed struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil && len(parsed.Errors) > 0 {
		return fmt.Sprintf("status %d: %s", status, strings.Join(parsed.Errors, "; "))
	}
	return fmt.Sprintf("status %d", status)
}

var _ PushSender = (*PushoverSender)(nil)
