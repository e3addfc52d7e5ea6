package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// ErrNoChannels is returned when every notification channel is disabled.
var ErrNoChannels = errors.New("notify: no channels configured")

// SMSSender sends SMS messages to operators.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Recipients lists who hears about new leads.
type Recipients struct {
	Email []string
	SMS   []string
}

// Service tells the business owner about new leads.
type Service struct {
	profile    *brand.Profile
	push       PushSender
	email      EmailSender
	sms        SMSSender
	recipients Recipients
	logger     *logging.Logger
}

// NewService creates a notification service. Nil senders are skipped.
func NewService(profile *brand.Profile, push PushSender, email EmailSender, sms SMSSender, recipients Recipients, logger *logging.Logger) *Service {
	if profile == nil {
		profile = brand.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		profile:    profile,
		push:       push,
		email:      email,
		sms:        sms,
		recipients: recipients,
		logger:     logger,
	}
}

// Enabled reports whether at least one channel can deliver.
func (s *Service) Enabled() bool {
	return s.push != nil ||
		(s.email != nil && len(s.recipients.Email) > 0) ||
		(s.sms != nil && len(s.recipients.SMS) > 0)
}

// NotifyNewLead sends to every enabled channel. A failing channel does not
// stop the others; all failures are joined into the returned error.
func (s *Service) NotifyNewLead(ctx context.Context, lead *leads.Lead) error {
	if lead == nil {
		return errors.New("notify: lead required")
	}
	if !s.Enabled() {
		return ErrNoChannels
	}

	data := leadTemplateData(lead)
	title := s.profile.RenderOrEmpty(brand.TemplatePushTitle, data)
	summary := s.profile.RenderOrEmpty(brand.TemplatePushBody, data)

	var errs []error

	if s.push != nil {
		err := s.push.Push(ctx, PushMessage{
			Title:    title,
			Message:  summary,
			URL:      lead.PageURL,
			URLTitle: "Page the lead came from",
		})
		if err != nil {
			s.logger.Error("notify: push failed", "error", err, "lead_id", lead.ID)
			errs = append(errs, err)
		}
	}

	if s.email != nil && len(s.recipients.Email) > 0 {
		subject := s.profile.RenderOrEmpty(brand.TemplateEmailSubject, data)
		body := leadEmailText(s.profile, lead)
		htmlBody := leadEmailHTML(s.profile, lead)
		for _, recipient := range s.recipients.Email {
			err := s.email.Send(ctx, EmailMessage{
				To:      recipient,
				ReplyTo: lead.Email,
				Subject: subject,
				Body:    body,
				HTML:    htmlBody,
			})
			if err != nil {
				s.logger.Error("notify: failed to send email", "error", err, "to", recipient, "lead_id", lead.ID)
				errs = append(errs, err)
			}
		}
	}

	if s.sms != nil && len(s.recipients.SMS) > 0 {
		smsBody := title + ". " + summary
		for _, recipient := range s.recipients.SMS {
			if err := s.sms.SendSMS(ctx, recipient, smsBody); err != nil {
				s.logger.Error("notify: failed to send operator SMS", "error", err, "to", recipient, "lead_id", lead.ID)
				errs = append(errs, err)
			}
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	s.logger.Info("notify: new lead notifications sent", "lead_id", lead.ID)
	return nil
}

func leadTemplateData(lead *leads.Lead) brand.TemplateData {
	return brand.TemplateData{
		FirstName:    lead.FirstName(),
		Name:         lead.Name,
		FacilityType: lead.FacilityType,
		City:         lead.City,
		ZIP:          lead.ZIP,
		Location:     lead.Location,
		Frequency:    lead.Frequency,
		Email:        lead.Email,
		Phone:        lead.Phone,
		PageURL:      lead.PageURL,
	}
}

type leadField struct {
	label string
	value string
}

func leadFields(lead *leads.Lead) []leadField {
	fields := []leadField{
		{"Name", lead.Name},
		{"Facility", lead.FacilityType},
		{"Location", lead.Location},
		{"Frequency", lead.Frequency},
		{"Phone", lead.Phone},
		{"Email", lead.Email},
		{"Message", lead.Message},
		{"Source", lead.Source},
		{"Page", lead.PageURL},
	}
	out := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f.value) != "" {
			out = append(out, f)
		}
	}
	return out
}

func leadEmailText(p *brand.Profile, lead *leads.Lead) string {
	var b strings.Builder
	b.WriteString("A new cleaning lead has come in.\n\n")
	for _, f := range leadFields(lead) {
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	fmt.Fprintf(&b, "\nReceived: %s\nLead ID: %s\n\n- %s", lead.CreatedAt.Format("January 2, 2006 at 3:04 PM MST"), lead.ID, p.Name)
	return b.String()
}

func leadEmailHTML(p *brand.Profile, lead *leads.Lead) string {
	var b strings.Builder
	b.WriteString(`<div style="font-family: sans-serif; max-width: 600px;">`)
	fmt.Fprintf(&b, `<h2>New lead: %s</h2><table style="border-collapse: collapse;">`, html.EscapeString(lead.Name))
	for _, f := range leadFields(lead) {
		fmt.Fprintf(&b, `<tr><td style="padding: 6px;"><strong>%s</strong></td><td style="padding: 6px;">%s</td></tr>`,
			html.EscapeString(f.label), html.EscapeString(f.value))
	}
	fmt.Fprintf(&b, `</table><p style="color: #6b7280; font-size: 12px;">%s</p></div>`, html.EscapeString(p.Name))
	return b.String()
}

// StubSMSSender logs instead of sending.
type StubSMSSender struct {
	logger *logging.Logger
}

func NewStubSMSSender(logger *logging.Logger) *StubSMSSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubSMSSender{logger: logger}
}

func (s *StubSMSSender) SendSMS(ctx context.Context, to, body string) error {
	s.logger.Info("stub SMS sender: would send", "to", to, "body_preview", truncate(body, 50))
	return nil
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

var _ SMSSender = (*StubSMSSender)(nil)
