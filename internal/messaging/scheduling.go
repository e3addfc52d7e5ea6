package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wolfman30/facility-lead-chat/internal/brand"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// ErrNoPhone is returned when the lead left no phone number to text.
var ErrNoPhone = errors.New("messaging: lead has no phone number")

// Sender sends one SMS and returns the provider message ID.
type Sender interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// SchedulingLink texts visitors the booking link after they finish the chat.
type SchedulingLink struct {
	profile *brand.Profile
	sender  Sender
	logger  *logging.Logger
}

func NewSchedulingLink(profile *brand.Profile, sender Sender, logger *logging.Logger) *SchedulingLink {
	if profile == nil {
		profile = brand.Default()
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &SchedulingLink{profile: profile, sender: sender, logger: logger}
}

// Text renders the visitor SMS for lead.
func (s *SchedulingLink) Text(lead *leads.Lead) (string, error) {
	return s.profile.Render(brand.TemplateVisitorSMS, brand.TemplateData{
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
	})
}

// Send texts the booking link to the lead's phone.
func (s *SchedulingLink) Send(ctx context.Context, lead *leads.Lead) (string, error) {
	if lead == nil {
		return "", errors.New("messaging: lead required")
	}
	if strings.TrimSpace(lead.Phone) == "" {
		return "", ErrNoPhone
	}
	if s.sender == nil {
		return "", errors.New("messaging: sms sender not configured")
	}
	body, err := s.Text(lead)
	if err != nil {
		return "", fmt.Errorf("messaging: render visitor sms: %w", err)
	}
	sid, err := s.sender.Send(ctx, lead.Phone, body)
	if err != nil {
		return "", err
	}
	s.logger.Info("scheduling link sent", "lead_id", lead.ID, "sid", sid)
	return sid, nil
}
