package leads

import (
	"strings"
	"time"
)

// Lead sources.
const (
	SourceChat    = "chat"
	SourceWebForm = "web_form"
)

// Lead is a prospective cleaning customer collected by the chat or a web form.
type Lead struct {
	ID           string    `json:"id"`
	SessionID    string    `json:"session_id,omitempty"`
	FacilityType string    `json:"facility_type"`
	Location     string    `json:"location"`
	City         string    `json:"city,omitempty"`
	ZIP          string    `json:"zip,omitempty"`
	Frequency    string    `json:"frequency"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Message      string    `json:"message,omitempty"`
	PageURL      string    `json:"page_url,omitempty"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"created_at"`
}

// CreateLeadRequest represents the request body for creating a lead.
// ID is optional; callers that need idempotent inserts set it up front.
type CreateLeadRequest struct {
	ID           string    `json:"-"`
	SessionID    string    `json:"-"`
	FacilityType string    `json:"facility_type"`
	Location     string    `json:"location"`
	City         string    `json:"city"`
	ZIP          string    `json:"zip"`
	Frequency    string    `json:"frequency"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone"`
	Message      string    `json:"message"`
	PageURL      string    `json:"page_url"`
	Source       string    `json:"source"`
	CreatedAt    time.Time `json:"-"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if strings.TrimSpace(r.Email) == "" && strings.TrimSpace(r.Phone) == "" {
		return ErrMissingContact
	}
	if r.Source == SourceChat && strings.TrimSpace(r.FacilityType) == "" {
		return ErrMissingFacility
	}
	return nil
}

// Request converts a lead back into the request that would recreate it.
func (l *Lead) Request() *CreateLeadRequest {
	return &CreateLeadRequest{
		ID:           l.ID,
		SessionID:    l.SessionID,
		FacilityType: l.FacilityType,
		Location:     l.Location,
		City:         l.City,
		ZIP:          l.ZIP,
		Frequency:    l.Frequency,
		Name:         l.Name,
		Email:        l.Email,
		Phone:        l.Phone,
		Message:      l.Message,
		PageURL:      l.PageURL,
		Source:       l.Source,
		CreatedAt:    l.CreatedAt,
	}
}

func (r *CreateLeadRequest) lead(id string, createdAt time.Time) *Lead {
	return &Lead{
		ID:           id,
		SessionID:    r.SessionID,
		FacilityType: r.FacilityType,
		Location:     r.Location,
		City:         r.City,
		ZIP:          r.ZIP,
		Frequency:    r.Frequency,
		Name:         r.Name,
		Email:        r.Email,
		Phone:        r.Phone,
		Message:      r.Message,
		PageURL:      r.PageURL,
		Source:       r.Source,
		CreatedAt:    createdAt,
	}
}

// FirstName returns the first word of the lead's name.
func (l *Lead) FirstName() string {
	fields := strings.Fields(l.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// ListLeadsFilter narrows List results.
type ListLeadsFilter struct {
	Limit        int
	Offset       int
	FacilityType string
	Since        time.Time
}
