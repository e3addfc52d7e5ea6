package archive

import (
	"time"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
)

const recordVersion = "1"

// Record is the document written for each delivered lead.
type Record struct {
	Version      string      `json:"version"`
	LeadID       string      `json:"lead_id"`
	SessionID    string      `json:"session_id,omitempty"`
	PhoneHash    string      `json:"phone_hash,omitempty"`
	ArchivedAt   time.Time   `json:"archived_at"`
	Lead         *leads.Lead `json:"lead"`
	MessageCount int         `json:"message_count"`
	Messages     []Message   `json:"messages"`
}

// Message is one transcript line.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ManifestEntry is one line in the monthly JSONL index.
type ManifestEntry struct {
	LeadID       string `json:"lead_id"`
	S3Key        string `json:"s3_key"`
	FacilityType string `json:"facility_type"`
	Source       string `json:"source"`
	ArchivedAt   string `json:"archived_at"`
	MessageCount int    `json:"message_count"`
}
