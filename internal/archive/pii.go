package archive

import (
	"crypto/sha256"
	"fmt"
	"regexp"
)

var (
	emailRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phoneRe = regexp.MustCompile(`\+?1?[-.\s]?\(?[0-9]{3}\)?[-.\s]?[0-9]{3}[-.\s]?[0-9]{4}`)
)

// HashPhone returns the hex-encoded SHA-256 hash of a phone number.
func HashPhone(phone string) string {
	if phone == "" {
		return ""
	}
	h := sha256.Sum256([]byte(phone))
	return fmt.Sprintf("%x", h)
}

// ScrubPII replaces emails with [EMAIL] and phone numbers with [PHONE].
func ScrubPII(text string) string {
	text = emailRe.ReplaceAllString(text, "[EMAIL]")
	return phoneRe.ReplaceAllString(text, "[PHONE]")
}

// scrubRecord removes contact details from a record in place.
func scrubRecord(rec *Record) {
	for i := range rec.Messages {
		rec.Messages[i].Content = ScrubPII(rec.Messages[i].Content)
	}
	if rec.Lead != nil {
		lead := *rec.Lead
		if lead.Email != "" {
			lead.Email = "[EMAIL]"
		}
		if lead.Phone != "" {
			lead.Phone = "[PHONE]"
		}
		rec.Lead = &lead
	}
}
