package archive

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
)

func TestHashPhone(t *testing.T) {
	h1 := HashPhone("+17405550123")
	assert.Equal(t, h1, HashPhone("+17405550123"))
	assert.NotEqual(t, h1, HashPhone("+13045550111"))
	assert.Len(t, h1, 64)
	assert.Empty(t, HashPhone(""))
}

func TestScrubPII(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		expect string
	}{
		{"email", "reach me at dana@example.com please", "reach me at [EMAIL] please"},
		{"phone", "call (740) 555-0123", "call[PHONE]"},
		{"phone with plus", "my cell is +17405550123", "my cell is [PHONE]"},
		{"zip kept", "Steubenville, 43952", "Steubenville, 43952"},
		{"name kept", "Dana Reyes", "Dana Reyes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expect, ScrubPII(tt.input))
		})
	}
}

func TestScrubRecordLeavesOriginalLead(t *testing.T) {
	lead := &leads.Lead{ID: "l1", Email: "dana@example.com", Phone: "+17405550123"}
	rec := &Record{Lead: lead, Messages: []Message{{Role: "user", Content: "dana@example.com"}}}

	scrubRecord(rec)

	assert.Equal(t, "[EMAIL]", rec.Lead.Email)
	assert.Equal(t, "[PHONE]", rec.Lead.Phone)
	assert.Equal(t, "[EMAIL]", rec.Messages[0].Content)
	assert.Equal(t, "dana@example.com", lead.Email)
}
