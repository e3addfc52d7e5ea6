package dispatch

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
)

// JobKindLeadCreated is the only job kind the worker understands today.
const JobKindLeadCreated = "lead.created"

var errMalformedJob = errors.New("dispatch: malformed job")

// Job is the queue envelope around a lead.
type Job struct {
	ID         string      `json:"id"`
	Kind       string      `json:"kind"`
	Lead       *leads.Lead `json:"lead"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
}

func encodeJob(lead *leads.Lead, now time.Time) (Job, string, error) {
	job := Job{
		ID:         uuid.NewString(),
		Kind:       JobKindLeadCreated,
		Lead:       lead,
		EnqueuedAt: now.UTC(),
	}
	body, err := json.Marshal(job)
	if err != nil {
		return Job{}, "", fmt.Errorf("dispatch: encode job: %w", err)
	}
	return job, string(body), nil
}

func decodeJob(body string) (Job, error) {
	var job Job
	if err := json.Unmarshal([]byte(body), &job); err != nil {
		return Job{}, fmt.Errorf("%w: %v", errMalformedJob, err)
	}
	if job.Kind != JobKindLeadCreated {
		return Job{}, fmt.Errorf("%w: unknown kind %q", errMalformedJob, job.Kind)
	}
	if job.Lead == nil || job.Lead.ID == "" {
		return Job{}, fmt.Errorf("%w: missing lead", errMalformedJob)
	}
	return job, nil
}
