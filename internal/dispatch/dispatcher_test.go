package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/facility-lead-chat/internal/archive"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/messaging"
	"github.com/wolfman30/facility-lead-chat/internal/notify"
	"github.com/wolfman30/facility-lead-chat/internal/sheets"
)

type forwarderFunc func(ctx context.Context, lead *leads.Lead) error

func (f forwarderFunc) Forward(ctx context.Context, lead *leads.Lead) error { return f(ctx, lead) }

type notifierFunc func(ctx context.Context, lead *leads.Lead) error

func (f notifierFunc) NotifyNewLead(ctx context.Context, lead *leads.Lead) error { return f(ctx, lead) }

type texterFunc func(ctx context.Context, lead *leads.Lead) (string, error)

func (f texterFunc) Send(ctx context.Context, lead *leads.Lead) (string, error) { return f(ctx, lead) }

type fakeArchive struct {
	enabled    bool
	err        error
	transcript []archive.Message
	calls      int
}

func (a *fakeArchive) Enabled() bool { return a.enabled }

func (a *fakeArchive) Put(_ context.Context, lead *leads.Lead, transcript []archive.Message) (string, error) {
	a.calls++
	a.transcript = transcript
	if a.err != nil {
		return "", a.err
	}
	return archive.Key(lead), nil
}

type memoryRecorder struct {
	mu      sync.Mutex
	entries []Delivery
}

func (r *memoryRecorder) Record(_ context.Context, d Delivery) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, d)
	return nil
}

func (r *memoryRecorder) ListForLead(_ context.Context, leadID string) ([]Delivery, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Delivery{}
	for _, d := range r.entries {
		if d.LeadID == leadID {
			out = append(out, d)
		}
	}
	return out, nil
}

type failingLeads struct{}

func (failingLeads) Create(context.Context, *leads.CreateLeadRequest) (*leads.Lead, error) {
	return nil, errors.New("database unavailable")
}

func stepStatuses(res Result) map[string]string {
	out := make(map[string]string, len(res.Steps))
	for _, s := range res.Steps {
		out[s.Step] = s.Status
	}
	return out
}

func TestDeliverRunsEveryStep(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	transcripts := conversation.NewMemoryTranscriptStore()
	ctx := context.Background()
	require.NoError(t, transcripts.Append(ctx, "sess-l1", conversation.TranscriptMessage{Role: "assistant", Body: "What type of facility is this?"}))
	require.NoError(t, transcripts.Append(ctx, "sess-l1", conversation.TranscriptMessage{Role: "user", Body: "Bank", Step: "facility_type"}))

	var order []string
	arch := &fakeArchive{enabled: true}
	recorder := &memoryRecorder{}
	d, err := NewDispatcher(Deps{
		Leads: repo,
		Sheets: forwarderFunc(func(context.Context, *leads.Lead) error {
			order = append(order, StepSheets)
			return nil
		}),
		Notifier: notifierFunc(func(context.Context, *leads.Lead) error {
			order = append(order, StepNotify)
			return nil
		}),
		VisitorSMS: texterFunc(func(context.Context, *leads.Lead) (string, error) {
			order = append(order, StepVisitorSMS)
			return "SM1", nil
		}),
		Archive:     arch,
		Transcripts: transcripts,
		Log:         recorder,
	})
	require.NoError(t, err)

	res, err := d.Deliver(ctx, sampleLead("l1"))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, res.Status())
	assert.Equal(t, []string{StepSheets, StepNotify, StepVisitorSMS}, order)
	assert.Len(t, recorder.entries, 5)

	stored, err := repo.GetByID(ctx, "l1")
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", stored.Name)

	require.Len(t, arch.transcript, 2)
	assert.Equal(t, "Bank", arch.transcript[1].Content)
	assert.Equal(t, "facility_type", arch.transcript[1].Step)
}

func TestDeliverContinuesPastFailures(t *testing.T) {
	d, err := NewDispatcher(Deps{
		Leads: leads.NewInMemoryRepository(),
		Sheets: forwarderFunc(func(context.Context, *leads.Lead) error {
			return errors.New("webhook 500")
		}),
		Notifier: notifierFunc(func(context.Context, *leads.Lead) error {
			return errors.Join(errors.New("push failed"))
		}),
		VisitorSMS: texterFunc(func(context.Context, *leads.Lead) (string, error) {
			return "SM2", nil
		}),
		Archive: &fakeArchive{enabled: true, err: errors.New("s3 down")},
	})
	require.NoError(t, err)

	res, err := d.Deliver(context.Background(), sampleLead("l2"))
	require.NoError(t, err)
	assert.Equal(t, "partial", res.Status())
	statuses := stepStatuses(res)
	assert.Equal(t, StatusDelivered, statuses[StepPersist])
	assert.Equal(t, StatusFailed, statuses[StepSheets])
	assert.Equal(t, StatusFailed, statuses[StepNotify])
	assert.Equal(t, StatusDelivered, statuses[StepVisitorSMS])
	assert.Equal(t, StatusFailed, statuses[StepArchive])
}

func TestDeliverRecordsSkippedSteps(t *testing.T) {
	d, err := NewDispatcher(Deps{
		Leads: leads.NewInMemoryRepository(),
		Sheets: forwarderFunc(func(context.Context, *leads.Lead) error {
			return sheets.ErrNotConfigured
		}),
		Notifier: notifierFunc(func(context.Context, *leads.Lead) error {
			return notify.ErrNoChannels
		}),
		VisitorSMS: texterFunc(func(context.Context, *leads.Lead) (string, error) {
			return "", messaging.ErrNoPhone
		}),
		Archive: &fakeArchive{enabled: false},
	})
	require.NoError(t, err)

	res, err := d.Deliver(context.Background(), sampleLead("l3"))
	require.NoError(t, err)
	assert.Equal(t, StatusDelivered, res.Status())
	for _, step := range []string{StepSheets, StepNotify, StepVisitorSMS, StepArchive} {
		assert.Equal(t, StatusSkipped, stepStatuses(res)[step], step)
	}
}

func TestDeliverAbortsWhenPersistFails(t *testing.T) {
	forwarded := false
	recorder := &memoryRecorder{}
	d, err := NewDispatcher(Deps{
		Leads: failingLeads{},
		Sheets: forwarderFunc(func(context.Context, *leads.Lead) error {
			forwarded = true
			return nil
		}),
		Log: recorder,
	})
	require.NoError(t, err)

	res, err := d.Deliver(context.Background(), sampleLead("l4"))
	assert.ErrorIs(t, err, ErrPersistFailed)
	assert.False(t, forwarded)
	require.Len(t, recorder.entries, 1)
	assert.Equal(t, StatusFailed, recorder.entries[0].Status)
	assert.Contains(t, recorder.entries[0].Detail, "database unavailable")
	assert.Len(t, res.Steps, 1)
}

func TestDeliverIsIdempotentOnLeadID(t *testing.T) {
	repo := leads.NewInMemoryRepository()
	d, err := NewDispatcher(Deps{Leads: repo})
	require.NoError(t, err)

	_, err = d.Deliver(context.Background(), sampleLead("l5"))
	require.NoError(t, err)
	_, err = d.Deliver(context.Background(), sampleLead("l5"))
	require.NoError(t, err)

	all, err := repo.List(context.Background(), leads.ListLeadsFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestRedeliverySkipsStepsAlreadyDelivered(t *testing.T) {
	calls := map[string]int{}
	sheetsErr := errors.New("webhook 500")
	recorder := &memoryRecorder{}
	d, err := NewDispatcher(Deps{
		Leads: leads.NewInMemoryRepository(),
		Sheets: forwarderFunc(func(context.Context, *leads.Lead) error {
			calls[StepSheets]++
			return sheetsErr
		}),
		Notifier: notifierFunc(func(context.Context, *leads.Lead) error {
			calls[StepNotify]++
			return nil
		}),
		VisitorSMS: texterFunc(func(context.Context, *leads.Lead) (string, error) {
			calls[StepVisitorSMS]++
			return "SM3", nil
		}),
		Log: recorder,
	})
	require.NoError(t, err)

	_, err = d.Deliver(context.Background(), sampleLead("l6"))
	require.NoError(t, err)

	sheetsErr = nil
	res, err := d.Deliver(context.Background(), sampleLead("l6"))
	require.NoError(t, err)

	assert.Equal(t, map[string]int{StepSheets: 2, StepNotify: 1, StepVisitorSMS: 1}, calls)
	statuses := stepStatuses(res)
	assert.Equal(t, StatusDelivered, statuses[StepSheets])
	assert.Equal(t, StatusSkipped, statuses[StepNotify])
	assert.Equal(t, StatusSkipped, statuses[StepVisitorSMS])
	for _, step := range res.Steps {
		if step.Step == StepNotify {
			assert.Equal(t, "already delivered", step.Detail)
		}
	}
}

func TestNewDispatcherRequiresLeadStore(t *testing.T) {
	_, err := NewDispatcher(Deps{})
	assert.Error(t, err)
}
