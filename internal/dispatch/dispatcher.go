package dispatch

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/facility-lead-chat/internal/archive"
	"github.com/wolfman30/facility-lead-chat/internal/conversation"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/messaging"
	"github.com/wolfman30/facility-lead-chat/internal/notify"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/internal/sheets"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

var tracer = otel.Tracer("leadchat.internal.dispatch")

const (
	archiveTranscriptLimit = 250
	detailAlreadyDelivered = "already delivered"
)

// ErrPersistFailed marks a delivery that stopped before any side effect ran.
var ErrPersistFailed = errors.New("dispatch: persist lead failed")

// LeadWriter stores leads. leads.Repository satisfies it.
type LeadWriter interface {
	Create(ctx context.Context, req *leads.CreateLeadRequest) (*leads.Lead, error)
}

// Forwarder posts a lead to the spreadsheet webhook.
type Forwarder interface {
	Forward(ctx context.Context, lead *leads.Lead) error
}

// Notifier alerts the business about a lead.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead *leads.Lead) error
}

// VisitorTexter sends the scheduling link to the visitor.
type VisitorTexter interface {
	Send(ctx context.Context, lead *leads.Lead) (string, error)
}

// Archiver uploads a lead and its transcript.
type Archiver interface {
	Enabled() bool
	Put(ctx context.Context, lead *leads.Lead, transcript []archive.Message) (string, error)
}

// TranscriptSource reads chat transcripts for archival.
type TranscriptSource interface {
	List(ctx context.Context, sessionID string, limit int64) ([]conversation.TranscriptMessage, error)
}

// Recorder stores per-step outcomes and reads them back so a redelivered
// job does not repeat steps that already went out.
type Recorder interface {
	Record(ctx context.Context, d Delivery) error
	ListForLead(ctx context.Context, leadID string) ([]Delivery, error)
}

// Deps are the collaborators of a Dispatcher. Any of them except Leads may
// be nil, in which case that step is recorded as skipped.
type Deps struct {
	Leads       LeadWriter
	Sheets      Forwarder
	Notifier    Notifier
	VisitorSMS  VisitorTexter
	Archive     Archiver
	Transcripts TranscriptSource
	Log         Recorder
	Metrics     *metrics.DeliveryMetrics
	Logger      *logging.Logger
}

// Result summarizes one Deliver call.
type Result struct {
	LeadID string
	Steps  []Delivery
}

// Status is the overall job outcome: delivered when no step failed,
// partial otherwise.
func (r Result) Status() string {
	for _, step := range r.Steps {
		if step.Status == StatusFailed {
			return "partial"
		}
	}
	return StatusDelivered
}

// Dispatcher runs the delivery pipeline for a lead.
type Dispatcher struct {
	deps   Deps
	logger *logging.Logger
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(deps Deps) (*Dispatcher, error) {
	if deps.Leads == nil {
		return nil, errors.New("dispatch: lead store required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Dispatcher{deps: deps, logger: logger}, nil
}

// Deliver persists the lead, then forwards it to the webhook, notifies the
// business, texts the visitor and archives the transcript. Only a persist
// failure aborts; later failures are logged and recorded per step. Steps the
// log already shows as delivered for this lead are not run again.
func (d *Dispatcher) Deliver(ctx context.Context, lead *leads.Lead) (Result, error) {
	if lead == nil || lead.ID == "" {
		return Result{}, errors.New("dispatch: lead id required")
	}
	ctx, span := tracer.Start(ctx, "dispatch.deliver", trace.WithAttributes(
		attribute.String("leadchat.lead_id", lead.ID),
		attribute.String("leadchat.lead_source", lead.Source),
	))
	defer span.End()

	res := Result{LeadID: lead.ID}
	done := d.deliveredSteps(ctx, lead.ID)

	stored, err := d.deps.Leads.Create(ctx, lead.Request())
	if err != nil {
		d.record(ctx, &res, StepPersist, StatusFailed, err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "persist failed")
		return res, fmt.Errorf("%w: %v", ErrPersistFailed, err)
	}
	d.record(ctx, &res, StepPersist, StatusDelivered, nil)

	if !d.repeat(ctx, &res, done, StepSheets) {
		d.forward(ctx, &res, stored)
	}
	if !d.repeat(ctx, &res, done, StepNotify) {
		d.notify(ctx, &res, stored)
	}
	if !d.repeat(ctx, &res, done, StepVisitorSMS) {
		d.textVisitor(ctx, &res, stored)
	}
	if !d.repeat(ctx, &res, done, StepArchive) {
		d.archive(ctx, &res, stored)
	}

	if res.Status() != StatusDelivered {
		span.SetStatus(codes.Error, "one or more steps failed")
	}
	d.logger.Info("lead delivered", "lead_id", stored.ID, "status", res.Status(), "steps", len(res.Steps))
	return res, nil
}

// deliveredSteps reads the steps already delivered for a lead. A lookup
// failure is logged and treated as a first delivery.
func (d *Dispatcher) deliveredSteps(ctx context.Context, leadID string) map[string]bool {
	done := map[string]bool{}
	if d.deps.Log == nil {
		return done
	}
	history, err := d.deps.Log.ListForLead(ctx, leadID)
	if err != nil {
		d.logger.Warn("delivery history unavailable", "error", err, "lead_id", leadID)
		return done
	}
	for _, entry := range history {
		if entry.Status == StatusDelivered {
			done[entry.Step] = true
		}
	}
	return done
}

// repeat records step as skipped when an earlier attempt delivered it.
func (d *Dispatcher) repeat(ctx context.Context, res *Result, done map[string]bool, step string) bool {
	if !done[step] {
		return false
	}
	d.logger.Info("delivery step already done", "lead_id", res.LeadID, "step", step)
	d.store(ctx, res, Delivery{LeadID: res.LeadID, Step: step, Status: StatusSkipped, Detail: detailAlreadyDelivered})
	return true
}

func (d *Dispatcher) forward(ctx context.Context, res *Result, lead *leads.Lead) {
	if d.deps.Sheets == nil {
		d.record(ctx, res, StepSheets, StatusSkipped, nil)
		return
	}
	err := d.deps.Sheets.Forward(ctx, lead)
	switch {
	case errors.Is(err, sheets.ErrNotConfigured):
		d.record(ctx, res, StepSheets, StatusSkipped, nil)
	case err != nil:
		d.record(ctx, res, StepSheets, StatusFailed, err)
	default:
		d.record(ctx, res, StepSheets, StatusDelivered, nil)
	}
}

func (d *Dispatcher) notify(ctx context.Context, res *Result, lead *leads.Lead) {
	if d.deps.Notifier == nil {
		d.record(ctx, res, StepNotify, StatusSkipped, nil)
		return
	}
	err := d.deps.Notifier.NotifyNewLead(ctx, lead)
	switch {
	case errors.Is(err, notify.ErrNoChannels):
		d.record(ctx, res, StepNotify, StatusSkipped, nil)
	case err != nil:
		d.record(ctx, res, StepNotify, StatusFailed, err)
	default:
		d.record(ctx, res, StepNotify, StatusDelivered, nil)
	}
}

func (d *Dispatcher) textVisitor(ctx context.Context, res *Result, lead *leads.Lead) {
	if d.deps.VisitorSMS == nil {
		d.record(ctx, res, StepVisitorSMS, StatusSkipped, nil)
		return
	}
	_, err := d.deps.VisitorSMS.Send(ctx, lead)
	switch {
	case errors.Is(err, messaging.ErrNoPhone):
		d.record(ctx, res, StepVisitorSMS, StatusSkipped, nil)
	case err != nil:
		d.record(ctx, res, StepVisitorSMS, StatusFailed, err)
	default:
		d.record(ctx, res, StepVisitorSMS, StatusDelivered, nil)
	}
}

func (d *Dispatcher) archive(ctx context.Context, res *Result, lead *leads.Lead) {
	if d.deps.Archive == nil || !d.deps.Archive.Enabled() {
		d.record(ctx, res, StepArchive, StatusSkipped, nil)
		return
	}
	transcript, err := d.transcript(ctx, lead.SessionID)
	if err != nil {
		d.logger.Warn("transcript unavailable for archive", "error", err, "lead_id", lead.ID)
	}
	if _, err := d.deps.Archive.Put(ctx, lead, transcript); err != nil {
		d.record(ctx, res, StepArchive, StatusFailed, err)
		return
	}
	d.record(ctx, res, StepArchive, StatusDelivered, nil)
}

func (d *Dispatcher) transcript(ctx context.Context, sessionID string) ([]archive.Message, error) {
	if d.deps.Transcripts == nil || sessionID == "" {
		return nil, nil
	}
	msgs, err := d.deps.Transcripts.List(ctx, sessionID, archiveTranscriptLimit)
	if err != nil {
		return nil, err
	}
	out := make([]archive.Message, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, archive.Message{
			Role:      m.Role,
			Content:   m.Body,
			Step:      m.Step,
			Timestamp: m.Timestamp,
		})
	}
	return out, nil
}

func (d *Dispatcher) record(ctx context.Context, res *Result, step, status string, cause error) {
	entry := Delivery{LeadID: res.LeadID, Step: step, Status: status}
	if cause != nil {
		entry.Detail = cause.Error()
		d.logger.Error("delivery step failed", "error", cause, "lead_id", res.LeadID, "step", step)
	}
	d.store(ctx, res, entry)
}

func (d *Dispatcher) store(ctx context.Context, res *Result, entry Delivery) {
	res.Steps = append(res.Steps, entry)
	d.deps.Metrics.ObserveStep(entry.Step, entry.Status)

	if d.deps.Log == nil {
		return
	}
	if err := d.deps.Log.Record(context.WithoutCancel(ctx), entry); err != nil {
		d.logger.Warn("failed to record delivery", "error", err, "lead_id", res.LeadID, "step", entry.Step)
	}
}
