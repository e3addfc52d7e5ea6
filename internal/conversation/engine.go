package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/wolfman30/facility-lead-chat/internal/intake"
	"github.com/wolfman30/facility-lead-chat/internal/leads"
	"github.com/wolfman30/facility-lead-chat/internal/observability/metrics"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// ErrPublishFailed means the completed lead could not be queued. The session
// is left on the phone step so the visitor can resend.
var ErrPublishFailed = errors.New("conversation: lead could not be queued")

// ChatRequest is one widget round trip. Messages is the whole visitor
// transcript; only the last user message is new.
type ChatRequest struct {
	SessionID string
	Messages  []ChatMessage
	PageURL   string
}

// ChatResponse is what the widget renders.
type ChatResponse struct {
	Reply        string   `json:"reply"`
	QuickReplies []string `json:"quick_replies"`
	SessionID    string   `json:"session_id"`
	Step         string   `json:"step"`
	Complete     bool     `json:"complete"`
	BookingURL   string   `json:"booking_url,omitempty"`
	LeadID       string   `json:"lead_id,omitempty"`
}

// EngineDeps wires the engine. Nil stores fall back to in-memory ones.
type EngineDeps struct {
	Sessions    SessionStore
	Transcripts TranscriptStore
	Answerer    *Answerer
	Publisher   leads.Publisher
	Metrics     *metrics.ChatMetrics
	Logger      *logging.Logger
}

// Engine runs the scripted intake for widget sessions.
type Engine struct {
	machine     *intake.Machine
	sessions    SessionStore
	transcripts TranscriptStore
	answerer    *Answerer
	publisher   leads.Publisher
	metrics     *metrics.ChatMetrics
	logger      *logging.Logger
}

func NewEngine(machine *intake.Machine, deps EngineDeps) *Engine {
	if machine == nil {
		machine = intake.NewMachine(nil)
	}
	if deps.Sessions == nil {
		deps.Sessions = NewMemorySessionStore(DefaultSessionTTL)
	}
	if deps.Transcripts == nil {
		deps.Transcripts = NewMemoryTranscriptStore()
	}
	if deps.Answerer == nil {
		deps.Answerer = NewAnswerer(nil, AnswererConfig{}, deps.Logger)
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &Engine{
		machine:     machine,
		sessions:    deps.Sessions,
		transcripts: deps.Transcripts,
		answerer:    deps.Answerer,
		publisher:   deps.Publisher,
		metrics:     deps.Metrics,
		logger:      deps.Logger,
	}
}

// Machine exposes the intake machine the engine drives.
func (e *Engine) Machine() *intake.Machine {
	return e.machine
}

// Reply processes the newest user message of req.
func (e *Engine) Reply(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	userInputs := userMessages(req.Messages)

	session, stored := e.loadSession(ctx, sessionID)
	if req.PageURL != "" {
		session.PageURL = req.PageURL
	}

	if len(userInputs) == 0 {
		return e.open(ctx, session, stored)
	}

	input := userInputs[len(userInputs)-1]
	if !stored {
		session.State = e.machine.Replay(userInputs[:len(userInputs)-1])
	}

	next, turn := e.machine.Advance(session.State, input)
	reply := turn.Text
	if turn.Question {
		history := req.Messages
		if len(history) <= 1 {
			history = e.history(ctx, sessionID)
		}
		answer := e.answerer.Answer(ctx, e.machine.Profile(), history, input)
		reply = answer + "\n\n" + turn.Text
	}

	if turn.Completed {
		leadID, err := e.publish(ctx, session, next)
		if err != nil {
			e.metrics.ObserveTurn(string(session.State.Step), "publish_failed")
			return ChatResponse{}, err
		}
		session.LeadID = leadID
		e.metrics.ObserveCompleted(next.Answers.FacilityType)
	}

	e.appendTranscript(ctx, sessionID, TranscriptMessage{Role: transcriptRoleVisitor, Body: input, Step: string(session.State.Step)})
	e.appendTranscript(ctx, sessionID, TranscriptMessage{Role: transcriptRoleBot, Body: reply, Step: string(turn.Step)})

	e.metrics.ObserveTurn(string(session.State.Step), turnOutcome(turn))
	session.State = next
	if err := e.sessions.Save(ctx, session); err != nil {
		// The widget resends the full transcript, so replay recovers state.
		e.logger.Warn("failed to save chat session", "error", err, "session_id", sessionID)
	}

	return e.response(session, reply, turn.QuickReplies), nil
}

// History returns the stored transcript for a session.
func (e *Engine) History(ctx context.Context, sessionID string, limit int64) ([]TranscriptMessage, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, errors.New("conversation: session id required")
	}
	return e.transcripts.List(ctx, sessionID, limit)
}

func (e *Engine) open(ctx context.Context, session *Session, stored bool) (ChatResponse, error) {
	turn := e.machine.Greeting()
	if stored && session.State.Step != intake.StepFacilityType {
		turn = e.machine.Prompt(session.State)
	}
	if !stored {
		e.appendTranscript(ctx, session.ID, TranscriptMessage{Role: transcriptRoleBot, Body: turn.Text, Step: string(turn.Step)})
		if err := e.sessions.Save(ctx, session); err != nil {
			e.logger.Warn("failed to save chat session", "error", err, "session_id", session.ID)
		}
	}
	e.metrics.ObserveTurn(string(turn.Step), "greeting")
	return e.response(session, turn.Text, turn.QuickReplies), nil
}

func (e *Engine) loadSession(ctx context.Context, id string) (*Session, bool) {
	session, err := e.sessions.Get(ctx, id)
	if err == nil {
		return session, true
	}
	if !errors.Is(err, ErrSessionNotFound) {
		e.logger.Warn("failed to load chat session, replaying transcript", "error", err, "session_id", id)
	}
	return &Session{ID: id, State: intake.NewState()}, false
}

func (e *Engine) publish(ctx context.Context, session *Session, state intake.State) (string, error) {
	if session.LeadID != "" {
		return session.LeadID, nil
	}
	claimed, err := e.sessions.ClaimPublish(ctx, session.ID)
	if err != nil {
		e.logger.Error("failed to claim lead publish", "error", err, "session_id", session.ID)
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	if !claimed {
		e.logger.Info("lead already published for session", "session_id", session.ID)
		return "", nil
	}

	lead := LeadFromState(session.ID, session.PageURL, state)
	if e.publisher == nil {
		e.logger.Warn("no lead publisher configured, dropping lead", "session_id", session.ID, "lead_id", lead.ID)
		return lead.ID, nil
	}
	if err := e.publisher.Publish(ctx, lead); err != nil {
		if relErr := e.sessions.ReleasePublish(ctx, session.ID); relErr != nil {
			e.logger.Warn("failed to release publish claim", "error", relErr, "session_id", session.ID)
		}
		e.logger.Error("failed to publish lead", "error", err, "session_id", session.ID, "lead_id", lead.ID)
		return "", fmt.Errorf("%w: %v", ErrPublishFailed, err)
	}
	e.logger.Info("lead published", "session_id", session.ID, "lead_id", lead.ID, "facility_type", lead.FacilityType)
	return lead.ID, nil
}

func (e *Engine) history(ctx context.Context, sessionID string) []ChatMessage {
	msgs, err := e.transcripts.List(ctx, sessionID, maxHistoryMessages)
	if err != nil {
		e.logger.Warn("failed to load transcript", "error", err, "session_id", sessionID)
		return nil
	}
	return ToChatMessages(msgs)
}

func (e *Engine) appendTranscript(ctx context.Context, sessionID string, msg TranscriptMessage) {
	if err := e.transcripts.Append(ctx, sessionID, msg); err != nil {
		e.logger.Warn("failed to append transcript", "error", err, "session_id", sessionID)
	}
}

func (e *Engine) response(session *Session, reply string, quick []string) ChatResponse {
	if quick == nil {
		quick = []string{}
	}
	resp := ChatResponse{
		Reply:        reply,
		QuickReplies: quick,
		SessionID:    session.ID,
		Step:         string(session.State.Step),
		Complete:     session.State.Complete(),
		LeadID:       session.LeadID,
	}
	if resp.Complete {
		resp.BookingURL = e.machine.Profile().BookingURL
	}
	return resp
}

// LeadFromState builds the chat lead for a completed intake.
func LeadFromState(sessionID, pageURL string, state intake.State) *leads.Lead {
	a := state.Answers
	return &leads.Lead{
		ID:           uuid.NewString(),
		SessionID:    sessionID,
		FacilityType: a.FacilityType,
		Location:     a.Location,
		City:         a.City,
		ZIP:          a.ZIP,
		Frequency:    a.Frequency,
		Name:         a.Name,
		Email:        a.Email,
		Phone:        a.Phone,
		PageURL:      pageURL,
		Source:       leads.SourceChat,
		CreatedAt:    time.Now().UTC(),
	}
}

func userMessages(msgs []ChatMessage) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == ChatRoleUser {
			out = append(out, m.Content)
		}
	}
	return out
}

func turnOutcome(turn intake.Turn) string {
	switch {
	case turn.Completed:
		return "completed"
	case turn.Restarted:
		return "restarted"
	case turn.Question:
		return "question"
	case turn.Invalid:
		return "invalid"
	default:
		return "answered"
	}
}
