package leads

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

const maxLeadBodyBytes = 16 << 10

// Publisher hands a finished lead to the delivery pipeline.
type Publisher interface {
	Publish(ctx context.Context, lead *Lead) error
}

// Handler handles HTTP requests for leads
type Handler struct {
	repo      Repository
	publisher Publisher
	logger    *logging.Logger
}

// NewHandler creates a new leads handler. A nil publisher stores web leads
// directly without running the delivery pipeline.
func NewHandler(repo Repository, publisher Publisher, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateWebLeadResponse acknowledges a form submission.
type CreateWebLeadResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// CreateWebLead handles POST /leads/web requests
func (h *Handler) CreateWebLead(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxLeadBodyBytes)
	var req CreateLeadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "request body too large", http.StatusRequestEntityTooLarge)
			return
		}
		h.logger.Warn("failed to decode lead request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Source = SourceWebForm
	if err := req.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	lead := req.lead(uuid.New().String(), time.Now().UTC())

	if h.publisher == nil {
		created, err := h.repo.Create(r.Context(), lead.Request())
		if err != nil {
			h.logger.Error("failed to create lead", "error", err)
			http.Error(w, "failed to create lead", http.StatusInternalServerError)
			return
		}
		h.logger.Info("web lead stored", "lead_id", created.ID)
		writeJSON(w, http.StatusCreated, CreateWebLeadResponse{ID: created.ID, Status: "stored"})
		return
	}

	if err := h.publisher.Publish(r.Context(), lead); err != nil {
		h.logger.Error("failed to queue web lead", "error", err, "lead_id", lead.ID)
		http.Error(w, "failed to queue lead", http.StatusServiceUnavailable)
		return
	}
	h.logger.Info("web lead queued", "lead_id", lead.ID)
	writeJSON(w, http.StatusAccepted, CreateWebLeadResponse{ID: lead.ID, Status: "queued"})
}

// ListLeadsResponse is the response for listing leads
type ListLeadsResponse struct {
	Leads  []*Lead `json:"leads"`
	Count  int     `json:"count"`
	Offset int     `json:"offset"`
	Limit  int     `json:"limit"`
}

// ListLeads handles GET /admin/leads requests
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	filter := ListLeadsFilter{
		Limit:  50,
		Offset: 0,
	}

	q := r.URL.Query()
	if limitStr := q.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 && limit <= 100 {
			filter.Limit = limit
		}
	}
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filter.Offset = offset
		}
	}
	filter.FacilityType = strings.TrimSpace(q.Get("facility_type"))
	if since := q.Get("since"); since != "" {
		ts, err := time.Parse(time.RFC3339, since)
		if err != nil {
			http.Error(w, "since must be RFC3339", http.StatusBadRequest)
			return
		}
		filter.Since = ts
	}

	leads, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("failed to list leads", "error", err)
		http.Error(w, "failed to list leads", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, ListLeadsResponse{
		Leads:  leads,
		Count:  len(leads),
		Offset: filter.Offset,
		Limit:  filter.Limit,
	})
}

// GetLead handles GET /admin/leads/{id}.
func (h *Handler) GetLead(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	lead, err := h.repo.GetByID(r.Context(), id)
	if errors.Is(err, ErrLeadNotFound) {
		http.Error(w, "lead not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("failed to load lead", "error", err, "lead_id", id)
		http.Error(w, "failed to load lead", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, lead)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
