package dispatch

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/facility-lead-chat/pkg/logging"
)

// DeliveryLister reads recorded steps for a lead. *DeliveryLog satisfies it.
type DeliveryLister interface {
	ListForLead(ctx context.Context, leadID string) ([]Delivery, error)
}

// AdminHandler exposes the delivery log to operators.
type AdminHandler struct {
	log    DeliveryLister
	logger *logging.Logger
}

func NewAdminHandler(log DeliveryLister, logger *logging.Logger) *AdminHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &AdminHandler{log: log, logger: logger}
}

// ListDeliveries handles GET /admin/leads/{id}/deliveries.
func (h *AdminHandler) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	leadID := strings.TrimSpace(chi.URLParam(r, "id"))
	if leadID == "" {
		http.Error(w, "lead id required", http.StatusBadRequest)
		return
	}
	deliveries, err := h.log.ListForLead(r.Context(), leadID)
	if err != nil {
		h.logger.Error("failed to list deliveries", "error", err, "lead_id", leadID)
		http.Error(w, "failed to list deliveries", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"lead_id":    leadID,
		"deliveries": deliveries,
	})
}
