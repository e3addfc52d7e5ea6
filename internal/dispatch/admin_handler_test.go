package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	deliveries []Delivery
	err        error
}

func (s stubLister) ListForLead(_ context.Context, leadID string) ([]Delivery, error) {
	return s.deliveries, s.err
}

func serveDeliveries(h *AdminHandler, path string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/admin/leads/{id}/deliveries", h.ListDeliveries)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestAdminHandlerListDeliveries(t *testing.T) {
	h := NewAdminHandler(stubLister{deliveries: []Delivery{
		{LeadID: "lead-1", Step: StepPersist, Status: StatusDelivered},
		{LeadID: "lead-1", Step: StepSheets, Status: StatusSkipped},
	}}, nil)

	rec := serveDeliveries(h, "/admin/leads/lead-1/deliveries")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		LeadID     string     `json:"lead_id"`
		Deliveries []Delivery `json:"deliveries"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "lead-1", body.LeadID)
	assert.Len(t, body.Deliveries, 2)
}

func TestAdminHandlerListDeliveriesError(t *testing.T) {
	h := NewAdminHandler(stubLister{err: errors.New("db down")}, nil)
	rec := serveDeliveries(h, "/admin/leads/lead-1/deliveries")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
