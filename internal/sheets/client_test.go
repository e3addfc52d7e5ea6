package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wolfman30/facility-lead-chat/internal/leads"
)

func testLead() *leads.Lead {
	return &leads.Lead{
		ID:           "lead-1",
		FacilityType: "Office",
		Location:     "Steubenville, 43952",
		City:         "Steubenville",
		ZIP:          "43952",
		Frequency:    "Weekly",
		Name:         "Dana Reyes",
		Email:        "dana@example.com",
		Phone:        "+17405550123",
		Source:       leads.SourceChat,
		CreatedAt:    time.Date(2026, 5, 1, 15, 0, 0, 0, time.UTC),
	}
}

func newTestClient(url string) *Client {
	c := NewClient(Config{URL: url, Secret: "s3cret", MaxElapsed: 2 * time.Second}, nil)
	c.initial = time.Millisecond
	return c
}

func TestForwardPostsRow(t *testing.T) {
	var got Row
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "s3cret", r.Header.Get("X-Webhook-Secret"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).Forward(context.Background(), testLead()))
	assert.Equal(t, "lead-1", got.LeadID)
	assert.Equal(t, "s3cret", got.Secret)
	assert.Equal(t, "2026-05-01T15:00:00Z", got.SubmittedAt)
	assert.Equal(t, "43952", got.ZIP)
}

func TestForwardRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).Forward(context.Background(), testLead()))
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestForwardDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad secret", http.StatusForbidden)
	}))
	defer srv.Close()

	err := newTestClient(srv.URL).Forward(context.Background(), testLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestForwardRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, newTestClient(srv.URL).Forward(context.Background(), testLead()))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestForwardGivesUpAfterBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.maxElapsed = 50 * time.Millisecond
	err := c.Forward(context.Background(), testLead())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 503")
}

func TestForwardNotConfigured(t *testing.T) {
	c := NewClient(Config{}, nil)
	assert.False(t, c.Enabled())
	assert.ErrorIs(t, c.Forward(context.Background(), testLead()), ErrNotConfigured)
}
