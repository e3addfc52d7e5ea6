package dispatch

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Delivery step names.
const (
	StepPersist    = "persist"
	StepSheets     = "sheets"
	StepNotify     = "notify"
	StepVisitorSMS = "visitor_sms"
	StepArchive    = "archive"
)

// Delivery step outcomes.
const (
	StatusDelivered = "delivered"
	StatusSkipped   = "skipped"
	StatusFailed    = "failed"
)

// Delivery is the outcome of one pipeline step for one lead.
type Delivery struct {
	ID        string    `json:"id"`
	LeadID    string    `json:"lead_id"`
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// DeliveryLog appends step outcomes to the lead_deliveries table.
// A log without a database accepts and discards every record.
type DeliveryLog struct {
	db *sql.DB
}

// NewDeliveryLog creates a delivery log. db may be nil.
func NewDeliveryLog(db *sql.DB) *DeliveryLog {
	return &DeliveryLog{db: db}
}

// Enabled reports whether records are persisted.
func (l *DeliveryLog) Enabled() bool {
	return l != nil && l.db != nil
}

// Record inserts a delivery row.
func (l *DeliveryLog) Record(ctx context.Context, d Delivery) error {
	if !l.Enabled() {
		return nil
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO lead_deliveries (id, lead_id, step, status, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := l.db.ExecContext(ctx, query, d.ID, d.LeadID, d.Step, d.Status, d.Detail, d.CreatedAt); err != nil {
		return fmt.Errorf("dispatch: record delivery: %w", err)
	}
	return nil
}

// ListForLead returns the recorded steps for a lead, oldest first.
func (l *DeliveryLog) ListForLead(ctx context.Context, leadID string) ([]Delivery, error) {
	if !l.Enabled() {
		return []Delivery{}, nil
	}

	query := `
		SELECT id, lead_id, step, status, detail, created_at
		FROM lead_deliveries
		WHERE lead_id = $1
		ORDER BY created_at ASC
	`
	rows, err := l.db.QueryContext(ctx, query, leadID)
	if err != nil {
		return nil, fmt.Errorf("dispatch: list deliveries: %w", err)
	}
	defer rows.Close()

	out := []Delivery{}
	for rows.Next() {
		var d Delivery
		var detail sql.NullString
		if err := rows.Scan(&d.ID, &d.LeadID, &d.Step, &d.Status, &detail, &d.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispatch: scan delivery: %w", err)
		}
		d.Detail = detail.String
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispatch: iterate deliveries: %w", err)
	}
	return out, nil
}
