package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeliveryLogRecord(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	log := NewDeliveryLog(db)
	mock.ExpectExec("INSERT INTO lead_deliveries").
		WithArgs(sqlmock.AnyArg(), "lead-1", StepSheets, StatusFailed, "webhook down", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = log.Record(context.Background(), Delivery{LeadID: "lead-1", Step: StepSheets, Status: StatusFailed, Detail: "webhook down"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogRecordError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO lead_deliveries").WillReturnError(errors.New("connection reset"))
	err = NewDeliveryLog(db).Record(context.Background(), Delivery{LeadID: "lead-1", Step: StepPersist, Status: StatusDelivered})
	assert.ErrorContains(t, err, "connection reset")
}

func TestDeliveryLogListForLead(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ts := time.Date(2026, 3, 9, 12, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "lead_id", "step", "status", "detail", "created_at"}).
		AddRow("d1", "lead-1", StepPersist, StatusDelivered, nil, ts).
		AddRow("d2", "lead-1", StepSheets, StatusFailed, "timeout", ts.Add(time.Second))
	mock.ExpectQuery("SELECT id, lead_id, step, status, detail, created_at").
		WithArgs("lead-1").
		WillReturnRows(rows)

	out, err := NewDeliveryLog(db).ListForLead(context.Background(), "lead-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Empty(t, out[0].Detail)
	assert.Equal(t, "timeout", out[1].Detail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeliveryLogWithoutDatabase(t *testing.T) {
	log := NewDeliveryLog(nil)
	assert.False(t, log.Enabled())
	assert.NoError(t, log.Record(context.Background(), Delivery{LeadID: "x"}))
	out, err := log.ListForLead(context.Background(), "x")
	require.NoError(t, err)
	assert.Empty(t, out)
}
