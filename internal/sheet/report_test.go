package sheet

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mailflow/mailflow/internal/model"
)

func TestReconcile(t *testing.T) {
	sentAt := time.Date(2026, 8, 27, 14, 30, 5, 0, time.UTC)
	recipients := []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Bo", Email: "bo@example.com"},
		{Name: "Cy", Email: "cy@example.com"},
	}
	log := []model.LogEntry{
		{Email: "ann@example.com", Name: "Ann", Status: model.LogStatusSent, Timestamp: sentAt},
		{Email: "bo@example.com", Name: "Bo", Status: model.LogStatusFailed, Error: "mailbox full", Timestamp: sentAt},
	}

	rows := Reconcile(recipients, log)
	require.Len(t, rows, 3)

	assert.Equal(t, model.ReportRow{
		Name: "Ann", Email: "ann@example.com",
		Status:        model.ReportStatusSent,
		SentTimestamp: "2026-08-27 14:30:05",
	}, rows[0])

	assert.Equal(t, model.ReportStatusFailed, rows[1].Status)
	assert.Equal(t, "mailbox full", rows[1].ErrorDetails)

	// Cy was never attempted: the job stopped before reaching them.
	assert.Equal(t, model.ReportStatusNotSent, rows[2].Status)
	assert.Empty(t, rows[2].ErrorDetails)
	assert.Empty(t, rows[2].SentTimestamp)
}

func TestReconcileEmptyLog(t *testing.T) {
	recipients := []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Bo", Email: "bo@example.com"},
	}

	rows := Reconcile(recipients, nil)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, model.ReportStatusNotProcessed, row.Status)
		assert.Empty(t, row.ErrorDetails)
		assert.Empty(t, row.SentTimestamp)
	}
}

func TestReconcileDuplicateEmailsFirstEntryWins(t *testing.T) {
	recipients := []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Ann again", Email: "ann@example.com"},
	}
	log := []model.LogEntry{
		{Email: "ann@example.com", Status: model.LogStatusFailed, Error: "first"},
		{Email: "ann@example.com", Status: model.LogStatusSent},
	}

	rows := Reconcile(recipients, log)
	require.Len(t, rows, 2)
	assert.Equal(t, model.ReportStatusFailed, rows[0].Status)
	assert.Equal(t, model.ReportStatusFailed, rows[1].Status)
	assert.Equal(t, "first", rows[1].ErrorDetails)
}

func TestReconcileTrimsEmailsForJoin(t *testing.T) {
	recipients := []model.Recipient{{Name: "Ann", Email: "ann@example.com"}}
	log := []model.LogEntry{{Email: "  ann@example.com ", Status: model.LogStatusSent}}

	rows := Reconcile(recipients, log)
	require.Len(t, rows, 1)
	assert.Equal(t, model.ReportStatusSent, rows[0].Status)
}

func TestReconcileIsIdempotent(t *testing.T) {
	recipients := []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Bo", Email: "bo@example.com"},
	}
	log := []model.LogEntry{{Email: "ann@example.com", Status: model.LogStatusSent}}

	first := Reconcile(recipients, log)
	second := Reconcile(recipients, log)
	assert.Equal(t, first, second)
}

func TestWriteReportRoundTrip(t *testing.T) {
	rows := []model.ReportRow{
		{Name: "Ann", Email: "ann@example.com", Status: model.ReportStatusSent, SentTimestamp: "2026-08-27 14:30:05"},
		{Name: "Bo", Email: "bo@example.com", Status: model.ReportStatusFailed, ErrorDetails: "mailbox full", SentTimestamp: "2026-08-27 14:30:25"},
		{Name: "Cy", Email: "cy@example.com", Status: model.ReportStatusNotSent},
	}

	data, err := WriteReport(rows)
	require.NoError(t, err)
	require.NotEmpty(t, data)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	require.Equal(t, []string{ReportSheetName}, f.GetSheetList())

	got, err := f.GetRows(ReportSheetName)
	require.NoError(t, err)
	require.Len(t, got, 4)

	assert.Equal(t, []string{"Name", "Email", "Status", "Error Details", "Sent Timestamp"}, got[0])
	assert.Equal(t, []string{"Ann", "ann@example.com", "Sent", "", "2026-08-27 14:30:05"}, padRow(got[1], 5))
	assert.Equal(t, []string{"Bo", "bo@example.com", "Failed", "mailbox full", "2026-08-27 14:30:25"}, padRow(got[2], 5))
	assert.Equal(t, []string{"Cy", "cy@example.com", "Not Sent", "", ""}, padRow(got[3], 5))
}

func TestWriteReportEmptyRows(t *testing.T) {
	data, err := WriteReport(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(ReportSheetName)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"Name", "Email", "Status", "Error Details", "Sent Timestamp"}, got[0])
}

func TestFormatTimestamp(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "2026-01-02 03:04:05", FormatTimestamp(ts))
}

// padRow extends a row with empty strings; GetRows drops trailing empty cells.
func padRow(row []string, width int) []string {
	for len(row) < width {
		row = append(row, "")
	}
	return row
}
