package sheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mailflow/mailflow/internal/model"
)

// ReportSheetName is the single sheet of the results workbook.
const ReportSheetName = "Email Results"

// reportTimestampFormat is the fixed wall-clock pattern for the
// "Sent Timestamp" column.
const reportTimestampFormat = "2006-01-02 15:04:05"

var reportHeader = []string{"Name", "Email", "Status", "Error Details", "Sent Timestamp"}

// Reconcile joins the original recipient list against the delivery log,
// producing one report row per recipient in upload order. The join is a
// case-sensitive exact match on trimmed email; when duplicates exist the
// first log entry wins. An empty log marks every row "Not Processed" to
// distinguish a job that never attempted a send from one that skipped rows.
func Reconcile(recipients []model.Recipient, log []model.LogEntry) []model.ReportRow {
	rows := make([]model.ReportRow, 0, len(recipients))

	if len(log) == 0 {
		for _, rcpt := range recipients {
			rows = append(rows, model.ReportRow{
				Name:   rcpt.Name,
				Email:  rcpt.Email,
				Status: model.ReportStatusNotProcessed,
			})
		}
		return rows
	}

	for _, rcpt := range recipients {
		row := model.ReportRow{
			Name:   rcpt.Name,
			Email:  rcpt.Email,
			Status: model.ReportStatusNotSent,
		}
		if entry := firstByEmail(log, rcpt.Email); entry != nil {
			switch entry.Status {
			case model.LogStatusSent:
				row.Status = model.ReportStatusSent
			case model.LogStatusFailed:
				row.Status = model.ReportStatusFailed
			}
			row.ErrorDetails = entry.Error
			row.SentTimestamp = entry.Timestamp.Format(reportTimestampFormat)
		}
		rows = append(rows, row)
	}
	return rows
}

func firstByEmail(log []model.LogEntry, email string) *model.LogEntry {
	want := strings.TrimSpace(email)
	for i := range log {
		if strings.TrimSpace(log[i].Email) == want {
			return &log[i]
		}
	}
	return nil
}

// WriteReport renders report rows into an .xlsx workbook with a header row,
// preserving row order.
func WriteReport(rows []model.ReportRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", ReportSheetName); err != nil {
		return nil, fmt.Errorf("failed to name report sheet: %w", err)
	}

	for col, title := range reportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return nil, fmt.Errorf("failed to address header cell: %w", err)
		}
		if err := f.SetCellValue(ReportSheetName, cell, title); err != nil {
			return nil, fmt.Errorf("failed to write header cell: %w", err)
		}
	}

	for i, row := range rows {
		values := []string{row.Name, row.Email, row.Status, row.ErrorDetails, row.SentTimestamp}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return nil, fmt.Errorf("failed to address report cell: %w", err)
			}
			if err := f.SetCellValue(ReportSheetName, cell, value); err != nil {
				return nil, fmt.Errorf("failed to write report cell: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to serialize report workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// FormatTimestamp formats a delivery timestamp the way the report does.
// Exposed for the JSON log endpoint so both surfaces agree.
func FormatTimestamp(t time.Time) string {
	return t.Format(reportTimestampFormat)
}
