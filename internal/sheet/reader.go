package sheet

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/mailflow/mailflow/internal/model"
)

// Required column headers in the uploaded workbook. Matching is exact and
// case-sensitive; any other columns are ignored.
const (
	ColumnName  = "Name"
	ColumnEmail = "Email"
)

var (
	// ErrMissingColumns indicates the header row lacks Name or Email.
	ErrMissingColumns = errors.New("workbook must contain 'Name' and 'Email' columns")
	// ErrMalformedFile indicates the upload is not a readable workbook.
	ErrMalformedFile = errors.New("malformed workbook file")
)

// ParseRecipients reads the first sheet of an .xlsx upload into a recipient
// list. Row order is preserved and duplicate emails are kept; each duplicate
// is sent to independently.
func ParseRecipients(r io.Reader) ([]model.Recipient, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrMalformedFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFile, err)
	}
	if len(rows) == 0 {
		return nil, ErrMissingColumns
	}

	nameCol, emailCol := -1, -1
	for i, header := range rows[0] {
		switch strings.TrimSpace(header) {
		case ColumnName:
			if nameCol == -1 {
				nameCol = i
			}
		case ColumnEmail:
			if emailCol == -1 {
				emailCol = i
			}
		}
	}
	if nameCol == -1 || emailCol == -1 {
		return nil, ErrMissingColumns
	}

	var recipients []model.Recipient
	for _, row := range rows[1:] {
		rcpt := model.Recipient{
			Name:  cellAt(row, nameCol),
			Email: cellAt(row, emailCol),
		}
		if rcpt.Name == "" && rcpt.Email == "" {
			continue // trailing blank rows
		}
		recipients = append(recipients, rcpt)
	}
	return recipients, nil
}

// cellAt returns the trimmed cell value, tolerating short rows: excelize
// omits trailing empty cells from GetRows output.
func cellAt(row []string, idx int) string {
	if idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
