package sheet

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/mailflow/mailflow/internal/model"
)

// buildWorkbook serializes rows into a single-sheet .xlsx for parsing tests.
func buildWorkbook(t *testing.T, rows [][]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestParseRecipients(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Name", "Email"},
		{"Ann", "ann@example.com"},
		{"Bo", "bo@example.com"},
	})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []model.Recipient{
		{Name: "Ann", Email: "ann@example.com"},
		{Name: "Bo", Email: "bo@example.com"},
	}, got)
}

func TestParseRecipientsIgnoresExtraColumnsAndTrims(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Company", "Name", "Notes", "Email"},
		{"Acme", "  Ann  ", "vip", " ann@example.com "},
	})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.Recipient{Name: "Ann", Email: "ann@example.com"}, got[0])
}

func TestParseRecipientsKeepsDuplicatesInOrder(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Name", "Email"},
		{"Ann", "ann@example.com"},
		{"Ann again", "ann@example.com"},
		{"Ann", "ann@example.com"},
	})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "Ann again", got[1].Name)
}

func TestParseRecipientsSkipsBlankRows(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Name", "Email"},
		{"Ann", "ann@example.com"},
		{"", ""},
		{"Bo", "bo@example.com"},
	})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "bo@example.com", got[1].Email)
}

func TestParseRecipientsKeepsPartiallyBlankRows(t *testing.T) {
	data := buildWorkbook(t, [][]string{
		{"Name", "Email"},
		{"Ann", ""},
		{"", "bo@example.com"},
	})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, []model.Recipient{
		{Name: "Ann", Email: ""},
		{Name: "", Email: "bo@example.com"},
	}, got)
}

func TestParseRecipientsMissingColumns(t *testing.T) {
	tests := []struct {
		name string
		rows [][]string
	}{
		{"no email column", [][]string{{"Name", "Address"}, {"Ann", "ann@example.com"}}},
		{"no name column", [][]string{{"FullName", "Email"}, {"Ann", "ann@example.com"}}},
		{"case mismatch", [][]string{{"name", "email"}, {"Ann", "ann@example.com"}}},
		{"empty sheet", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWorkbook(t, tt.rows)
			_, err := ParseRecipients(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrMissingColumns)
		})
	}
}

func TestParseRecipientsHeaderOnly(t *testing.T) {
	data := buildWorkbook(t, [][]string{{"Name", "Email"}})

	got, err := ParseRecipients(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseRecipientsMalformedFile(t *testing.T) {
	_, err := ParseRecipients(bytes.NewReader([]byte("this is not a workbook")))
	assert.ErrorIs(t, err, ErrMalformedFile)
}
