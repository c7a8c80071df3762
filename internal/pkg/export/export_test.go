package export

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

var table = Table{
	Title:   "Attendance Report",
	Headers: []string{"User ID", "Date", "Lateness"},
	Rows: [][]string{
		{"u-1", "2025-03-10", "late"},
		{"u-2", "2025-03-10", "on_time, barely"},
	},
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, f)

	f, err = ParseFormat("Pdf")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseFormat("docx")
	assert.Error(t, err)
}

func TestWriteCSV(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, FormatCSV, table))

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, table.Headers, records[0])
	assert.Equal(t, "on_time, barely", records[2][2])
}

func TestWriteXLSX(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, FormatXLSX, table))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	title, err := f.GetCellValue(sheetName, "A1")
	require.NoError(t, err)
	assert.Equal(t, "Attendance Report", title)

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, table.Headers, rows[2])
	assert.Equal(t, table.Rows[0], rows[3])
	assert.Equal(t, table.Rows[1], rows[4])
}

func TestWritePDF(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, Write(buf, FormatPDF, table))

	out := buf.Bytes()
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
	assert.Contains(t, string(bytes.TrimSpace(out[len(out)-16:])), "%%EOF")
}

func TestBuildPDF_RepeatsAcrossPages(t *testing.T) {
	long := Table{
		Title:   "Attendance Report",
		Headers: []string{"User ID", "Date", "Address"},
	}
	for i := 0; i < 80; i++ {
		long.Rows = append(long.Rows, []string{
			fmt.Sprintf("u-%d", i),
			"2025-03-10",
			strings.Repeat("Jl. Jenderal Sudirman Kav. 52-53, Jakarta Selatan ", 4),
		})
	}

	pdf, err := buildPDF(long)
	require.NoError(t, err)
	assert.Greater(t, pdf.PageCount(), 2)

	// a short table fits on one page
	pdf, err = buildPDF(table)
	require.NoError(t, err)
	assert.Equal(t, 1, pdf.PageCount())
}

func TestContentType(t *testing.T) {
	assert.Contains(t, FormatCSV.ContentType(), "text/csv")
	assert.Contains(t, FormatXLSX.ContentType(), "spreadsheetml")
	assert.Equal(t, "application/pdf", FormatPDF.ContentType())
}
