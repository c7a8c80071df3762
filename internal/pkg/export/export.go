// Package export encodes tabular reports as CSV, XLSX or PDF.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"
)

// Format is a report file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
	FormatPDF  Format = "pdf"
)

// ParseFormat accepts "csv", "xlsx" or "pdf" in any case.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX, FormatPDF:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

func (f Format) ContentType() string {
	switch f {
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case FormatPDF:
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is a titled header plus rows.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Write encodes t in format f.
func Write(w io.Writer, f Format, t Table) error {
	switch f {
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatXLSX:
		return WriteXLSX(w, t)
	case FormatPDF:
		return WritePDF(w, t)
	}
	return fmt.Errorf("unsupported export format %q", f)
}

// WriteCSV writes the header row followed by every data row. The title is not written.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

const sheetName = "Attendance"

// WriteXLSX writes a single sheet: a merged title row, a styled header row at row 3, then data.
func WriteXLSX(w io.Writer, t Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11, Color: "#FFFFFF"},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	titleStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true, Size: 14},
	})
	if err != nil {
		return fmt.Errorf("failed to create title style: %w", err)
	}

	cols := max(len(t.Headers), 1)
	lastCol, err := excelize.ColumnNumberToName(cols)
	if err != nil {
		return err
	}

	// Title
	if err := f.SetCellValue(sheetName, "A1", t.Title); err != nil {
		return err
	}
	if cols > 1 {
		if err := f.MergeCell(sheetName, "A1", lastCol+"1"); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(sheetName, "A1", lastCol+"1", titleStyle); err != nil {
		return err
	}

	// Table headers
	headerCell, _ := excelize.CoordinatesToCellName(1, 3)
	if err := f.SetSheetRow(sheetName, headerCell, &t.Headers); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}
	if err := f.SetCellStyle(sheetName, headerCell, lastCol+"3", headerStyle); err != nil {
		return err
	}

	widths := make([]int, cols)
	for i, h := range t.Headers {
		widths[i] = len(h)
	}

	for i, row := range t.Rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+4)
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return fmt.Errorf("failed to write xlsx row %d: %w", i+1, err)
		}
		for j, v := range row {
			if j < cols {
				widths[j] = max(widths[j], len(v))
			}
		}
	}

	// Auto-fit columns
	for i, width := range widths {
		col, _ := excelize.ColumnNumberToName(i + 1)
		if err := f.SetColWidth(sheetName, col, col, float64(min(width+2, 60))); err != nil {
			return err
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      3,
		TopLeftCell: "A4",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return err
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

const (
	pdfMargin       = 10.0
	pdfFooterMargin = 15.0
	pdfRowHeight    = 7.0
	pdfMaxColWidth  = 70.0
)

// WritePDF renders t as a landscape A4 table. The header row repeats on every page
// and cells that do not fit their column are truncated.
func WritePDF(w io.Writer, t Table) error {
	pdf, err := buildPDF(t)
	if err != nil {
		return err
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("failed to write pdf: %w", err)
	}
	return nil
}

func buildPDF(t Table) (*gofpdf.Fpdf, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfFooterMargin)
	pdf.AliasNbPages("")

	// core fonts are cp1252; names and addresses arrive as UTF-8
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFooterFunc(func() {
		pdf.SetY(-pdfFooterMargin)
		pdf.SetFont("Arial", "I", 8)
		pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()

	// Title
	pdf.SetFont("Arial", "B", 14)
	pdf.CellFormat(0, 10, tr(t.Title), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	pageW, pageH := pdf.GetPageSize()
	widths := pdfColumnWidths(pdf, t, pageW-2*pdfMargin)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		pdf.SetFillColor(68, 114, 196)
		pdf.SetTextColor(255, 255, 255)
		for i, h := range t.Headers {
			pdf.CellFormat(widths[i], pdfRowHeight, fitText(pdf, tr(h), widths[i]), "1", 0, "C", true, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
		pdf.SetTextColor(0, 0, 0)
	}
	header()

	for _, row := range t.Rows {
		if pdf.GetY()+pdfRowHeight > pageH-pdfFooterMargin {
			pdf.AddPage()
			header()
		}
		for i := range widths {
			var v string
			if i < len(row) {
				v = tr(row[i])
			}
			pdf.CellFormat(widths[i], pdfRowHeight, fitText(pdf, v, widths[i]), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("failed to render pdf: %w", err)
	}
	return pdf, nil
}

// pdfColumnWidths sizes columns by their widest header or cell, capped, then scales
// them to fill the printable width.
func pdfColumnWidths(pdf *gofpdf.Fpdf, t Table, printable float64) []float64 {
	cols := max(len(t.Headers), 1)
	widths := make([]float64, cols)

	pdf.SetFont("Arial", "B", 9)
	for i, h := range t.Headers {
		widths[i] = pdf.GetStringWidth(h) + 4
	}
	pdf.SetFont("Arial", "", 9)
	for _, row := range t.Rows {
		for i, v := range row {
			if i < cols {
				widths[i] = max(widths[i], min(pdf.GetStringWidth(v)+4, pdfMaxColWidth))
			}
		}
	}

	var total float64
	for _, w := range widths {
		total += w
	}
	if total <= 0 {
		return widths
	}
	scale := printable / total
	for i := range widths {
		widths[i] *= scale
	}
	return widths
}

func fitText(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	for len(s) > 0 && pdf.GetStringWidth(s+"...") > limit {
		s = s[:len(s)-1]
	}
	return s + "..."
}
