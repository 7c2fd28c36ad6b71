package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/fumiama/go-docx"
	"github.com/ledongthuc/pdf"
	"github.com/xuri/excelize/v2"
)

// pdfText extracts plain text from a PDF document.
func pdfText(data []byte) (string, error) {
	rdr, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	plain, err := rdr.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to buffer PDF text: %w", err)
	}
	return buf.String(), nil
}

// docxText extracts paragraph and table text from a DOCX document.
func docxText(data []byte) (string, error) {
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse DOCX: %w", err)
	}

	var parts []string
	for _, item := range doc.Document.Body.Items {
		switch item.(type) {
		case *docx.Paragraph, *docx.Table:
			if t := strings.TrimSpace(fmt.Sprint(item)); t != "" {
				parts = append(parts, t)
			}
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

// xlsxText renders every sheet of an XLSX workbook as "Sheet: <name>"
// followed by its rows, cells tab-joined.
func xlsxText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to parse XLSX: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", fmt.Errorf("failed to read sheet %q: %w", sheet, err)
		}

		sb.WriteString("Sheet: " + sheet + "\n\n")
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line != "" {
				sb.WriteString(line + "\n")
			}
		}
		sb.WriteString("\n")
	}
	return sb.String(), nil
}
