package report

import (
	"bytes"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/pkg/errors"
)

var pdfColumns = []struct {
	title string
	width float64
}{
	{"Title", 70},
	{"Client", 40},
	{"Status", 30},
	{"Priority", 22},
	{"Assignee", 45},
	{"Due", 35},
	{"Created", 35},
}

func renderPDF(appName string, rows []row) ([]byte, error) {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetTitle(appName+" task report", false)
	pdf.SetAutoPageBreak(true, 15)
	pdf.AddPage()

	// title
	pdf.SetFont("Helvetica", "B", 14)
	pdf.CellFormat(0, 10, appName+" Task Report "+time.Now().UTC().Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.Ln(2)

	// header
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for _, col := range pdfColumns {
		pdf.CellFormat(col.width, 7, col.title, "1", 0, "L", true, 0, "")
	}
	pdf.Ln(-1)

	// body
	pdf.SetFont("Helvetica", "", 9)
	for _, r := range rows {
		cells := []string{
			r.task.Title,
			r.task.Client,
			r.task.Status,
			r.task.Priority,
			r.assignee,
			fmtTime(r.task.DueAt),
			fmtTime(r.task.CreatedAt),
		}
		for i, cell := range cells {
			pdf.CellFormat(pdfColumns[i].width, 6, truncate(cell, 40), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buff bytes.Buffer
	if err := pdf.Output(&buff); err != nil {
		return nil, errors.Wrap(err, "rendering pdf")
	}
	return buff.Bytes(), nil
}

// truncate shortens s to max runes; byte slicing could split a multi-byte
// rune and feed invalid UTF-8 to the PDF writer.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
