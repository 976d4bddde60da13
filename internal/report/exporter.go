package report

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"

	"github.com/example/room-reservations/internal/reservation"
)

// Column widths in millimetres for A4 landscape with 10mm margins.
var columnWidths = []float64{24, 28, 46, 45, 55, 25, 54}

const (
	pageMargin = 10.0
	lineHeight = 5.5
	cellPad    = 1.2
)

// ErrNoReservations is returned when an export would produce an empty report.
var ErrNoReservations = errors.New("Não há reservas para exportar!")

// Exporter renders documents with fpdf.
type Exporter struct {
	author string
}

// NewExporter returns an exporter that stamps author into the PDF metadata.
func NewExporter(author string) *Exporter {
	return &Exporter{author: author}
}

// Export builds a document from records in their given order and writes it
// to w. The returned document describes what was written. Nothing is written
// when records is empty.
func (e *Exporter) Export(w io.Writer, kind Kind, records []reservation.Reservation, filter reservation.Filter, generatedAt time.Time) (Document, error) {
	if len(records) == 0 {
		return Document{}, ErrNoReservations
	}
	doc := Build(kind, records, filter, generatedAt)
	if err := e.Render(w, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Render writes doc as a PDF. Output is byte-for-byte stable for equal
// documents.
func (e *Exporter) Render(w io.Writer, doc Document) error {
	pdf := e.layout(doc)
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func (e *Exporter) layout(doc Document) *fpdf.Fpdf {
	pdf := fpdf.New("L", "mm", "A4", "")
	pdf.SetCatalogSort(true)
	pdf.SetCreationDate(doc.GeneratedAt)
	pdf.SetModificationDate(doc.GeneratedAt)
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, pageMargin)

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle(doc.Title, true)
	if e != nil && e.author != "" {
		pdf.SetAuthor(e.author, true)
	}

	pdf.AliasNbPages("{nb}")
	pdf.SetFooterFunc(func() {
		pdf.SetY(-8)
		pdf.SetFont("Helvetica", "I", 8)
		pdf.SetTextColor(120, 120, 120)
		pdf.CellFormat(0, 4, tr(fmt.Sprintf("Página %d/{nb}", pdf.PageNo())), "", 0, "C", false, 0, "")
	})

	pdf.AddPage()
	writeSummary(pdf, tr, doc)
	writeTableHeader(pdf, tr)

	_, pageHeight := pdf.GetPageSize()
	bottom := pageHeight - pageMargin - 8

	// fresh is true while the current page holds no data rows.
	fresh := true
	for i, row := range doc.Rows {
		lines := make([][][]byte, len(row))
		pdf.SetFont("Helvetica", "", 9)
		for c, value := range row {
			lines[c] = pdf.SplitLines([]byte(tr(value)), columnWidths[c]-2*cellPad)
		}

		// Rows taller than a page continue on the next one.
		for {
			need := rowLineCount(lines)
			fit := int((bottom - pdf.GetY() - cellPad) / lineHeight)
			if need <= fit {
				writeRow(pdf, lines, float64(need)*lineHeight+cellPad, i%2 == 1)
				fresh = false
				break
			}
			if fresh {
				fit = max(fit, 1)
				var head [][][]byte
				head, lines = splitRow(lines, fit)
				writeRow(pdf, head, float64(fit)*lineHeight+cellPad, i%2 == 1)
			}
			pdf.AddPage()
			writeTableHeader(pdf, tr)
			fresh = true
		}
	}
	return pdf
}

func writeSummary(pdf *fpdf.Fpdf, tr func(string) string, doc Document) {
	pdf.SetFont("Helvetica", "B", 18)
	pdf.SetTextColor(44, 62, 80)
	pdf.CellFormat(0, 10, tr(doc.Title), "", 1, "L", false, 0, "")

	pdf.SetFont("Helvetica", "", 11)
	pdf.SetTextColor(52, 73, 94)
	pdf.CellFormat(0, 6, tr("Data de geração: "+doc.GeneratedOn()), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Total de reservas: %d", doc.Total())), "", 1, "L", false, 0, "")

	if len(doc.Filters) == 0 {
		pdf.CellFormat(0, 6, tr(noFilters), "", 1, "L", false, 0, "")
	} else {
		pdf.CellFormat(0, 6, tr("Filtros aplicados:"), "", 1, "L", false, 0, "")
		for _, f := range doc.Filters {
			pdf.CellFormat(0, 6, tr("  • "+f), "", 1, "L", false, 0, "")
		}
	}
	pdf.Ln(4)
}

func writeTableHeader(pdf *fpdf.Fpdf, tr func(string) string) {
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(52, 73, 94)
	pdf.SetTextColor(255, 255, 255)
	pdf.SetDrawColor(200, 200, 200)
	for i, title := range Columns {
		pdf.CellFormat(columnWidths[i], 7, tr(title), "1", 0, "C", true, 0, "")
	}
	pdf.Ln(-1)
	pdf.SetTextColor(33, 33, 33)
}

func writeRow(pdf *fpdf.Fpdf, lines [][][]byte, rowHeight float64, shaded bool) {
	pdf.SetFont("Helvetica", "", 9)
	if shaded {
		pdf.SetFillColor(245, 245, 245)
	} else {
		pdf.SetFillColor(255, 255, 255)
	}

	x, y := pdf.GetX(), pdf.GetY()
	for c, cellLines := range lines {
		width := columnWidths[c]
		pdf.Rect(x, y, width, rowHeight, "FD")
		for l, line := range cellLines {
			pdf.SetXY(x+cellPad, y+cellPad/2+float64(l)*lineHeight)
			pdf.CellFormat(width-2*cellPad, lineHeight, string(line), "", 0, "L", false, 0, "")
		}
		x += width
	}
	pdf.SetXY(pageMargin, y+rowHeight)
}

// rowLineCount is the number of lines the tallest cell needs, at least one.
func rowLineCount(lines [][][]byte) int {
	count := 1
	for _, cell := range lines {
		count = max(count, len(cell))
	}
	return count
}

// splitRow cuts every cell after its first n lines.
func splitRow(lines [][][]byte, n int) (head, rest [][][]byte) {
	head = make([][][]byte, len(lines))
	rest = make([][][]byte, len(lines))
	for c, cell := range lines {
		k := min(n, len(cell))
		head[c], rest[c] = cell[:k], cell[k:]
	}
	return head, rest
}
