// Package report renders reservation listings as paginated PDF tables.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/reservation"
)

// Kind selects the report flavour, which drives the title and file name.
type Kind int

const (
	// KindAll is the general listing of reservations.
	KindAll Kind = iota
	// KindMine is the listing of the requesting user's own reservations.
	KindMine
)

const (
	titleAll       = "Relatório de Reservas de Auditório"
	titleMine      = "Relatório de Minhas Reservas"
	noFilters      = "Nenhum filtro aplicado"
	emptyCellValue = "-"
)

// Columns is the fixed table header.
var Columns = []string{"Data", "Horário", "Sala", "Solicitante", "Evento", "Status", "Observações"}

// Document is the renderer-independent content of a report.
type Document struct {
	Kind        Kind
	Title       string
	GeneratedAt time.Time
	Filters     []string
	Rows        [][]string
}

// Total is the number of data rows.
func (d Document) Total() int {
	return len(d.Rows)
}

// GeneratedOn renders the generation date as DD/MM/YYYY.
func (d Document) GeneratedOn() string {
	return d.GeneratedAt.Format(reservation.DisplayDateLayout)
}

// FilterSummary joins the active filters, or reports that none are active.
func (d Document) FilterSummary() string {
	if len(d.Filters) == 0 {
		return noFilters
	}
	return strings.Join(d.Filters, "; ")
}

// Build assembles a document with one row per record, preserving order.
// Records are expected to be filtered already; filter only feeds the summary.
func Build(kind Kind, records []reservation.Reservation, filter reservation.Filter, generatedAt time.Time) Document {
	doc := Document{
		Kind:        kind,
		Title:       titleAll,
		GeneratedAt: generatedAt,
		Filters:     describeFilter(filter),
		Rows:        make([][]string, 0, len(records)),
	}
	if kind == KindMine {
		doc.Title = titleMine
	}

	for _, r := range records {
		doc.Rows = append(doc.Rows, []string{
			reservation.FormatDisplayDate(r.Date),
			r.TimeRange(),
			string(r.Room),
			r.Requester,
			r.EventTitle,
			orDash(r.Status),
			orDash(r.Notes),
		})
	}
	return doc
}

func describeFilter(filter reservation.Filter) []string {
	var out []string
	if date := strings.TrimSpace(filter.Date); date != "" {
		if normalized, err := reservation.NormalizeDate(date); err == nil {
			date = normalized
		}
		out = append(out, "Data: "+reservation.FormatDisplayDate(date))
	}
	if room := strings.TrimSpace(string(filter.Room)); room != "" {
		out = append(out, "Sala: "+room)
	}
	if requester := strings.TrimSpace(filter.Requester); requester != "" {
		out = append(out, "Solicitante: "+requester)
	}
	if creator := strings.TrimSpace(filter.Creator); creator != "" {
		out = append(out, "Criador: "+creator)
	}
	return out
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return emptyCellValue
	}
	return value
}

// FileName stamps the export time into the download name, for example
// reservas_auditorio_2025-03-10_14-30-00.pdf.
func FileName(kind Kind, at time.Time) string {
	prefix := "reservas_auditorio"
	if kind == KindMine {
		prefix = "minhas_reservas"
	}
	return fmt.Sprintf("%s_%s.pdf", prefix, at.Format("2006-01-02_15-04-05"))
}
