package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/room-reservations/internal/reservation"
)

var generatedAt = time.Date(2025, 3, 10, 14, 30, 0, 0, time.UTC)

func fiveRecords() []reservation.Reservation {
	base := reservation.Reservation{Room: reservation.RoomAuditorium, Status: reservation.StatusReserved}
	mk := func(id, date, start, end, requester, notes string) reservation.Reservation {
		r := base
		r.ID, r.Date, r.StartTime, r.EndTime, r.Requester, r.Notes = id, date, start, end, requester, notes
		r.EventTitle = "Evento " + id
		return r
	}
	return []reservation.Reservation{
		mk("1", "2025-03-10", "09:00", "10:00", "Ana Silva", "Projetor"),
		mk("2", "2025-03-10", "10:00", "11:00", "Bruno Costa", ""),
		mk("3", "2025-03-11", "08:00", "09:30", "Carla Silva", ""),
		mk("4", "2025-03-12", "13:00", "15:00", "Diego Souza", "Coffee break"),
		mk("5", "2025-03-13", "16:00", "17:00", "Elisa Lima", ""),
	}
}

func TestBuildProducesOneRowPerRecordInOrder(t *testing.T) {
	t.Parallel()

	doc := Build(KindAll, fiveRecords(), reservation.Filter{}, generatedAt)

	require.Equal(t, 5, doc.Total())
	assert.Equal(t, titleAll, doc.Title)
	assert.Equal(t, "10/03/2025", doc.GeneratedOn())
	assert.Equal(t, noFilters, doc.FilterSummary())
	assert.Equal(t, []string{"10/03/2025", "09:00 - 10:00", "Auditório", "Ana Silva", "Evento 1", "Reservado", "Projetor"}, doc.Rows[0])
	assert.Equal(t, "-", doc.Rows[1][6], "empty notes render as a dash")
	for i, row := range doc.Rows {
		assert.Len(t, row, len(Columns))
		assert.Equal(t, "Evento "+fiveRecords()[i].ID, row[4])
	}
}

func TestBuildWithRequesterFilter(t *testing.T) {
	t.Parallel()

	filter := reservation.Filter{Requester: "Silva"}
	visible := reservation.ApplyFilters(fiveRecords(), filter)
	doc := Build(KindAll, visible, filter, generatedAt)

	require.Equal(t, 2, doc.Total())
	assert.Equal(t, "Ana Silva", doc.Rows[0][3])
	assert.Equal(t, "Carla Silva", doc.Rows[1][3])
	assert.Equal(t, "Solicitante: Silva", doc.FilterSummary())
}

func TestFilterSummaryListsEveryActiveCriterion(t *testing.T) {
	t.Parallel()

	doc := Build(KindMine, nil, reservation.Filter{
		Date:      "2025-03-10",
		Room:      reservation.RoomComputerLab,
		Requester: "Ana",
		Creator:   "ana@ece.com",
	}, generatedAt)

	assert.Equal(t, titleMine, doc.Title)
	assert.Equal(t, "Data: 10/03/2025; Sala: Laboratório de Informática; Solicitante: Ana; Criador: ana@ece.com", doc.FilterSummary())
	assert.Zero(t, doc.Total())
}

func TestFileName(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "reservas_auditorio_2025-03-10_14-30-00.pdf", FileName(KindAll, generatedAt))
	assert.Equal(t, "minhas_reservas_2025-03-10_14-30-00.pdf", FileName(KindMine, generatedAt))
}

func TestExportWritesPDF(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	doc, err := NewExporter("Reservas").Export(&buf, KindAll, fiveRecords(), reservation.Filter{}, generatedAt)
	require.NoError(t, err)

	assert.Equal(t, 5, doc.Total())
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestExportIsDeterministic(t *testing.T) {
	t.Parallel()

	exporter := NewExporter("")
	var first, second bytes.Buffer
	_, err := exporter.Export(&first, KindAll, fiveRecords(), reservation.Filter{}, generatedAt)
	require.NoError(t, err)
	_, err = exporter.Export(&second, KindAll, fiveRecords(), reservation.Filter{}, generatedAt)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(first.Bytes(), second.Bytes()))
}

func TestExportPaginatesLargeListings(t *testing.T) {
	t.Parallel()

	records := make([]reservation.Reservation, 0, 120)
	for i := 0; i < 120; i++ {
		r := fiveRecords()[i%5]
		r.Notes = "Observação longa que precisa quebrar em mais de uma linha dentro da célula da tabela"
		records = append(records, r)
	}

	var single, many bytes.Buffer
	_, err := NewExporter("").Export(&single, KindAll, records[:1], reservation.Filter{}, generatedAt)
	require.NoError(t, err)
	_, err = NewExporter("").Export(&many, KindAll, records, reservation.Filter{}, generatedAt)
	require.NoError(t, err)

	assert.Greater(t, many.Len(), single.Len())
}

func TestExportSplitsRowsTallerThanAPage(t *testing.T) {
	t.Parallel()

	records := fiveRecords()[:2]
	records[0].Notes = strings.Repeat("Observação detalhada ", 125)
	doc := Build(KindAll, records, reservation.Filter{}, generatedAt)

	pdf := NewExporter("").layout(doc)
	require.NoError(t, pdf.Error())
	assert.GreaterOrEqual(t, pdf.PageCount(), 2, "the long note continues over the following pages")

	_, pageHeight := pdf.GetPageSize()
	assert.LessOrEqual(t, pdf.GetY(), pageHeight-pageMargin-8, "nothing is drawn past the page bottom")

	var buf bytes.Buffer
	require.NoError(t, NewExporter("").Render(&buf, doc))
	assert.Contains(t, buf.String(), "%%EOF")
}

func TestSplitRowKeepsEveryLine(t *testing.T) {
	t.Parallel()

	lines := [][][]byte{
		{[]byte("10/03/2025")},
		{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")},
		{[]byte("x"), []byte("y")},
	}
	require.Equal(t, 5, rowLineCount(lines))

	head, rest := splitRow(lines, 2)
	assert.Equal(t, 2, rowLineCount(head))
	assert.Equal(t, 3, rowLineCount(rest))
	for c := range lines {
		assert.Equal(t, lines[c], append(append([][]byte{}, head[c]...), rest[c]...))
	}
	assert.Empty(t, rest[0])
	assert.Equal(t, 1, rowLineCount([][][]byte{{}, {}}), "an empty row still takes one line")
}
