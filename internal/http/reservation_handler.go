package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/room-reservations/internal/application"
	"github.com/example/room-reservations/internal/events"
	"github.com/example/room-reservations/internal/report"
	"github.com/example/room-reservations/internal/reservation"
)

const (
	msgSortUnknown   = "sort order is not recognized"
	msgMineInvalid   = "mine must be true or false"
	timestampLayout  = time.RFC3339Nano
	streamEventName  = "snapshot"
	pdfContentType   = "application/pdf"
	reportTotalField = "X-Report-Total"
)

// reservationMirror is the read-mostly collection the handlers serve from.
// Writes pass through it to the authoritative service.
type reservationMirror interface {
	Create(ctx context.Context, params application.CreateReservationParams) (reservation.Reservation, error)
	Update(ctx context.Context, params application.UpdateReservationParams) (reservation.Reservation, error)
	Delete(ctx context.Context, principal application.Principal, id string) error
	View(filter reservation.Filter) []reservation.Reservation
	Version() uint64
}

type reservationReader interface {
	GetReservation(ctx context.Context, principal application.Principal, id string) (reservation.Reservation, error)
}

type reportExporter interface {
	Export(w io.Writer, kind report.Kind, records []reservation.Reservation, filter reservation.Filter, generatedAt time.Time) (report.Document, error)
}

// ReservationHandlerConfig wires the reservation endpoints.
type ReservationHandlerConfig struct {
	Mirror   reservationMirror
	Reader   reservationReader
	Exporter reportExporter
	Events   events.Source
	Now      func() time.Time
	Location *time.Location
	Logger   *slog.Logger
}

type ReservationHandler struct {
	mirror    reservationMirror
	reader    reservationReader
	exporter  reportExporter
	events    events.Source
	now       func() time.Time
	location  *time.Location
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(cfg ReservationHandlerConfig) *ReservationHandler {
	base := defaultLogger(cfg.Logger)
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	location := cfg.Location
	if location == nil {
		location = time.UTC
	}
	return &ReservationHandler{
		mirror:    cfg.Mirror,
		reader:    cfg.Reader,
		exporter:  cfg.Exporter,
		events:    cfg.Events,
		now:       now,
		location:  location,
		responder: newResponder(base),
		logger:    base,
	}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Create", "principal_id", principal.UserID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Create", "principal_id", principal.UserID)

	created, err := h.mirror.Create(r.Context(), application.CreateReservationParams{
		Principal: principal,
		Input:     req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation creation failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("reservation_id", created.ID).InfoContext(r.Context(), "reservation created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, reservationResponse{Reservation: toReservationDTO(created)})
}

func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.reader == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	record, err := h.reader.GetReservation(r.Context(), principal, reservationID)
	if err != nil {
		h.log(r.Context(), "Get", "principal_id", principal.UserID, "reservation_id", reservationID).
			ErrorContext(r.Context(), "reservation lookup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(record)})
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for update")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), "Update", "principal_id", principal.UserID, "reservation_id", reservationID, "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode reservation update", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Update", "principal_id", principal.UserID, "reservation_id", reservationID)

	updated, err := h.mirror.Update(r.Context(), application.UpdateReservationParams{
		Principal:     principal,
		ReservationID: reservationID,
		Input:         req.toInput(),
	})
	if err != nil {
		logger.ErrorContext(r.Context(), "reservation update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, reservationResponse{Reservation: toReservationDTO(updated)})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	reservationID, ok := ReservationIDFromContext(r.Context())
	if !ok || strings.TrimSpace(reservationID) == "" {
		h.log(r.Context(), "Delete", "error_kind", "bad_request").ErrorContext(r.Context(), "missing reservation id for delete")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidReservationID)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "reservation_id", reservationID)
	if err := h.mirror.Delete(r.Context(), principal, reservationID); err != nil {
		logger.ErrorContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query, err := parseListQuery(r.URL.Query(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	records := query.apply(h.mirror.View(query.filter))
	h.log(r.Context(), "List", "principal_id", principal.UserID).With("result_count", len(records)).DebugContext(r.Context(), "reservations listed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{
		Reservations: toReservationDTOs(records),
		Total:        len(records),
		Version:      h.mirror.Version(),
	})
}

// Export renders the filtered view as a PDF download. mine=true selects the
// personal report.
func (h *ReservationHandler) Export(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.mirror == nil || h.exporter == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query, err := parseListQuery(r.URL.Query(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	kind := report.KindAll
	if query.mine {
		kind = report.KindMine
	}

	records := query.apply(h.mirror.View(query.filter))
	generatedAt := h.now().In(h.location)
	logger := h.log(r.Context(), "Export", "principal_id", principal.UserID, "result_count", len(records))

	var buf bytes.Buffer
	doc, err := h.exporter.Export(&buf, kind, records, query.filter, generatedAt)
	if errors.Is(err, report.ErrNoReservations) {
		h.responder.writeJSON(r.Context(), w, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "REPORT_EMPTY",
			Message:   err.Error(),
		})
		return
	}
	if err != nil {
		logger.ErrorContext(r.Context(), "report rendering failed", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", pdfContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileName(kind, generatedAt)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set(reportTotalField, strconv.Itoa(doc.Total()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		logger.ErrorContext(r.Context(), "failed to write report", "error", err)
		return
	}
	logger.InfoContext(r.Context(), "report exported")
}

// Stream pushes every snapshot as a server-sent event until the client goes
// away. A slow client only ever sees the latest snapshot.
func (h *ReservationHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.events == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	query, err := parseListQuery(r.URL.Query(), principal)
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	controller := http.NewResponseController(w)
	logger := h.log(r.Context(), "Stream", "principal_id", principal.UserID)

	latest := make(chan events.Snapshot, 1)
	unsubscribe := h.events.Subscribe(func(snapshot events.Snapshot) {
		for {
			select {
			case latest <- snapshot:
				return
			default:
			}
			select {
			case <-latest:
			default:
			}
		}
	})
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := controller.Flush(); err != nil {
		logger.ErrorContext(r.Context(), "streaming not supported", "error", err)
		return
	}

	logger.InfoContext(r.Context(), "stream opened")
	defer logger.InfoContext(r.Context(), "stream closed")

	for {
		select {
		case <-r.Context().Done():
			return
		case snapshot := <-latest:
			payload, err := json.Marshal(streamEvent{
				Version:      snapshot.Version,
				PublishedAt:  snapshot.PublishedAt.UTC().Format(timestampLayout),
				Reservations: toReservationDTOs(query.apply(reservation.ApplyFilters(snapshot.Reservations, query.filter))),
			})
			if err != nil {
				logger.ErrorContext(r.Context(), "failed to encode snapshot", "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", snapshot.Version, streamEventName, payload); err != nil {
				return
			}
			if err := controller.Flush(); err != nil {
				return
			}
		}
	}
}

type listQuery struct {
	filter reservation.Filter
	mine   bool
	order  application.SortOrder
	sorted bool
}

func (q listQuery) apply(records []reservation.Reservation) []reservation.Reservation {
	if q.sorted {
		application.SortReservations(records, q.order)
	}
	return records
}

func parseListQuery(values url.Values, principal application.Principal) (listQuery, error) {
	vErr := &application.ValidationError{FieldErrors: map[string]string{}}
	query := listQuery{
		filter: reservation.Filter{
			Requester: strings.TrimSpace(values.Get("requester")),
		},
	}

	if date := strings.TrimSpace(values.Get("date")); date != "" {
		normalized, err := reservation.NormalizeDate(date)
		if err != nil {
			vErr.FieldErrors["date"] = "date must be YYYY-MM-DD"
		}
		query.filter.Date = normalized
	}
	if room := reservation.Room(strings.TrimSpace(values.Get("room"))); room != "" {
		if !room.Valid() {
			vErr.FieldErrors["room"] = "room is not recognized"
		}
		query.filter.Room = room
	}
	if mine := strings.TrimSpace(values.Get("mine")); mine != "" {
		parsed, err := strconv.ParseBool(mine)
		if err != nil {
			vErr.FieldErrors["mine"] = msgMineInvalid
		}
		query.mine = parsed
	}
	if sort := strings.TrimSpace(values.Get("sort")); sort != "" {
		order, ok := application.ParseSortOrder(sort)
		if !ok {
			vErr.FieldErrors["sort"] = msgSortUnknown
		}
		query.order, query.sorted = order, ok
	}

	if len(vErr.FieldErrors) > 0 {
		return listQuery{}, vErr
	}
	if query.mine {
		query.filter.Creator = principal.Email
	}
	return query, nil
}

type reservationRequest struct {
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	Room       string `json:"room"`
	Requester  string `json:"requester"`
	EventTitle string `json:"event_title"`
	Notes      string `json:"notes"`
}

func (r reservationRequest) toInput() application.ReservationInput {
	return application.ReservationInput{
		Date:       strings.TrimSpace(r.Date),
		StartTime:  strings.TrimSpace(r.StartTime),
		EndTime:    strings.TrimSpace(r.EndTime),
		Room:       reservation.Room(strings.TrimSpace(r.Room)),
		Requester:  strings.TrimSpace(r.Requester),
		EventTitle: strings.TrimSpace(r.EventTitle),
		Notes:      strings.TrimSpace(r.Notes),
	}
}

type reservationResponse struct {
	Reservation reservationDTO `json:"reservation"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
	Total        int              `json:"total"`
	Version      uint64           `json:"version"`
}

type streamEvent struct {
	Version      uint64           `json:"version"`
	PublishedAt  string           `json:"published_at"`
	Reservations []reservationDTO `json:"reservations"`
}

type reservationDTO struct {
	ID         string `json:"id"`
	Date       string `json:"date"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
	TimeRange  string `json:"time_range"`
	Room       string `json:"room"`
	Requester  string `json:"requester"`
	EventTitle string `json:"event_title"`
	Notes      string `json:"notes,omitempty"`
	Status     string `json:"status"`
	Creator    string `json:"creator"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
}

func toReservationDTO(record reservation.Reservation) reservationDTO {
	return reservationDTO{
		ID:         record.ID,
		Date:       record.Date,
		StartTime:  record.StartTime,
		EndTime:    record.EndTime,
		TimeRange:  record.TimeRange(),
		Room:       string(record.Room),
		Requester:  record.Requester,
		EventTitle: record.EventTitle,
		Notes:      record.Notes,
		Status:     record.Status,
		Creator:    record.CreatorIdentity,
		CreatedAt:  record.CreatedAt.UTC().Format(timestampLayout),
		UpdatedAt:  record.UpdatedAt.UTC().Format(timestampLayout),
	}
}

func toReservationDTOs(records []reservation.Reservation) []reservationDTO {
	out := make([]reservationDTO, 0, len(records))
	for _, record := range records {
		out = append(out, toReservationDTO(record))
	}
	return out
}
