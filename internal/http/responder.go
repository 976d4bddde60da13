package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/example/room-reservations/internal/application"
)

var (
	errBadRequestBody       = errors.New("Formato de requisição inválido.")
	errInvalidReservationID = errors.New("Identificador de reserva inválido.")
	errMissingSessionToken  = errors.New("Informe o token de sessão.")
	errMissingPrincipal     = errors.New("Autenticação necessária.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := err.Error(); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "Você não tem permissão para realizar esta operação.",
		})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "O recurso solicitado não foi encontrado."})
	case errors.Is(err, application.ErrOverlap):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "RESERVATION_OVERLAP",
			Message:   "Já existe uma reserva para esta sala neste horário e data. Por favor, escolha outro horário ou data.",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "Este e-mail já está cadastrado.",
		})
	case errors.Is(err, application.ErrInvalidCredentials):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_CREDENTIALS",
			Message:   "Erro no login. Verifique suas credenciais.",
		})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_SESSION_EXPIRED",
			Message:   "Sua sessão expirou. Faça login novamente.",
		})
	case errors.Is(err, application.ErrInvalidResetToken):
		r.writeJSON(ctx, w, http.StatusBadRequest, errorResponse{
			ErrorCode: "AUTH_INVALID_RESET_TOKEN",
			Message:   "O link de redefinição de senha é inválido ou expirou.",
		})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			details := localizeValidationErrors(vErr)
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "Por favor, preencha todos os campos obrigatórios!",
				Errors:  details,
			})
			return
		}

		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Ocorreu um erro interno no servidor."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "A requisição é inválida."
	case http.StatusUnauthorized:
		return "Autenticação necessária."
	case http.StatusForbidden:
		return "Você não tem permissão para realizar esta operação."
	case http.StatusNotFound:
		return "O recurso solicitado não foi encontrado."
	case http.StatusConflict:
		return "A requisição conflita com o estado atual do recurso."
	case http.StatusUnprocessableEntity:
		return "Por favor, preencha todos os campos obrigatórios!"
	default:
		return "Ocorreu um erro interno no servidor."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "date is required":
		return "A data é obrigatória."
	case "date must be YYYY-MM-DD":
		return "Informe a data no formato AAAA-MM-DD."
	case "date must not be in the past":
		return "Não é possível reservar uma data que já passou."
	case "start time is required":
		return "O horário de início é obrigatório."
	case "start time must be HH:MM":
		return "Informe o horário de início no formato HH:MM."
	case "end time is required":
		return "O horário de término é obrigatório."
	case "end time must be HH:MM":
		return "Informe o horário de término no formato HH:MM."
	case "start time must be before end time":
		return "O horário de término deve ser posterior ao horário de início."
	case "room is required":
		return "A sala é obrigatória."
	case "room is not recognized":
		return "A sala informada não existe."
	case "requester is required":
		return "O nome do solicitante é obrigatório."
	case "event title is required":
		return "O título do evento é obrigatório."
	case "reservation violates a storage constraint":
		return "A reserva não pôde ser gravada."
	case "email is required":
		return "O e-mail é obrigatório."
	case "email is invalid":
		return "O e-mail informado é inválido."
	case "password is required":
		return "A senha é obrigatória."
	case "password must be at least 6 characters":
		return "A senha deve ter pelo menos 6 caracteres"
	case msgSortUnknown:
		return "A ordenação informada não existe."
	case msgMineInvalid:
		return "O parâmetro mine deve ser true ou false."
	default:
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
