package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/deliverytech/api/internal/service"
	"github.com/jackc/pgx/v5/pgconn"
)

// Error codes carried in every error payload.
const (
	codeNotFound          = "NOT_FOUND"
	codeConflict          = "CONFLICT"
	codeValidation        = "VALIDATION_ERROR"
	codeInvalidTransition = "INVALID_TRANSITION"
	codeCannotCancel      = "CANNOT_CANCEL"
	codeUnauthorized      = "UNAUTHORIZED"
	codeForbidden         = "FORBIDDEN"
	codeInternal          = "INTERNAL_ERROR"
)

type errorResponse struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeValidationError(w http.ResponseWriter, message string, details map[string]string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Code: codeValidation, Message: message, Details: details})
}

// writeInternalError logs err and replies with a generic 500.
func writeInternalError(w http.ResponseWriter, op string, err error) {
	log.Printf("ERROR: %s: %v", op, err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

// writeServiceError maps order service errors onto the error payload.
// Anything it does not recognise is treated as an internal failure.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	var te *service.TransitionError
	switch {
	case errors.As(err, &te):
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Code:    codeInvalidTransition,
			Message: err.Error(),
			Details: map[string]string{"current": te.From, "requested": te.To},
		})
	case errors.Is(err, service.ErrCannotCancel):
		writeError(w, http.StatusBadRequest, codeCannotCancel, err.Error())
	case service.IsNotFound(err):
		writeError(w, http.StatusNotFound, codeNotFound, err.Error())
	case service.IsConflict(err):
		writeError(w, http.StatusConflict, codeConflict, err.Error())
	case service.IsValidationError(err):
		writeError(w, http.StatusBadRequest, codeValidation, err.Error())
	default:
		writeInternalError(w, op, err)
	}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
