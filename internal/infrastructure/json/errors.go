package json

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/hilthontt/tourchat/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Field   string `json:"field,omitempty"`
}

func WriteError(w http.ResponseWriter, status int, err error, msg string) {
	_ = Write(w, status, ErrorResponse{
		Error:   http.StatusText(status),
		Message: msg,
	})
}

func WriteValidationError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{
		Error:   http.StatusText(http.StatusBadRequest),
		Message: err.Error(),
	}
	var (
		validation *domain.ValidationError
		typed      *domain.Error
	)
	switch {
	case errors.As(err, &validation):
		resp.Field = validation.Field
		resp.Message = validation.Err.Error()
	case errors.As(err, &typed):
		resp.Message = typed.Message
		resp.Reason = string(typed.Reason)
	}
	_ = Write(w, http.StatusBadRequest, resp)
}

func WriteBadRequestError(w http.ResponseWriter, msg string) {
	WriteError(w, http.StatusBadRequest, errors.New("bad request"), msg)
}

func WriteInternalError(w http.ResponseWriter, err error) {
	WriteError(w, http.StatusInternalServerError, err, "An unexpected error occurred")
}

func WriteRateLimitError(w http.ResponseWriter, retryAfter int) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	}
	WriteError(w, http.StatusTooManyRequests, errors.New("rate limited"), "Too many requests. Please try again later.")
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind domain.Kind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotAuthenticated:
		return http.StatusUnauthorized
	case domain.KindPermissionDenied:
		return http.StatusForbidden
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyInState:
		return http.StatusConflict
	case domain.KindQuotaExceeded:
		return http.StatusTooManyRequests
	case domain.KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes any error returned by the chat core. Unknown and store errors
// never leak their text.
func WriteDomainError(w http.ResponseWriter, err error) {
	kind := domain.KindOf(err)
	switch kind {
	case domain.KindValidation:
		WriteValidationError(w, err)
		return
	case domain.KindUnknown:
		WriteInternalError(w, err)
		return
	case domain.KindStoreUnavailable:
		WriteError(w, http.StatusServiceUnavailable, err, "The service is temporarily unavailable")
		return
	}

	status := StatusFor(kind)
	resp := ErrorResponse{Error: http.StatusText(status)}
	var typed *domain.Error
	switch {
	case errors.As(err, &typed):
		resp.Message = typed.Message
		resp.Reason = string(typed.Reason)
	case errors.Is(err, domain.ErrRoomNotFound):
		resp.Message = domain.ReasonRoomNotFound.Message()
		resp.Reason = string(domain.ReasonRoomNotFound)
	case errors.Is(err, domain.ErrMessageNotFound):
		resp.Message = domain.ReasonMessageNotFound.Message()
		resp.Reason = string(domain.ReasonMessageNotFound)
	default:
		resp.Message = err.Error()
	}
	_ = Write(w, status, resp)
}
