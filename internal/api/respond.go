package api

import (
	"encoding/json"
	"net/http"

	lenserrors "github.com/Aman-CERP/leaselens/internal/errors"
)

// errorResponse wraps a LensError for the wire.
type errorResponse struct {
	Error lenserrors.JSONError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request_failed", append([]any{"path", r.URL.Path}, lenserrors.FormatForLog(err)...)...)
	}
	writeJSON(w, status, errorResponse{Error: lenserrors.ToJSONError(err, s.cfg.Debug)})
}

// statusFor maps error codes onto HTTP statuses.
func statusFor(err error) int {
	switch lenserrors.GetCode(err) {
	case lenserrors.ErrCodeQueryEmpty, lenserrors.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case lenserrors.ErrCodeSessionNotFound:
		return http.StatusNotFound
	case lenserrors.ErrCodeNoDocument:
		return http.StatusConflict
	case lenserrors.ErrCodeSessionLimit, lenserrors.ErrCodeProviderRateLimited:
		return http.StatusTooManyRequests
	case lenserrors.ErrCodeFileTooLarge:
		return http.StatusRequestEntityTooLarge
	case lenserrors.ErrCodeUnsupportedDocument:
		return http.StatusUnsupportedMediaType
	case lenserrors.ErrCodeDocumentUnreadable, lenserrors.ErrCodeDocumentEncrypted, lenserrors.ErrCodeDocumentEmpty:
		return http.StatusUnprocessableEntity
	case lenserrors.ErrCodeProviderTimeout:
		return http.StatusGatewayTimeout
	case lenserrors.ErrCodeProviderUnavailable:
		return http.StatusServiceUnavailable
	case lenserrors.ErrCodeProviderRejected, lenserrors.ErrCodeProviderBadResponse:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
