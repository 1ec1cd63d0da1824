package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
)

// Envelope is the JSON response contract used by every endpoint.
type Envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Code    string `json:"code,omitempty"`
}

// RespondJSON writes a success envelope.
func RespondJSON(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Envelope{Success: status < 400, Message: message, Data: data})
}

// RespondError maps an error to the envelope. Coded errors keep their
// reason code and details; everything else is an opaque 500.
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if coded, ok := AsCoded(err); ok {
		status := statusFor(coded.Category)
		if status >= 500 && logger != nil {
			logger.Error("request failed", slog.Any("error", err))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(Envelope{Success: false, Message: coded.Message, Code: coded.Code, Data: detailData(coded)})
		return
	}
	if errors.Is(err, ErrNotFound) {
		RespondJSON(w, http.StatusNotFound, "not found", nil)
		return
	}
	if logger != nil {
		logger.Error("request failed", slog.Any("error", err))
	}
	RespondJSON(w, http.StatusInternalServerError, "internal server error", nil)
}

// DecodeJSON strictly decodes a request body into dst.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

func statusFor(category Category) int {
	switch category {
	case CategoryValidation, CategoryPeriodPolicy:
		return http.StatusBadRequest
	case CategoryNotFound:
		return http.StatusNotFound
	case CategoryConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func detailData(coded *CodedError) any {
	if len(coded.Details) == 0 {
		return nil
	}
	return coded.Details
}
