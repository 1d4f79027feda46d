package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"geo-bknd/internal/apperr"
	"geo-bknd/internal/geojson"

	"go.uber.org/zap"
)

type errorResponse struct {
	Message string `json:"message"`
}

// errUploadTooLarge marks a request body cut off by MaxBytesReader.
var errUploadTooLarge = errors.New("upload too large")

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(true)
	_ = enc.Encode(data)
}

// statusFor maps an error onto its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, errUploadTooLarge) {
		return http.StatusRequestEntityTooLarge
	}

	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindBadRequest, apperr.KindDateRangeInvalid:
		return http.StatusBadRequest
	case apperr.KindMalformedDocument:
		if errors.Is(err, geojson.ErrNotGeoJSON) {
			return http.StatusBadRequest
		}
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func (h *ProjectHandler) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)

	if status >= http.StatusInternalServerError {
		h.logr.Error("request failed", zap.Int("status", status), zap.Error(err))
		writeJSON(w, status, errorResponse{Message: "Internal server error."})
		return
	}

	h.logr.Warn("request rejected", zap.Int("status", status), zap.Error(err))
	writeJSON(w, status, errorResponse{Message: apperr.Message(err, err.Error())})
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.Malformed(fmt.Errorf("%w: %w", errUploadTooLarge, err), "file exceeds %d bytes.", tooLarge.Limit)
	}
	return apperr.BadRequest("Bad request: %s.", err.Error())
}
