package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	apperrors "github.com/staple-duck/snh/errors"
	"github.com/staple-duck/snh/models"
	"github.com/staple-duck/snh/services"
)

const maxBodyBytes = 1 << 20

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, logger services.Logger, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("Failed to encode JSON response", err)
	}
}

// writeErrorResponse writes the error body {statusCode, message, error}
func writeErrorResponse(w http.ResponseWriter, logger services.Logger, statusCode int, message, code string) {
	writeJSONResponse(w, logger, statusCode, models.APIError{
		StatusCode: statusCode,
		Message:    message,
		Error:      http.StatusText(statusCode),
		Code:       code,
	})
}

// writeAppErrorResponse maps an error onto its HTTP status. Errors that are
// not AppErrors are reported as 500 without leaking their text.
func writeAppErrorResponse(w http.ResponseWriter, logger services.Logger, err error) {
	if appErr, ok := apperrors.AsAppError(err); ok {
		status := appErr.GetHTTPStatusCode()
		message := appErr.Message
		if status >= http.StatusInternalServerError {
			logger.Error("Request failed", err, services.String("code", appErr.Code))
			message = "Internal server error"
		}
		writeErrorResponse(w, logger, status, message, appErr.Code)
		return
	}

	logger.Error("Unexpected error type", err)
	writeErrorResponse(w, logger, http.StatusInternalServerError, "Internal server error", "")
}

// decodeJSON reads a bounded JSON body into dst
func decodeJSON(r *http.Request, dst interface{}) error {
	body := io.LimitReader(r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return apperrors.NewValidationError(apperrors.ErrCodeInvalidFormat, "invalid request body", err)
	}
	return nil
}
