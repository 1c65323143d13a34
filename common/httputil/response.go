package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/Younus004/wisdom/internal/apperr"
)

// RespondWithError writes an error response in JSON format
func RespondWithError(w http.ResponseWriter, code int, message string) {
	RespondWithJSON(w, code, map[string]string{"error": message})
}

// RespondWithJSON writes a JSON response
func RespondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(response)
}

type fieldErrorsResponse struct {
	Error  string              `json:"error"`
	Fields []apperr.FieldError `json:"fields"`
}

// RespondWithAppError maps err onto its status code. Validation failures list
// every offending field; server-side failures are logged and reported
// without internal detail.
func RespondWithAppError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := apperr.HTTPStatus(err)

	var ve *apperr.ValidationError
	if errors.As(err, &ve) {
		RespondWithJSON(w, code, fieldErrorsResponse{Error: "validation failed", Fields: ve.Fields})
		return
	}

	if code >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		if code == http.StatusInternalServerError {
			RespondWithError(w, code, "internal server error")
			return
		}
	}
	RespondWithError(w, code, err.Error())
}

// DecodeJSON reads the request body into v, rejecting unknown fields.
func DecodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("body", "invalid request body: "+err.Error())
	}
	return nil
}

// ServeDocument streams a stored PDF, honouring range and conditional requests.
func ServeDocument(w http.ResponseWriter, r *http.Request, name string, content io.ReadSeeker, modTime time.Time) {
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name))
	http.ServeContent(w, r, name, modTime, content)
}
