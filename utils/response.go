package utils

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/loiphan2202/BAT/apperr"

	"github.com/sirupsen/logrus"
)

func RespondWithError(w http.ResponseWriter, code int, msg string) {
	RespondWithJSON(w, code, map[string]string{"error": msg})
}

// Sends a JSON response
func RespondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// RespondWithAppError writes err in the API error shape. Internal errors
// are logged and answered with a generic message.
func RespondWithAppError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	status := apperr.HTTPStatus(err)
	var ae *apperr.Error
	if !errors.As(err, &ae) || ae.Kind == apperr.KindInternal {
		if log != nil {
			log.WithError(err).Error("request failed")
		}
		RespondWithError(w, status, "internal server error")
		return
	}

	body := M{"error": ae.Message}
	if len(ae.Fields) > 0 {
		body["fields"] = ae.Fields
	}
	RespondWithJSON(w, status, body)
}

// DecodeJSON reads a JSON body into dst, rejecting malformed payloads as
// validation errors.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("invalid JSON payload", nil)
	}
	return nil
}

type M map[string]interface{}
