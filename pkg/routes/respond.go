package routes

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	dserrors "github.com/docseal/api/pkg/errors"
	"github.com/docseal/api/pkg/models"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write(models.CreateError(models.GenericErrorMessage))
		return
	}

	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(models.CreateError(msg))
}

// writeInternalError logs err with its context and answers with the generic
// message only.
func writeInternalError(w http.ResponseWriter, logger *zap.Logger, msg string, err error, fields ...zap.Field) {
	logger.Error(msg, append(fields, zap.Error(err))...)
	writeError(w, http.StatusInternalServerError, models.GenericErrorMessage)
}

// writeValidationError answers 400 with the field message when err is a
// validation failure and reports whether it did.
func writeValidationError(w http.ResponseWriter, err error) bool {
	var verr *dserrors.ValidationError
	if !errors.As(err, &verr) {
		return false
	}

	writeError(w, http.StatusBadRequest, verr.Error())
	return true
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
