package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pairchat/server/internal/apperr"
	"go.uber.org/zap"
)

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError writes the error taxonomy response. Internal causes are logged
// here and never serialized to the client.
func respondError(w http.ResponseWriter, log *zap.Logger, err error) {
	ae := apperr.From(err)
	if ae.Code == apperr.CodeInternal && log != nil {
		log.Error(ae.Message, zap.Error(ae.Cause))
	}
	respondJSON(w, ae.Code.HTTPStatus(), map[string]string{
		"code":    string(ae.Code),
		"message": ae.Message,
	})
}
