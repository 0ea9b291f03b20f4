package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError answers with the AppError's code and message. Errors that are
// not AppErrors are reported as internal without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := utils.KindOf(err)
	message := "internal error"
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	} else {
		code = "INTERNAL"
	}
	status := utils.AppErrorToHTTPStatus(code)

	if status >= http.StatusInternalServerError {
		s.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("code", code),
			zap.Error(err))
	} else {
		s.Logger.Debug("request rejected", zap.String("path", r.URL.Path), zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: message, Code: code})
}

func decodeJSON(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return utils.NewAppError(utils.ErrValidation, "Invalid request", err)
	}
	return nil
}

func pathID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, utils.NewAppError(utils.ErrValidation, "Invalid ID format", err)
	}
	return id, nil
}
