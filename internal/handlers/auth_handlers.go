package handlers

import (
	"net/http"
	"time"

	"github.com/kevinye7/PokeHub/internal/engine"
	"github.com/kevinye7/PokeHub/internal/models"
)

// SessionResponse describes the tracked session. Tokens are not exposed.
type SessionResponse struct {
	Identity  *models.Identity `json:"identity"`
	ExpiresAt *time.Time       `json:"expires_at,omitempty"`
}

type SignUpResponse struct {
	Identity            *models.Identity `json:"identity,omitempty"`
	ConfirmationPending bool             `json:"confirmation_pending"`
}

// HandleSession returns the current identity, or null when signed out.
func (s *Server) HandleSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session := s.Engine.Session()
		if session == nil {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		resp := SessionResponse{Identity: &session.Identity}
		if !session.ExpiresAt.IsZero() {
			resp.ExpiresAt = &session.ExpiresAt
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) HandleSignUp() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.Credentials
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.Engine.SignUp(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if result.ConfirmationPending {
			writeJSON(w, http.StatusAccepted, SignUpResponse{Identity: result.Identity, ConfirmationPending: true})
			return
		}
		writeJSON(w, http.StatusCreated, SignUpResponse{Identity: result.Identity})
	}
}

func (s *Server) HandleLogin() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req engine.Credentials
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		identity, err := s.Engine.SignIn(r.Context(), req)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, SessionResponse{Identity: identity})
	}
}

func (s *Server) HandleLogout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.Engine.SignOut(r.Context()); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
