package handlers

import (
	"net/http"

	"github.com/kevinye7/PokeHub/internal/engine"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
)

// maxAvatarSize bounds the multipart form read for profile updates.
const maxAvatarSize = 5 << 20

type UsernamesRequest struct {
	IDs []string `json:"ids" validate:"required,dive,uuid"`
}

func (s *Server) HandleViewProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		view, err := s.Engine.ViewProfile(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleUpdateProfile takes a multipart form with a username field and
// an optional avatar file.
func (s *Server) HandleUpdateProfile() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(maxAvatarSize); err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrValidation, "Invalid profile form", err))
			return
		}
		input := engine.ProfileInput{Username: r.FormValue("username")}

		file, header, err := r.FormFile("avatar")
		switch {
		case err == nil:
			defer file.Close()
			input.Avatar = &engine.AvatarUpload{
				Filename:    header.Filename,
				ContentType: header.Header.Get("Content-Type"),
				Data:        file,
			}
		case err != http.ErrMissingFile:
			s.writeError(w, r, utils.NewAppError(utils.ErrValidation, "Invalid avatar upload", err))
			return
		}

		view, err := s.Engine.UpdateProfile(r.Context(), input)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

// HandleUsernames resolves author labels for a list of user ids.
func (s *Server) HandleUsernames() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UsernamesRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := utils.ValidateStruct(req); err != nil {
			s.writeError(w, r, err)
			return
		}

		ids := make([]uuid.UUID, 0, len(req.IDs))
		for _, raw := range req.IDs {
			ids = append(ids, uuid.MustParse(raw))
		}
		names, err := s.Engine.Usernames(r.Context(), ids)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, names)
	}
}
