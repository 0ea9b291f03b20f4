package handlers

import (
	"net/http"

	"github.com/kevinye7/PokeHub/internal/models"
	"github.com/kevinye7/PokeHub/internal/utils"

	"github.com/google/uuid"
)

// PostRequest is the body of create and update.
type PostRequest struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

func (req PostRequest) input() models.PostInput {
	return models.PostInput{Title: req.Title, Content: req.Content, ImageURL: req.ImageURL}
}

// ToggleResponse reports a like toggle. MembershipError is set when the
// post_likes write failed after the counter was written.
type ToggleResponse struct {
	PostID          uuid.UUID `json:"post_id"`
	Likes           int       `json:"likes"`
	Liked           bool      `json:"liked"`
	Applied         bool      `json:"applied"`
	MembershipError string    `json:"membership_error,omitempty"`
}

// HandleLoadFeed refetches the feed: GET /feed?sort=newest|likes|likes_desc&q=term
func (s *Server) HandleLoadFeed() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sort, err := models.ParseSortKey(r.URL.Query().Get("sort"))
		if err != nil {
			s.writeError(w, r, utils.NewAppError(utils.ErrValidation, err.Error(), nil))
			return
		}

		snap, err := s.Engine.LoadFeed(r.Context(), models.PostQuery{Sort: sort, Filter: r.URL.Query().Get("q")})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) HandleFeedState() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap, err := s.Engine.FeedState()
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, snap)
	}
}

func (s *Server) HandleCreatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req PostRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		post, err := s.Engine.CreatePost(r.Context(), req.input())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, post)
	}
}

func (s *Server) HandleGetPost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		view, err := s.Engine.GetPost(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func (s *Server) HandleUpdatePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req PostRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		post, err := s.Engine.UpdatePost(r.Context(), id, req.input())
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, post)
	}
}

func (s *Server) HandleDeletePost() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if err := s.Engine.DeletePost(r.Context(), id); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) HandleToggleLike() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		result, err := s.Engine.ToggleLike(r.Context(), id)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		resp := ToggleResponse{
			PostID:  result.PostID,
			Likes:   result.Likes,
			Liked:   result.Liked,
			Applied: result.Applied,
		}
		if result.MembershipErr != nil {
			resp.MembershipError = result.MembershipErr.Error()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
