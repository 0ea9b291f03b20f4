package handlers

import (
	"net/http"
)

type CommentRequest struct {
	Content string `json:"content"`
}

type DraftResponse struct {
	Content string `json:"content"`
}

// HandleListComments fetches a post's comments, newest first.
func (s *Server) HandleListComments() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		comments, err := s.Engine.LoadComments(r.Context(), postID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, comments)
	}
}

func (s *Server) HandleAddComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req CommentRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		comment, err := s.Engine.AddComment(r.Context(), postID, req.Content)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	}
}

func (s *Server) HandleSetCommentDraft() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		var req CommentRequest
		if err := decodeJSON(r, &req); err != nil {
			s.writeError(w, r, err)
			return
		}

		s.Engine.SetCommentDraft(postID, req.Content)
		writeJSON(w, http.StatusOK, DraftResponse{Content: s.Engine.CommentDraft(postID)})
	}
}

// HandleSubmitComment posts the stored draft. On failure the draft is kept.
func (s *Server) HandleSubmitComment() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		postID, err := pathID(r)
		if err != nil {
			s.writeError(w, r, err)
			return
		}

		comment, err := s.Engine.SubmitComment(r.Context(), postID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, comment)
	}
}
