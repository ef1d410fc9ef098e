package apihttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"galleryrip/internal/usecase"
)

func (s *Server) handlePosts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleAddPost(w, r)
	case http.MethodGet:
		s.handleListPosts(w, r)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

// handlePostsSub dispatches /api/posts/{action} and /api/posts/{id}/images.
func (s *Server) handlePostsSub(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/posts/")
	switch rest {
	case "stop":
		s.handleStop(w, r)
		return
	case "restart":
		s.handleRestart(w, r)
		return
	case "delete":
		s.handleDeletePosts(w, r)
		return
	case "clear-finished":
		s.handleClearFinished(w, r)
		return
	}
	if id, ok := strings.CutSuffix(rest, "/images"); ok && id != "" && !strings.Contains(id, "/") {
		s.handlePostImages(w, r, id)
		return
	}
	writeError(w, http.StatusNotFound, "not_found", "unknown path")
}

type addPostItemJSON struct {
	URL      string `json:"url"`
	ThumbURL string `json:"thumbUrl,omitempty"`
}

type addPostJSON struct {
	ThreadID string            `json:"threadId,omitempty"`
	PostID   string            `json:"postId"`
	Title    string            `json:"title,omitempty"`
	Forum    string            `json:"forum,omitempty"`
	URL      string            `json:"url"`
	Token    string            `json:"token,omitempty"`
	Items    []addPostItemJSON `json:"items"`
}

func (s *Server) handleAddPost(w http.ResponseWriter, r *http.Request) {
	if s.addPost == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "add post use case not configured")
		return
	}

	var body addPostJSON
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}

	items := make([]usecase.AddPostItem, 0, len(body.Items))
	for _, item := range body.Items {
		items = append(items, usecase.AddPostItem{
			URL:      strings.TrimSpace(item.URL),
			ThumbURL: strings.TrimSpace(item.ThumbURL),
		})
	}
	input := usecase.AddPostInput{
		ThreadID: strings.TrimSpace(body.ThreadID),
		PostID:   strings.TrimSpace(body.PostID),
		Title:    strings.TrimSpace(body.Title),
		Forum:    strings.TrimSpace(body.Forum),
		URL:      strings.TrimSpace(body.URL),
		Token:    strings.TrimSpace(body.Token),
		Items:    items,
	}

	// Cap the handler execution time so we never block indefinitely.
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	record, err := s.addPost.Execute(ctx, input)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListPosts(w http.ResponseWriter, r *http.Request) {
	if s.listPosts == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "list posts use case not configured")
		return
	}
	posts, err := s.listPosts.Execute(r.Context())
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postList{Items: posts, Count: len(posts)})
}

func (s *Server) handlePostImages(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.getImages == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "post images use case not configured")
		return
	}
	images, err := s.getImages.Execute(r.Context(), id)
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, imageList{Items: images, Count: len(images)})
}

type postIDsJSON struct {
	PostIDs []string `json:"postIds"`
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.control == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "download controller not configured")
		return
	}
	body, ok := decodePostIDs(w, r)
	if !ok {
		return
	}
	s.control.Stop(r.Context(), body.PostIDs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.control == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "download controller not configured")
		return
	}
	body, ok := decodePostIDs(w, r)
	if !ok {
		return
	}
	s.control.Restart(r.Context(), body.PostIDs)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeletePosts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deletePosts == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "delete posts use case not configured")
		return
	}
	body, ok := decodePostIDs(w, r)
	if !ok {
		return
	}
	if len(body.PostIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "postIds is required")
		return
	}
	if err := s.deletePosts.Execute(r.Context(), body.PostIDs); err != nil {
		writeUseCaseError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearFinished(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.clearFinished == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "clear finished use case not configured")
		return
	}
	ids, err := s.clearFinished.Execute(r.Context())
	if err != nil {
		writeUseCaseError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, postIDsJSON{PostIDs: ids})
}

func decodePostIDs(w http.ResponseWriter, r *http.Request) (postIDsJSON, bool) {
	var body postIDsJSON
	if r.Body == nil || r.ContentLength == 0 {
		return body, true
	}
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return body, false
	}
	return body, true
}
