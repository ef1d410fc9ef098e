package apihttp

import (
	"encoding/json"
	"errors"
	"net/http"

	"galleryrip/internal/domain"
	"galleryrip/internal/usecase"
)

type errorEnvelope struct {
	Error errorPayload `json:"error"`
}

type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type postList struct {
	Items []domain.PostRecord `json:"items"`
	Count int                 `json:"count"`
}

type imageList struct {
	Items []domain.ImageRecord `json:"items"`
	Count int                  `json:"count"`
}

func writeUseCaseError(w http.ResponseWriter, err error) {
	if errors.Is(err, usecase.ErrInvalidPost) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid post")
		return
	}
	if errors.Is(err, usecase.ErrNoImages) {
		writeError(w, http.StatusUnprocessableEntity, "no_images", "no downloadable images")
		return
	}
	if errors.Is(err, domain.ErrAlreadyExists) {
		writeError(w, http.StatusConflict, "already_exists", "post already exists")
		return
	}
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not_found", "post not found")
		return
	}
	if errors.Is(err, usecase.ErrRepository) {
		writeError(w, http.StatusInternalServerError, "repository_error", err.Error())
		return
	}

	writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorEnvelope{Error: errorPayload{Code: code, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
