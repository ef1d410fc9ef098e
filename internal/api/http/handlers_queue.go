package apihttp

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"galleryrip/internal/domain"
)

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.control == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "download controller not configured")
		return
	}
	writeJSON(w, http.StatusOK, s.control.QueueState())
}

type queueMoveJSON struct {
	PostID   string `json:"postId"`
	Position string `json:"position"`
}

func (s *Server) handleQueueMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.control == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "download controller not configured")
		return
	}

	var body queueMoveJSON
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	if strings.TrimSpace(body.PostID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "postId is required")
		return
	}
	position, err := domain.ParseMovePosition(body.Position)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	s.control.Move(body.PostID, position)
	writeJSON(w, http.StatusOK, s.control.QueueState())
}

type settingsJSON struct {
	MaxConcurrentPerHost  int   `json:"maxConcurrentPerHost"`
	MaxGlobalConcurrent   int   `json:"maxGlobalConcurrent"`
	ConnectionTimeoutSecs int64 `json:"connectionTimeoutSecs"`
	MaxAttempts           int   `json:"maxAttempts"`
	ForceOrder            bool  `json:"forceOrder"`
	ClearCompleted        bool  `json:"clearCompleted"`
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "settings controller not configured")
		return
	}
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, toSettingsJSON(s.settings.Settings()))
	case http.MethodPut:
		var body settingsJSON
		decoder := json.NewDecoder(r.Body)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
			return
		}
		if err := s.settings.Update(fromSettingsJSON(body)); err != nil {
			writeError(w, http.StatusInternalServerError, "settings_error", err.Error())
			return
		}
		writeJSON(w, http.StatusOK, toSettingsJSON(s.settings.Settings()))
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func toSettingsJSON(settings domain.Settings) settingsJSON {
	return settingsJSON{
		MaxConcurrentPerHost:  settings.MaxConcurrentPerHost,
		MaxGlobalConcurrent:   settings.MaxGlobalConcurrent,
		ConnectionTimeoutSecs: int64(settings.ConnectionTimeout / time.Second),
		MaxAttempts:           settings.MaxAttempts,
		ForceOrder:            settings.ForceOrder,
		ClearCompleted:        settings.ClearCompleted,
	}
}

func fromSettingsJSON(body settingsJSON) domain.Settings {
	return domain.Settings{
		MaxConcurrentPerHost: body.MaxConcurrentPerHost,
		MaxGlobalConcurrent:  body.MaxGlobalConcurrent,
		ConnectionTimeout:    time.Duration(body.ConnectionTimeoutSecs) * time.Second,
		MaxAttempts:          body.MaxAttempts,
		ForceOrder:           body.ForceOrder,
		ClearCompleted:       body.ClearCompleted,
	}
}
