package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/astrbot-devs/console-go/internal/botapi"
)

func sourceErrorStatus(err error) int {
	var verr *botapi.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Sources().Load(r.Context()); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"sources":  s.app.Sources().Sources(),
		"selected": s.app.Sources().Selected(),
	})
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.Sources().Add(r.Context(), payload.Name, payload.URL); err != nil {
		RespondWithError(w, sourceErrorStatus(err), err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Sources().Sources())
}

func (s *Server) handleEditSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		OldURL string `json:"old_url"`
		Name   string `json:"name"`
		URL    string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.Sources().Edit(r.Context(), payload.OldURL, payload.Name, payload.URL); err != nil {
		RespondWithError(w, sourceErrorStatus(err), err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Sources().Sources())
}

func (s *Server) handleRemoveSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.Sources().Remove(r.Context(), payload.URL); err != nil {
		RespondWithError(w, sourceErrorStatus(err), err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Sources().Sources())
}

func (s *Server) handleSelectSource(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.Sources().Select(r.Context(), payload.URL); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"selected": s.app.Sources().Selected()})
}
