package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/astrbot-devs/console-go/internal/botapi"
	"github.com/astrbot-devs/console-go/internal/installer"
)

func installErrorStatus(err error) int {
	var verr *botapi.ValidationError
	if errors.As(err, &verr) {
		return http.StatusBadRequest
	}
	return http.StatusBadGateway
}

// handleInstall is the manual install form: a JSON body with a repository
// URL, or a multipart body with a plugin archive. Exactly one of the two.
func (s *Server) handleInstall(w http.ResponseWriter, r *http.Request) {
	var (
		repoURL  string
		filename string
		file     io.Reader
	)

	contentType := r.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/json" {
		upload, header, err := r.FormFile("file")
		if err == nil {
			defer upload.Close()
			filename = header.Filename
			file = upload
		}
		repoURL = r.FormValue("url")
	} else {
		var payload struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			RespondWithError(w, http.StatusBadRequest, "Invalid request body")
			return
		}
		repoURL = payload.URL
	}

	result, err := s.app.Installer().Submit(r.Context(), repoURL, filename, file, installer.Options{})
	if err != nil {
		RespondWithError(w, installErrorStatus(err), err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, result)
}

// handleMarketInstall installs one marketplace entry by cart key, going
// through the danger confirmation when the entry is tagged.
func (s *Server) handleMarketInstall(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	for _, plugin := range s.app.Market().Plugins() {
		if plugin.CartKey() == payload.Key {
			if err := s.app.Installer().RequestInstall(r.Context(), plugin); err != nil {
				RespondWithError(w, installErrorStatus(err), err.Error())
				return
			}
			RespondWithJSON(w, http.StatusOK, map[string]any{
				"danger": s.app.Installer().DangerConfirmState(),
				"dialog": s.app.Dialog().Snapshot(),
			})
			return
		}
	}
	RespondWithError(w, http.StatusNotFound, "Plugin not found in market listing")
}

func (s *Server) handleGetDangerConfirm(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Installer().DangerConfirmState())
}

func (s *Server) handleConfirmDanger(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Installer().ConfirmDanger(r.Context()); err != nil {
		RespondWithError(w, installErrorStatus(err), err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Dialog().Snapshot())
}

func (s *Server) handleCancelDanger(w http.ResponseWriter, r *http.Request) {
	s.app.Installer().CancelDanger()
	RespondWithJSON(w, http.StatusOK, s.app.Installer().DangerConfirmState())
}
