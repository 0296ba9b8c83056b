package api

import (
	"encoding/json"
	"net/http"
)

// handleGetPageState returns the plugin page's shared UI state in one shot:
// the active tab plus every dialog and prompt slot.
func (s *Server) handleGetPageState(w http.ResponseWriter, r *http.Request) {
	registry := s.app.Registry()
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"tab":          s.app.Page().Tab(),
		"dialog":       s.app.Dialog().Snapshot(),
		"danger":       s.app.Installer().DangerConfirmState(),
		"uninstall":    registry.UninstallDialogState(),
		"force_update": registry.ForceUpdateDialogState(),
		"conflicts":    s.app.Conflicts().Snapshot(),
		"cart":         s.app.Page().Cart(),
	})
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Tab string `json:"tab"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Page().SetTab(r.Context(), payload.Tab)
	RespondWithJSON(w, http.StatusOK, map[string]string{"tab": s.app.Page().Tab()})
}

// handleDeepLink resolves a dashboard URL carrying an open_config parameter
// and opens the named plugin's config dialog.
func (s *Server) handleDeepLink(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Page().HandleDeepLink(r.Context(), payload.URL)
	open, name := s.app.Registry().ConfigDialogState()
	RespondWithJSON(w, http.StatusOK, map[string]any{"open": open, "plugin_name": name})
}

func (s *Server) handleGetConflictPrompt(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Conflicts().Snapshot())
}

func (s *Server) handleConfirmConflict(w http.ResponseWriter, r *http.Request) {
	s.app.Conflicts().Confirm()
	RespondWithJSON(w, http.StatusOK, s.app.Conflicts().Snapshot())
}

func (s *Server) handleDismissConflict(w http.ResponseWriter, r *http.Request) {
	s.app.Conflicts().Dismiss()
	RespondWithJSON(w, http.StatusOK, s.app.Conflicts().Snapshot())
}

func (s *Server) handleGetDialog(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Dialog().Snapshot())
}

func (s *Server) handleResetDialog(w http.ResponseWriter, r *http.Request) {
	s.app.Dialog().Reset()
	RespondWithJSON(w, http.StatusOK, s.app.Dialog().Snapshot())
}

func (s *Server) handleGetToasts(w http.ResponseWriter, r *http.Request) {
	current, ok := s.app.Toaster().Current()
	if !ok {
		RespondWithJSON(w, http.StatusOK, map[string]any{"pending": 0})
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"current": current,
		"pending": s.app.Toaster().Pending(),
	})
}

func (s *Server) handleShiftToast(w http.ResponseWriter, r *http.Request) {
	s.app.Toaster().Shift()
	RespondWithJSON(w, http.StatusOK, map[string]int{"pending": s.app.Toaster().Pending()})
}

func (s *Server) handleGetJobsStatus(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.JobManager().GetStatus())
}

func (s *Server) handleRunJob(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.JobManager().RunJob(payload.Name, s.app); err != nil {
		RespondWithError(w, http.StatusConflict, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusAccepted, map[string]string{"message": "Job started"})
}
