package api

import (
	"encoding/json"
	"net/http"

	"github.com/astrbot-devs/console-go/internal/extension"
	"github.com/go-chi/chi/v5"
)

// handleListExtensions returns the installed set through the reserved-plugin
// and search filters, already sorted for display.
func (s *Server) handleListExtensions(w http.ResponseWriter, r *http.Request) {
	registry := s.app.Registry()
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"plugins":       registry.FilteredPlugins(),
		"show_reserved": registry.ShowReserved(),
		"list_view":     registry.ListView(),
		"loading":       registry.Loading(),
	})
}

// handleRefreshExtensions re-fetches the installed set from the bot backend.
func (s *Server) handleRefreshExtensions(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Registry().Fetch(r.Context()); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Registry().Plugins())
}

func (s *Server) handleListUpdatable(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Registry().Updatable())
}

func (s *Server) handleExtensionSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Registry().SetSearch(payload.Query)
	RespondWithJSON(w, http.StatusOK, s.app.Registry().FilteredPlugins())
}

func (s *Server) handleToggleReserved(w http.ResponseWriter, r *http.Request) {
	s.app.Registry().ToggleShowReserved()
	RespondWithJSON(w, http.StatusOK, map[string]bool{"show_reserved": s.app.Registry().ShowReserved()})
}

func (s *Server) handleSetListView(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ListView bool `json:"list_view"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Registry().SetListView(payload.ListView)
	RespondWithJSON(w, http.StatusOK, map[string]bool{"list_view": s.app.Registry().ListView()})
}

func (s *Server) handleEnableExtension(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.app.Registry().Enable(r.Context(), name); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Plugin enabled"})
}

func (s *Server) handleDisableExtension(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.app.Registry().Disable(r.Context(), name); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Plugin disabled"})
}

func (s *Server) handleReloadExtension(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := s.app.Registry().Reload(r.Context(), name); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Plugin reloaded"})
}

// handleUninstallExtension arms the uninstall confirmation by default; a
// body with skip_confirm performs the removal in one step.
func (s *Server) handleUninstallExtension(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var payload struct {
		SkipConfirm  bool `json:"skip_confirm"`
		DeleteConfig bool `json:"delete_config"`
		DeleteData   bool `json:"delete_data"`
	}
	// An empty body is the two-phase path.
	_ = json.NewDecoder(r.Body).Decode(&payload)

	var options *extension.UninstallOptions
	if payload.SkipConfirm {
		options = &extension.UninstallOptions{
			DeleteConfig: payload.DeleteConfig,
			DeleteData:   payload.DeleteData,
		}
	}
	if err := s.app.Registry().Uninstall(r.Context(), name, options); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Registry().UninstallDialogState())
}

func (s *Server) handleConfirmUninstall(w http.ResponseWriter, r *http.Request) {
	var options extension.UninstallOptions
	_ = json.NewDecoder(r.Body).Decode(&options)

	if err := s.app.Registry().ConfirmUninstall(r.Context(), options); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Plugin uninstalled"})
}

func (s *Server) handleCancelUninstall(w http.ResponseWriter, r *http.Request) {
	s.app.Registry().CancelUninstall()
	RespondWithJSON(w, http.StatusOK, s.app.Registry().UninstallDialogState())
}

// handleUpdateExtension updates one plugin; without force=true a target with
// no known update only arms the force-update confirmation.
func (s *Server) handleUpdateExtension(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	force := r.URL.Query().Get("force") == "true"

	if err := s.app.Registry().Update(r.Context(), name, force); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"force_update": s.app.Registry().ForceUpdateDialogState(),
		"dialog":       s.app.Dialog().Snapshot(),
	})
}

func (s *Server) handleConfirmForceUpdate(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Registry().ConfirmForceUpdate(r.Context()); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Dialog().Snapshot())
}

func (s *Server) handleCancelForceUpdate(w http.ResponseWriter, r *http.Request) {
	s.app.Registry().CancelForceUpdate()
	RespondWithJSON(w, http.StatusOK, s.app.Registry().ForceUpdateDialogState())
}

func (s *Server) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Registry().UpdateAll(r.Context()); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, s.app.Dialog().Snapshot())
}

func (s *Server) handleGetExtensionConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	cfg, err := s.app.Registry().OpenConfig(r.Context(), name)
	if err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleSaveExtensionConfig(w http.ResponseWriter, r *http.Request) {
	var values map[string]any
	if err := json.NewDecoder(r.Body).Decode(&values); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := s.app.Registry().SaveConfig(r.Context(), values); err != nil {
		RespondWithError(w, http.StatusBadGateway, err.Error())
		return
	}
	RespondWithJSON(w, http.StatusOK, map[string]string{"message": "Configuration saved"})
}
