// It defines the API server, sets up the routes (endpoints)
// using chi, and links them to the handler functions.

package api

import (
	"net/http"
	"time"

	"github.com/astrbot-devs/console-go/internal/core"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server holds the dependencies for our API.
type Server struct {
	app *core.App
}

// NewServer creates a new Server instance.
func NewServer(app *core.App) *Server {
	return &Server{app: app}
}

// Router sets up and returns the main router for the application.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Get("/api/health", s.handleHealth)

	r.Get("/ws/notifications", s.app.Hub().ServeWs)

	r.Route("/api", func(r chi.Router) {
		// Installed plugin routes
		r.Route("/extensions", func(r chi.Router) {
			r.Get("/", s.handleListExtensions)
			r.Post("/refresh", s.handleRefreshExtensions)
			r.Get("/updatable", s.handleListUpdatable)
			r.Post("/search", s.handleExtensionSearch)
			r.Post("/show-reserved", s.handleToggleReserved)
			r.Post("/view", s.handleSetListView)

			r.Post("/{name}/enable", s.handleEnableExtension)
			r.Post("/{name}/disable", s.handleDisableExtension)
			r.Post("/{name}/reload", s.handleReloadExtension)

			r.Post("/{name}/uninstall", s.handleUninstallExtension)
			r.Post("/uninstall/confirm", s.handleConfirmUninstall)
			r.Post("/uninstall/cancel", s.handleCancelUninstall)

			r.Post("/{name}/update", s.handleUpdateExtension)
			r.Post("/update/confirm", s.handleConfirmForceUpdate)
			r.Post("/update/cancel", s.handleCancelForceUpdate)
			r.Post("/update-all", s.handleUpdateAll)

			r.Get("/{name}/config", s.handleGetExtensionConfig)
			r.Post("/config", s.handleSaveExtensionConfig)
		})

		// Marketplace routes
		r.Route("/market", func(r chi.Router) {
			r.Get("/", s.handleMarketPage)
			r.Post("/refresh", s.handleMarketRefresh)
			r.Post("/search", s.handleMarketSearch)
			r.Post("/sort", s.handleMarketSort)
			r.Post("/goto", s.handleMarketGoto)

			r.Get("/cart", s.handleGetCart)
			r.Post("/cart/toggle", s.handleToggleCart)
			r.Post("/cart/clear", s.handleClearCart)
			r.Post("/cart/checkout", s.handleCheckout)
		})

		// Plugin source routes
		r.Route("/sources", func(r chi.Router) {
			r.Get("/", s.handleListSources)
			r.Post("/", s.handleAddSource)
			r.Put("/", s.handleEditSource)
			r.Delete("/", s.handleRemoveSource)
			r.Post("/select", s.handleSelectSource)
		})

		// Manual install routes
		r.Route("/install", func(r chi.Router) {
			r.Post("/", s.handleInstall)
			r.Post("/market", s.handleMarketInstall)
			r.Get("/danger", s.handleGetDangerConfirm)
			r.Post("/danger/confirm", s.handleConfirmDanger)
			r.Post("/danger/cancel", s.handleCancelDanger)
		})

		// Page orchestration routes
		r.Route("/page", func(r chi.Router) {
			r.Get("/state", s.handleGetPageState)
			r.Post("/tab", s.handleSetTab)
			r.Post("/deeplink", s.handleDeepLink)
		})

		// Conflict prompt routes
		r.Route("/conflicts", func(r chi.Router) {
			r.Get("/", s.handleGetConflictPrompt)
			r.Post("/confirm", s.handleConfirmConflict)
			r.Post("/dismiss", s.handleDismissConflict)
		})

		// Loading dialog routes
		r.Get("/dialog", s.handleGetDialog)
		r.Post("/dialog/reset", s.handleResetDialog)

		// Toast queue routes
		r.Get("/toasts", s.handleGetToasts)
		r.Post("/toasts/shift", s.handleShiftToast)

		// Background job routes
		r.Route("/admin/jobs", func(r chi.Router) {
			r.Get("/status", s.handleGetJobsStatus)
			r.Post("/run", s.handleRunJob)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
