package api

import (
	"encoding/json"
	"net/http"
)

// handleMarketPage serves the current marketplace view: the active page
// slice plus the paging and sort state behind it.
func (s *Server) handleMarketPage(w http.ResponseWriter, r *http.Request) {
	market := s.app.Market()
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"plugins":     market.Page(),
		"page":        market.CurrentPage(),
		"total_pages": market.TotalPages(),
		"search":      market.Search(),
		"refreshing":  market.Refreshing(),
	})
}

// handleMarketRefresh bypasses every cache layer and reloads the listing for
// the selected registry.
func (s *Server) handleMarketRefresh(w http.ResponseWriter, r *http.Request) {
	s.app.Page().RefreshMarket(r.Context())
	s.handleMarketPage(w, r)
}

// handleMarketSearch records the query; filtering applies after the debounce
// window, so the response reflects the previous query until it elapses.
func (s *Server) handleMarketSearch(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Market().SetSearch(payload.Query)
	s.handleMarketPage(w, r)
}

func (s *Server) handleMarketSort(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		By    string `json:"by"`
		Order string `json:"order"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Market().SetSort(payload.By, payload.Order)
	s.handleMarketPage(w, r)
}

func (s *Server) handleMarketGoto(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Page int `json:"page"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	s.app.Market().SetPage(payload.Page)
	s.handleMarketPage(w, r)
}

func (s *Server) handleGetCart(w http.ResponseWriter, r *http.Request) {
	RespondWithJSON(w, http.StatusOK, s.app.Page().Cart())
}

// handleToggleCart adds or removes one marketplace entry, addressed by its
// cart key (repo URL, or name when no repo is known).
func (s *Server) handleToggleCart(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Key string `json:"key"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		RespondWithError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	for _, plugin := range s.app.Market().Plugins() {
		if plugin.CartKey() == payload.Key {
			s.app.Page().ToggleCart(plugin)
			RespondWithJSON(w, http.StatusOK, s.app.Page().Cart())
			return
		}
	}
	RespondWithError(w, http.StatusNotFound, "Plugin not found in market listing")
}

func (s *Server) handleClearCart(w http.ResponseWriter, r *http.Request) {
	s.app.Page().ClearCart()
	RespondWithJSON(w, http.StatusOK, s.app.Page().Cart())
}

// handleCheckout installs everything in the cart sequentially. Progress and
// the final report arrive through the loading dialog; when a danger-tagged
// entry is queued the batch instead waits behind the risk confirmation.
func (s *Server) handleCheckout(w http.ResponseWriter, r *http.Request) {
	s.app.Page().Checkout(r.Context())
	RespondWithJSON(w, http.StatusOK, map[string]any{
		"dialog": s.app.Dialog().Snapshot(),
		"danger": s.app.Installer().DangerConfirmState(),
		"cart":   s.app.Page().Cart(),
	})
}
