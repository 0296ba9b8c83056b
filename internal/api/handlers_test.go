package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/astrbot-devs/console-go/internal/api"
	"github.com/astrbot-devs/console-go/internal/models"
	"github.com/astrbot-devs/console-go/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupServer(t *testing.T) (http.Handler, *testutil.FakeBackend) {
	t.Helper()
	app, backend := testutil.SetupTestApp(t)
	return api.NewServer(app).Router(), backend
}

func doJSON(t *testing.T, router http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodGet, "/api/health", nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestListExtensions(t *testing.T) {
	router, backend := setupServer(t)

	unlock := backend.Lock()
	backend.Installed = []models.InstalledPlugin{
		{Name: "alpha"},
		{Name: "hidden", Reserved: true},
	}
	unlock()

	// The registry fetches lazily; refresh first.
	rr := doJSON(t, router, http.MethodPost, "/api/extensions/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/extensions/", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Plugins      []models.InstalledPlugin `json:"plugins"`
		ShowReserved bool                     `json:"show_reserved"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Plugins, 1, "reserved plugins are hidden by default")
	assert.Equal(t, "alpha", payload.Plugins[0].Name)
}

func TestEnableExtension(t *testing.T) {
	router, backend := setupServer(t)

	unlock := backend.Lock()
	backend.Installed = []models.InstalledPlugin{{Name: "alpha"}}
	unlock()

	rr := doJSON(t, router, http.MethodPost, "/api/extensions/alpha/enable", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	unlock = backend.Lock()
	defer unlock()
	assert.True(t, backend.Installed[0].Activated)
}

func TestEnableUnknownExtension(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodPost, "/api/extensions/ghost/enable", nil)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
}

func TestMarketPageFlow(t *testing.T) {
	router, backend := setupServer(t)

	unlock := backend.Lock()
	backend.Market["astrbot_plugin_weather"] = map[string]any{
		"name": "astrbot_plugin_weather", "version": "1.0.0",
	}
	unlock()

	rr := doJSON(t, router, http.MethodPost, "/api/market/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	var payload struct {
		Plugins    []models.MarketPlugin `json:"plugins"`
		Page       int                   `json:"page"`
		TotalPages int                   `json:"total_pages"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Plugins, 1)
	assert.Equal(t, "weather", payload.Plugins[0].TrimmedName)
	assert.Equal(t, 1, payload.Page)
	assert.Equal(t, 1, payload.TotalPages)
}

func TestSourcesEndpoints(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodPost, "/api/sources/", map[string]string{
		"name": "Mirror", "url": "https://mirror.example/plugins.json",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/sources/", map[string]string{
		"name": "Bad", "url": "not-a-url",
	})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/sources/select", map[string]string{
		"url": "https://mirror.example/plugins.json",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodGet, "/api/sources/", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var payload struct {
		Sources  []models.PluginSource `json:"sources"`
		Selected string                `json:"selected"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Sources, 1)
	assert.Equal(t, "https://mirror.example/plugins.json", payload.Selected)
}

func TestInstallValidation(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodPost, "/api/install/", map[string]string{"url": "   "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCartFlow(t *testing.T) {
	router, backend := setupServer(t)

	unlock := backend.Lock()
	backend.Market["astrbot_plugin_a"] = map[string]any{
		"name": "astrbot_plugin_a", "repo": "https://github.com/x/a",
	}
	unlock()

	rr := doJSON(t, router, http.MethodPost, "/api/market/refresh", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/market/cart/toggle", map[string]string{
		"key": "https://github.com/x/a",
	})
	require.Equal(t, http.StatusOK, rr.Code)

	var cart []models.MarketPlugin
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &cart))
	require.Len(t, cart, 1)

	rr = doJSON(t, router, http.MethodPost, "/api/market/cart/toggle", map[string]string{
		"key": "ghost",
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = doJSON(t, router, http.MethodPost, "/api/market/cart/checkout", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	unlock = backend.Lock()
	installs := len(backend.InstallCalls)
	unlock()
	assert.Equal(t, 1, installs)

	rr = doJSON(t, router, http.MethodGet, "/api/market/cart", nil)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestPageTab(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodPost, "/api/page/tab", map[string]string{"tab": "market"})
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"tab":"market"}`, rr.Body.String())

	rr = doJSON(t, router, http.MethodGet, "/api/page/state", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	var state map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &state))
	assert.Equal(t, "market", state["tab"])
}

func TestRunUnknownJob(t *testing.T) {
	router, _ := setupServer(t)

	rr := doJSON(t, router, http.MethodPost, "/api/admin/jobs/run", map[string]string{"name": "nope"})
	assert.Equal(t, http.StatusConflict, rr.Code)
}
