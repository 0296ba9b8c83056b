// A fake bot backend speaking the uniform response envelope, so component
// and API tests can run without a live bot process.

package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/astrbot-devs/console-go/internal/models"
)

// FakeBackend is an httptest server that mimics the bot's plugin API. Tests
// mutate its exported fields (under Lock) to shape responses.
type FakeBackend struct {
	Server *httptest.Server

	mu        sync.Mutex
	Installed []models.InstalledPlugin
	// Market is the raw wire mapping of plugin key to record.
	Market    map[string]map[string]any
	Sources   []models.PluginSource
	Configs   map[string]map[string]any
	Conflicts int

	// FailMessage, when set, makes install/update endpoints answer with an
	// error envelope carrying it.
	FailMessage string
	// FailUpdates marks individual plugins as failing inside update-all.
	FailUpdates map[string]string

	InstallCalls []string
	UpdateCalls  []string
	MarketCalls  int
}

// NewFakeBackend starts the fake server; it shuts down with the test.
func NewFakeBackend(t *testing.T) *FakeBackend {
	t.Helper()

	f := &FakeBackend{
		Market:  make(map[string]map[string]any),
		Configs: make(map[string]map[string]any),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/plugin/get", f.handleGet)
	mux.HandleFunc("/api/plugin/on", f.handleToggle(true))
	mux.HandleFunc("/api/plugin/off", f.handleToggle(false))
	mux.HandleFunc("/api/plugin/reload", f.handleReload)
	mux.HandleFunc("/api/plugin/uninstall", f.handleUninstall)
	mux.HandleFunc("/api/plugin/update", f.handleUpdate)
	mux.HandleFunc("/api/plugin/update-all", f.handleUpdateAll)
	mux.HandleFunc("/api/plugin/install", f.handleInstall)
	mux.HandleFunc("/api/plugin/install-upload", f.handleInstallUpload)
	mux.HandleFunc("/api/plugin/market_list", f.handleMarketList)
	mux.HandleFunc("/api/plugin/source/get", f.handleGetSources)
	mux.HandleFunc("/api/plugin/source/save", f.handleSaveSources)
	mux.HandleFunc("/api/config/get", f.handleGetConfig)
	mux.HandleFunc("/api/config/plugin/update", f.handleUpdateConfig)
	mux.HandleFunc("/api/commands", f.handleCommands)

	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)
	return f
}

// URL returns the fake backend's base URL.
func (f *FakeBackend) URL() string { return f.Server.URL }

// Lock allows tests to mutate the backend state safely; the returned func
// unlocks.
func (f *FakeBackend) Lock() func() {
	f.mu.Lock()
	return f.mu.Unlock
}

func writeOK(w http.ResponseWriter, message string, data any) {
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"message": message,
		"data":    data,
	})
}

func writeErr(w http.ResponseWriter, message string) {
	json.NewEncoder(w).Encode(map[string]any{
		"status":  "error",
		"message": message,
	})
}

func decodeBody(r *http.Request) map[string]any {
	var payload map[string]any
	_ = json.NewDecoder(r.Body).Decode(&payload)
	return payload
}

func (f *FakeBackend) handleGet(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	installed := f.Installed
	if installed == nil {
		installed = []models.InstalledPlugin{}
	}
	writeOK(w, "", installed)
}

func (f *FakeBackend) handleToggle(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, _ := decodeBody(r)["name"].(string)

		f.mu.Lock()
		defer f.mu.Unlock()
		for i := range f.Installed {
			if f.Installed[i].Name == name {
				f.Installed[i].Activated = enabled
				if enabled {
					writeOK(w, "Plugin enabled", nil)
				} else {
					writeOK(w, "Plugin disabled", nil)
				}
				return
			}
		}
		writeErr(w, "plugin not found: "+name)
	}
}

func (f *FakeBackend) handleReload(w http.ResponseWriter, r *http.Request) {
	writeOK(w, "Plugin reloaded", nil)
}

func (f *FakeBackend) handleUninstall(w http.ResponseWriter, r *http.Request) {
	name, _ := decodeBody(r)["name"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.Installed[:0]
	found := false
	for i := range f.Installed {
		if f.Installed[i].Name == name {
			found = true
			continue
		}
		next = append(next, f.Installed[i])
	}
	if !found {
		writeErr(w, "plugin not found: "+name)
		return
	}
	f.Installed = next
	writeOK(w, "Plugin uninstalled", f.Installed)
}

func (f *FakeBackend) handleUpdate(w http.ResponseWriter, r *http.Request) {
	name, _ := decodeBody(r)["name"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpdateCalls = append(f.UpdateCalls, name)
	if f.FailMessage != "" {
		writeErr(w, f.FailMessage)
		return
	}
	for i := range f.Installed {
		if f.Installed[i].Name == name && f.Installed[i].OnlineVersion != "" {
			f.Installed[i].Version = f.Installed[i].OnlineVersion
		}
	}
	writeOK(w, "Plugin updated", f.Installed)
}

func (f *FakeBackend) handleUpdateAll(w http.ResponseWriter, r *http.Request) {
	payload := decodeBody(r)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailMessage != "" {
		writeErr(w, f.FailMessage)
		return
	}

	var results []models.UpdateResult
	if names, ok := payload["names"].([]any); ok {
		for _, raw := range names {
			name, _ := raw.(string)
			f.UpdateCalls = append(f.UpdateCalls, name)
			if reason, bad := f.FailUpdates[name]; bad {
				results = append(results, models.UpdateResult{Name: name, Status: "error", Message: reason})
				continue
			}
			results = append(results, models.UpdateResult{Name: name, Status: "ok"})
		}
	}
	writeOK(w, "Plugins updated", map[string]any{"results": results})
}

func (f *FakeBackend) handleInstall(w http.ResponseWriter, r *http.Request) {
	url, _ := decodeBody(r)["url"].(string)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.InstallCalls = append(f.InstallCalls, url)
	if f.FailMessage != "" {
		writeErr(w, f.FailMessage)
		return
	}
	writeOK(w, "Plugin installed", map[string]any{"name": "installed-plugin", "repo": url})
}

func (f *FakeBackend) handleInstallUpload(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InstallCalls = append(f.InstallCalls, "upload")
	if f.FailMessage != "" {
		writeErr(w, f.FailMessage)
		return
	}
	writeOK(w, "Plugin installed", map[string]any{"name": "uploaded-plugin"})
}

func (f *FakeBackend) handleMarketList(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MarketCalls++
	writeOK(w, "", f.Market)
}

func (f *FakeBackend) handleGetSources(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	sources := f.Sources
	if sources == nil {
		sources = []models.PluginSource{}
	}
	writeOK(w, "", sources)
}

func (f *FakeBackend) handleSaveSources(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Sources []models.PluginSource `json:"sources"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Sources = payload.Sources
	writeOK(w, "Sources saved", nil)
}

func (f *FakeBackend) handleGetConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("plugin_name")

	f.mu.Lock()
	defer f.mu.Unlock()
	cfg := f.Configs[name]
	if cfg == nil {
		cfg = map[string]any{}
	}
	writeOK(w, "", map[string]any{"metadata": map[string]any{}, "config": cfg})
}

func (f *FakeBackend) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("plugin_name")
	values := decodeBody(r)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.Configs[name] = values
	writeOK(w, "Configuration saved", nil)
}

func (f *FakeBackend) handleCommands(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	writeOK(w, "", map[string]any{"summary": map[string]any{"conflicts": f.Conflicts}})
}
